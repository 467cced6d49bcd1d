package relationship

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	domain "refward/pkg/domain"
	"refward/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) newRelationship(referrer, referee domain.UserID) *Relationship {
	return &Relationship{
		ID:         domain.NewRelationshipID(),
		ReferrerID: referrer,
		RefereeID:  referee,
		CodeID:     domain.NewCodeID(),
		TrackingID: domain.NewTrackingID(),
		Level:      1,
		Status:     StatusActive,
		CreatedAt:  time.Now().UTC(),
	}
}

func (s *InMemoryStoreSuite) TestCreateIfFirstForReferee() {
	s.Run("first edge for a referee wins", func() {
		referee := domain.NewUserID()
		first := s.newRelationship(domain.NewUserID(), referee)
		s.Require().NoError(s.store.CreateIfFirstForReferee(s.ctx, first))

		second := s.newRelationship(domain.NewUserID(), referee)
		err := s.store.CreateIfFirstForReferee(s.ctx, second)
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

		kept, err := s.store.FindByReferee(s.ctx, referee)
		s.Require().NoError(err)
		s.Equal(first.ReferrerID, kept.ReferrerID)
	})

	s.Run("exactly one concurrent attribution wins", func() {
		referee := domain.NewUserID()
		const attempts = 16
		var wg sync.WaitGroup
		results := make(chan error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- s.store.CreateIfFirstForReferee(s.ctx, s.newRelationship(domain.NewUserID(), referee))
			}()
		}
		wg.Wait()
		close(results)

		var won int
		for err := range results {
			if err == nil {
				won++
			} else {
				s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
			}
		}
		s.Equal(1, won)
	})
}

func (s *InMemoryStoreSuite) TestFindByReferee() {
	_, err := s.store.FindByReferee(s.ctx, domain.NewUserID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestCountByReferrerSince() {
	referrer := domain.NewUserID()
	now := time.Now().UTC()

	recent := s.newRelationship(referrer, domain.NewUserID())
	recent.CreatedAt = now.Add(-time.Hour)
	s.Require().NoError(s.store.CreateIfFirstForReferee(s.ctx, recent))

	old := s.newRelationship(referrer, domain.NewUserID())
	old.CreatedAt = now.Add(-48 * time.Hour)
	s.Require().NoError(s.store.CreateIfFirstForReferee(s.ctx, old))

	n, err := s.store.CountByReferrerSince(s.ctx, referrer, now.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *InMemoryStoreSuite) TestListByReferrer() {
	referrer := domain.NewUserID()
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		rel := s.newRelationship(referrer, domain.NewUserID())
		rel.CreatedAt = now.Add(time.Duration(i) * time.Minute)
		s.Require().NoError(s.store.CreateIfFirstForReferee(s.ctx, rel))
	}

	listed, err := s.store.ListByReferrer(s.ctx, referrer)
	s.Require().NoError(err)
	s.Require().Len(listed, 3)
	s.True(listed[0].CreatedAt.After(listed[1].CreatedAt))
}
