package tracking

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

func (s *InMemoryStoreSuite) newRecord() *ReferralTracking {
	return &ReferralTracking{
		ID:          domain.NewTrackingID(),
		CodeID:      domain.NewCodeID(),
		ReferrerID:  domain.NewUserID(),
		IP:          "203.0.113.9",
		Device:      DeviceInfo{Fingerprint: "fp-1"},
		Attribution: AttributionLastClick,
		CreatedAt:   time.Now().UTC(),
	}
}

func (s *InMemoryStoreSuite) conversion() Conversion {
	return Conversion{
		RefereeID:   domain.NewUserID(),
		Type:        ConversionPurchase,
		Value:       domain.NewMoney(domain.DefaultCurrency, 2000),
		ConvertedAt: time.Now().UTC(),
	}
}

func (s *InMemoryStoreSuite) TestConvertIfPending() {
	s.Run("converts a pending record once", func() {
		record := s.newRecord()
		s.Require().NoError(s.store.Create(s.ctx, record))

		converted, err := s.store.ConvertIfPending(s.ctx, record.ID, s.conversion())
		s.Require().NoError(err)
		s.Equal(StateConverted, converted.State())

		_, err = s.store.ConvertIfPending(s.ctx, record.ID, s.conversion())
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("refuses to convert a blocked record", func() {
		record := s.newRecord()
		s.Require().NoError(s.store.Create(s.ctx, record))

		_, err := s.store.BlockIfPending(s.ctx, record.ID, time.Now().UTC())
		s.Require().NoError(err)

		_, err = s.store.ConvertIfPending(s.ctx, record.ID, s.conversion())
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("reports unknown records as not found", func() {
		_, err := s.store.ConvertIfPending(s.ctx, domain.NewTrackingID(), s.conversion())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("exactly one of many concurrent conversions wins", func() {
		record := s.newRecord()
		s.Require().NoError(s.store.Create(s.ctx, record))

		const attempts = 16
		var wg sync.WaitGroup
		results := make(chan error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.store.ConvertIfPending(s.ctx, record.ID, s.conversion())
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var won, lost int
		for err := range results {
			switch {
			case err == nil:
				won++
			default:
				s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
				lost++
			}
		}
		s.Equal(1, won)
		s.Equal(attempts-1, lost)
	})
}

func (s *InMemoryStoreSuite) TestBlockIfPending() {
	s.Run("refuses to block a converted record", func() {
		record := s.newRecord()
		s.Require().NoError(s.store.Create(s.ctx, record))

		_, err := s.store.ConvertIfPending(s.ctx, record.ID, s.conversion())
		s.Require().NoError(err)

		_, err = s.store.BlockIfPending(s.ctx, record.ID, time.Now().UTC())
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})
}

func (s *InMemoryStoreSuite) TestClonesDoNotAlias() {
	record := s.newRecord()
	s.Require().NoError(s.store.Create(s.ctx, record))

	conv := s.conversion()
	conv.Metadata = map[string]string{"order_id": "ord-1"}
	converted, err := s.store.ConvertIfPending(s.ctx, record.ID, conv)
	s.Require().NoError(err)

	converted.Conversion.Metadata["order_id"] = "tampered"
	converted.IP = "tampered"

	reloaded, err := s.store.FindByID(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal("ord-1", reloaded.Conversion.Metadata["order_id"])
	s.Equal("203.0.113.9", reloaded.IP)
}

func (s *InMemoryStoreSuite) TestCountByReferrer() {
	referrer := domain.NewUserID()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		record := s.newRecord()
		record.ReferrerID = referrer
		record.CreatedAt = now.Add(-time.Duration(i) * time.Hour)
		s.Require().NoError(s.store.Create(s.ctx, record))
		if i == 0 {
			_, err := s.store.ConvertIfPending(s.ctx, record.ID, s.conversion())
			s.Require().NoError(err)
		}
	}
	stale := s.newRecord()
	stale.ReferrerID = referrer
	stale.CreatedAt = now.Add(-48 * time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, stale))

	total, converted, err := s.store.CountByReferrer(s.ctx, referrer, now.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(3), total)
	s.Equal(int64(1), converted)
}

func (s *InMemoryStoreSuite) TestListRecentByReferrer() {
	referrer := domain.NewUserID()
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		record := s.newRecord()
		record.ReferrerID = referrer
		record.CreatedAt = now.Add(time.Duration(i) * time.Minute)
		s.Require().NoError(s.store.Create(s.ctx, record))
	}

	recent, err := s.store.ListRecentByReferrer(s.ctx, referrer, 3)
	s.Require().NoError(err)
	s.Require().Len(recent, 3)
	s.Equal(now.Add(4*time.Minute), recent[0].CreatedAt)
	s.True(recent[0].CreatedAt.After(recent[1].CreatedAt))
	s.True(recent[1].CreatedAt.After(recent[2].CreatedAt))
}
