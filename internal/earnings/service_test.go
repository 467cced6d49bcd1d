package earnings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	domain "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
	"refward/pkg/platform/audit"
)

type EarningsServiceSuite struct {
	suite.Suite
	store      *InMemoryStore
	auditStore *audit.InMemoryStore
	service    *Service
	ctx        context.Context
}

func TestEarningsServiceSuite(t *testing.T) {
	suite.Run(t, new(EarningsServiceSuite))
}

func (s *EarningsServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.auditStore = audit.NewInMemoryStore()
	s.service = NewService(s.store, WithAuditor(audit.NewPublisher(s.auditStore)))
	s.ctx = context.Background()
}

func (s *EarningsServiceSuite) newEarning(beneficiary domain.UserID, typ Type, cents int64) *Earning {
	now := time.Now().UTC()
	e := &Earning{
		ID:             domain.NewEarningID(),
		BeneficiaryID:  beneficiary,
		RefereeID:      domain.NewUserID(),
		Type:           typ,
		Amount:         domain.NewMoney(domain.DefaultCurrency, cents),
		CodeID:         domain.NewCodeID(),
		RelationshipID: domain.NewRelationshipID(),
		TrackingID:     domain.NewTrackingID(),
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.Require().NoError(s.store.Create(s.ctx, e))
	return e
}

func (s *EarningsServiceSuite) TestLifecycle() {
	s.Run("pending earnings approve and pay", func() {
		e := s.newEarning(domain.NewUserID(), TypePercentageCommission, 2000)

		approved, err := s.service.Approve(s.ctx, e.ID)
		s.Require().NoError(err)
		s.Equal(StatusApproved, approved.Status)

		paid, err := s.service.MarkPaid(s.ctx, e.ID)
		s.Require().NoError(err)
		s.Equal(StatusPaid, paid.Status)

		events, err := s.auditStore.ListByActor(s.ctx, e.BeneficiaryID)
		s.Require().NoError(err)
		s.Len(events, 2)
	})

	s.Run("pending cannot be paid directly", func() {
		e := s.newEarning(domain.NewUserID(), TypeSignupBonus, 500)
		_, err := s.service.MarkPaid(s.ctx, e.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("paid earnings are final", func() {
		e := s.newEarning(domain.NewUserID(), TypeFixedCommission, 750)
		_, err := s.service.Approve(s.ctx, e.ID)
		s.Require().NoError(err)
		_, err = s.service.MarkPaid(s.ctx, e.ID)
		s.Require().NoError(err)

		_, err = s.service.Reverse(s.ctx, e.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("approved earnings can be reversed", func() {
		e := s.newEarning(domain.NewUserID(), TypeTierBonus, 300)
		_, err := s.service.Approve(s.ctx, e.ID)
		s.Require().NoError(err)

		reversed, err := s.service.Reverse(s.ctx, e.ID)
		s.Require().NoError(err)
		s.Equal(StatusReversed, reversed.Status)
	})

	s.Run("unknown earnings report not found", func() {
		_, err := s.service.Approve(s.ctx, domain.NewEarningID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *EarningsServiceSuite) TestSummarize() {
	beneficiary := domain.NewUserID()
	s.newEarning(beneficiary, TypeSignupBonus, 500)
	approved := s.newEarning(beneficiary, TypePercentageCommission, 2000)
	_, err := s.service.Approve(s.ctx, approved.ID)
	s.Require().NoError(err)
	reversed := s.newEarning(beneficiary, TypeTierBonus, 300)
	_, err = s.service.Approve(s.ctx, reversed.ID)
	s.Require().NoError(err)
	_, err = s.service.Reverse(s.ctx, reversed.ID)
	s.Require().NoError(err)
	s.newEarning(domain.NewUserID(), TypeSignupBonus, 9999)

	summary, err := s.service.Summarize(s.ctx, beneficiary)
	s.Require().NoError(err)
	s.Equal(int64(500), summary.PendingCents)
	s.Equal(int64(2000), summary.ApprovedCents)
	s.Equal(int64(0), summary.PaidCents)
	s.Equal(int64(300), summary.ReversedCents)
	s.Equal(int64(2500), summary.LifetimeCents())
}

func (s *EarningsServiceSuite) TestBreakdownExcludesReversed() {
	beneficiary := domain.NewUserID()
	s.newEarning(beneficiary, TypeSignupBonus, 500)
	s.newEarning(beneficiary, TypeSignupBonus, 500)
	reversed := s.newEarning(beneficiary, TypeSignupBonus, 500)
	_, err := s.service.Reverse(s.ctx, reversed.ID)
	s.Require().NoError(err)

	buckets, err := s.store.BreakdownByBeneficiary(s.ctx, beneficiary)
	s.Require().NoError(err)
	s.Require().Len(buckets, 1)
	s.Equal(TypeSignupBonus, buckets[0].Type)
	s.Equal(int64(1000), buckets[0].Cents)
	s.Equal(int64(2), buckets[0].Count)
}
