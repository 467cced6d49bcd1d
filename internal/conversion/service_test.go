package conversion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"refward/internal/achievement"
	"refward/internal/affiliate"
	"refward/internal/code"
	"refward/internal/code/ratelimit"
	"refward/internal/conversion/mocks"
	"refward/internal/earnings"
	"refward/internal/fraud"
	"refward/internal/relationship"
	"refward/internal/tracking"
	domain "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
	"refward/pkg/platform/audit"
)

type ConversionServiceSuite struct {
	suite.Suite
	codeStore     *code.InMemoryStore
	codes         *code.Service
	trackingStore *tracking.InMemoryStore
	fraudLog      *fraud.InMemoryStore
	relationships *relationship.InMemoryStore
	earningsStore *earnings.InMemoryStore
	affiliates    *affiliate.Service
	achievements  *achievement.Engine
	auditStore    *audit.InMemoryStore
	service       *Service
	ctx           context.Context
}

func TestConversionServiceSuite(t *testing.T) {
	suite.Run(t, new(ConversionServiceSuite))
}

func (s *ConversionServiceSuite) SetupTest() {
	s.codeStore = code.NewInMemoryStore()
	s.codes = code.NewService(s.codeStore, ratelimit.NewInMemoryLimiter(),
		code.IssuePolicy{Limit: 100, Window: time.Hour})
	s.trackingStore = tracking.NewInMemoryStore()
	s.fraudLog = fraud.NewInMemoryStore()
	s.relationships = relationship.NewInMemoryStore()
	s.earningsStore = earnings.NewInMemoryStore()
	s.affiliates = affiliate.NewService(affiliate.NewInMemoryStore())
	s.achievements = achievement.NewEngine(achievement.NewInMemoryStore())
	s.auditStore = audit.NewInMemoryStore()
	s.service = s.newService()
	s.ctx = context.Background()
}

func (s *ConversionServiceSuite) newService(opts ...Option) *Service {
	base := []Option{
		WithAffiliates(s.affiliates),
		WithAchievements(s.achievements),
		WithAuditor(audit.NewPublisher(s.auditStore)),
	}
	return NewService(
		s.trackingStore,
		s.codes,
		fraud.NewDetector(domain.NewMoney(domain.DefaultCurrency, 100000)),
		s.fraudLog,
		s.relationships,
		earnings.NewCalculator(domain.NewMoney(domain.DefaultCurrency, 500), 3000, domain.NewMoney(domain.DefaultCurrency, 100)),
		s.earningsStore,
		append(base, opts...)...,
	)
}

func (s *ConversionServiceSuite) issuePercentageCode(owner domain.UserID) *code.ReferralCode {
	issued, err := s.codes.Issue(s.ctx, owner, code.IssueOptions{
		Kind:        code.KindStandard,
		RewardType:  code.RewardPercentage,
		RewardValue: 10,
	})
	s.Require().NoError(err)
	return issued
}

func (s *ConversionServiceSuite) click(c *code.ReferralCode) *tracking.ReferralTracking {
	trackingID := domain.NewTrackingID()
	record := &tracking.ReferralTracking{
		ID:          trackingID,
		CodeID:      c.ID,
		ReferrerID:  c.OwnerID,
		IP:          "203.0.113.9",
		Device:      tracking.DeviceInfo{Fingerprint: "fp-" + trackingID.String()},
		Attribution: tracking.AttributionLastClick,
		CreatedAt:   time.Now().UTC(),
	}
	s.Require().NoError(s.trackingStore.Create(s.ctx, record))
	return record
}

func (s *ConversionServiceSuite) purchase(referee domain.UserID, cents int64) Input {
	return Input{
		RefereeID: referee,
		Type:      tracking.ConversionPurchase,
		Value:     domain.NewMoney(domain.DefaultCurrency, cents),
	}
}

func (s *ConversionServiceSuite) TestProcess() {
	s.Run("settles a purchase end to end", func() {
		referrer := domain.NewUserID()
		referee := domain.NewUserID()
		issued := s.issuePercentageCode(referrer)
		record := s.click(issued)

		result, err := s.service.Process(s.ctx, record.ID, s.purchase(referee, 20000))
		s.Require().NoError(err)

		s.Equal(tracking.StateConverted, result.Tracking.State())
		s.Equal(0, result.FraudScore)
		s.False(result.Flagged)

		s.Require().NotNil(result.Relationship)
		s.Equal(referrer, result.Relationship.ReferrerID)
		s.Equal(referee, result.Relationship.RefereeID)
		s.Equal(1, result.Relationship.Level)

		s.Require().NotNil(result.PrimaryEarning)
		s.Equal(int64(2000), result.PrimaryEarning.Amount.Amount)
		s.Equal(earnings.TypePercentageCommission, result.PrimaryEarning.Type)
		s.Equal(earnings.StatusPending, result.PrimaryEarning.Status)
		s.Nil(result.CascadeEarning)

		profile, err := s.affiliates.Get(s.ctx, referrer)
		s.Require().NoError(err)
		s.Equal(int64(1), profile.LifetimeConversions)
		s.Equal(int64(2000), profile.LifetimeEarningsCents)

		rows, err := s.achievements.List(s.ctx, referrer)
		s.Require().NoError(err)
		var unlockedKeys []string
		for _, a := range rows {
			if a.Unlocked {
				unlockedKeys = append(unlockedKeys, a.Key)
			}
		}
		s.Equal([]string{"first_referral"}, unlockedKeys)

		events, err := s.auditStore.ListByActor(s.ctx, referrer)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventConversionSettled), events[0].Action)
	})

	s.Run("valueless signups pay the flat bonus", func() {
		issued := s.issuePercentageCode(domain.NewUserID())
		record := s.click(issued)

		result, err := s.service.Process(s.ctx, record.ID, Input{
			RefereeID: domain.NewUserID(),
			Type:      tracking.ConversionSignup,
		})
		s.Require().NoError(err)
		s.Require().NotNil(result.PrimaryEarning)
		s.Equal(earnings.TypeSignupBonus, result.PrimaryEarning.Type)
		s.Equal(int64(500), result.PrimaryEarning.Amount.Amount)
	})

	s.Run("valueless purchase fails before spending the click", func() {
		issued := s.issuePercentageCode(domain.NewUserID())
		record := s.click(issued)
		referee := domain.NewUserID()

		_, err := s.service.Process(s.ctx, record.ID, s.purchase(referee, 0))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		reloaded, err := s.trackingStore.FindByID(s.ctx, record.ID)
		s.Require().NoError(err)
		s.Equal(tracking.StateClicked, reloaded.State())

		// The click survives, so a corrected delivery still settles.
		result, err := s.service.Process(s.ctx, record.ID, s.purchase(referee, 10000))
		s.Require().NoError(err)
		s.Equal(tracking.StateConverted, result.Tracking.State())
	})

	s.Run("second delivery loses the gate", func() {
		issued := s.issuePercentageCode(domain.NewUserID())
		record := s.click(issued)
		referee := domain.NewUserID()

		_, err := s.service.Process(s.ctx, record.ID, s.purchase(referee, 10000))
		s.Require().NoError(err)

		_, err = s.service.Process(s.ctx, record.ID, s.purchase(referee, 10000))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown tracking id reports not found", func() {
		_, err := s.service.Process(s.ctx, domain.NewTrackingID(), s.purchase(domain.NewUserID(), 100))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("paused code fails conversion without settling", func() {
		issued := s.issuePercentageCode(domain.NewUserID())
		record := s.click(issued)
		_, err := s.codes.Pause(s.ctx, issued.ID)
		s.Require().NoError(err)

		_, err = s.service.Process(s.ctx, record.ID, s.purchase(domain.NewUserID(), 10000))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		reloaded, err := s.trackingStore.FindByID(s.ctx, record.ID)
		s.Require().NoError(err)
		s.Equal(tracking.StateClicked, reloaded.State())
	})
}

func (s *ConversionServiceSuite) TestConcurrentDuplicateDelivery() {
	issued := s.issuePercentageCode(domain.NewUserID())
	record := s.click(issued)
	referee := domain.NewUserID()

	const deliveries = 8
	var wg sync.WaitGroup
	results := make(chan error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Process(s.ctx, record.ID, s.purchase(referee, 20000))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var settled, conflicted int
	for err := range results {
		if err == nil {
			settled++
		} else {
			s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
			conflicted++
		}
	}
	s.Equal(1, settled)
	s.Equal(deliveries-1, conflicted)

	// Exactly one primary earning exists for the winning delivery.
	listed, err := s.earningsStore.ListByBeneficiary(s.ctx, issued.OwnerID)
	s.Require().NoError(err)
	s.Len(listed, 1)
}

func (s *ConversionServiceSuite) TestCascade() {
	s.Run("pays one level up the chain", func() {
		grandparent := domain.NewUserID()
		parent := domain.NewUserID()
		referee := domain.NewUserID()

		// parent was themself referred by grandparent.
		s.Require().NoError(s.relationships.CreateIfFirstForReferee(s.ctx, &relationship.Relationship{
			ID:         domain.NewRelationshipID(),
			ReferrerID: grandparent,
			RefereeID:  parent,
			CodeID:     domain.NewCodeID(),
			TrackingID: domain.NewTrackingID(),
			Level:      1,
			Status:     relationship.StatusActive,
			CreatedAt:  time.Now().UTC(),
		}))

		issued := s.issuePercentageCode(parent)
		record := s.click(issued)

		result, err := s.service.Process(s.ctx, record.ID, s.purchase(referee, 10000))
		s.Require().NoError(err)
		s.Require().NotNil(result.PrimaryEarning)
		s.Equal(int64(1000), result.PrimaryEarning.Amount.Amount)

		s.Require().NotNil(result.CascadeEarning)
		s.Equal(grandparent, result.CascadeEarning.BeneficiaryID)
		s.Equal(earnings.TypeTierBonus, result.CascadeEarning.Type)
		s.Equal(int64(300), result.CascadeEarning.Amount.Amount)
	})

	s.Run("sub-threshold cascades are skipped", func() {
		grandparent := domain.NewUserID()
		parent := domain.NewUserID()

		s.Require().NoError(s.relationships.CreateIfFirstForReferee(s.ctx, &relationship.Relationship{
			ID:         domain.NewRelationshipID(),
			ReferrerID: grandparent,
			RefereeID:  parent,
			CodeID:     domain.NewCodeID(),
			TrackingID: domain.NewTrackingID(),
			Level:      1,
			Status:     relationship.StatusActive,
			CreatedAt:  time.Now().UTC(),
		}))

		issued := s.issuePercentageCode(parent)
		record := s.click(issued)

		// 10% of 20.00 is 2.00; 30% of that is 0.60, under the minimum.
		result, err := s.service.Process(s.ctx, record.ID, s.purchase(domain.NewUserID(), 2000))
		s.Require().NoError(err)
		s.Equal(int64(200), result.PrimaryEarning.Amount.Amount)
		s.Nil(result.CascadeEarning)

		listed, err := s.earningsStore.ListByBeneficiary(s.ctx, grandparent)
		s.Require().NoError(err)
		s.Empty(listed)
	})

	s.Run("cascade never recurses beyond one level", func() {
		great := domain.NewUserID()
		grandparent := domain.NewUserID()
		parent := domain.NewUserID()

		for _, edge := range []struct{ referrer, referee domain.UserID }{
			{great, grandparent},
			{grandparent, parent},
		} {
			s.Require().NoError(s.relationships.CreateIfFirstForReferee(s.ctx, &relationship.Relationship{
				ID:         domain.NewRelationshipID(),
				ReferrerID: edge.referrer,
				RefereeID:  edge.referee,
				CodeID:     domain.NewCodeID(),
				TrackingID: domain.NewTrackingID(),
				Level:      1,
				Status:     relationship.StatusActive,
				CreatedAt:  time.Now().UTC(),
			}))
		}

		issued := s.issuePercentageCode(parent)
		record := s.click(issued)

		result, err := s.service.Process(s.ctx, record.ID, s.purchase(domain.NewUserID(), 10000))
		s.Require().NoError(err)
		s.Require().NotNil(result.CascadeEarning)
		s.Equal(grandparent, result.CascadeEarning.BeneficiaryID)

		listed, err := s.earningsStore.ListByBeneficiary(s.ctx, great)
		s.Require().NoError(err)
		s.Empty(listed)
	})
}

func (s *ConversionServiceSuite) TestFraud() {
	s.Run("self referral blocks and moves nothing", func() {
		referrer := domain.NewUserID()
		issued := s.issuePercentageCode(referrer)
		record := s.click(issued)

		_, err := s.service.Process(s.ctx, record.ID, s.purchase(referrer, 20000))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeFraudBlocked))

		reloaded, err := s.trackingStore.FindByID(s.ctx, record.ID)
		s.Require().NoError(err)
		s.Equal(tracking.StateBlocked, reloaded.State())

		logged, err := s.fraudLog.ListByReferrer(s.ctx, referrer)
		s.Require().NoError(err)
		s.Require().Len(logged, 1)
		s.Equal(fraud.ActionBlock, logged[0].Action)
		s.Equal(fraud.SeverityCritical, logged[0].Severity)

		listed, err := s.earningsStore.ListByBeneficiary(s.ctx, referrer)
		s.Require().NoError(err)
		s.Empty(listed)

		_, err = s.relationships.FindByReferee(s.ctx, referrer)
		s.Require().Error(err)
	})

	s.Run("repeated ip flags but still settles", func() {
		referrer := domain.NewUserID()
		issued := s.issuePercentageCode(referrer)

		// Four earlier clicks from the same address.
		for i := 0; i < 4; i++ {
			s.click(issued)
		}
		record := s.click(issued)

		result, err := s.service.Process(s.ctx, record.ID, s.purchase(domain.NewUserID(), 20000))
		s.Require().NoError(err)
		s.True(result.Flagged)
		s.Equal(60, result.FraudScore)
		s.NotNil(result.PrimaryEarning)

		logged, err := s.fraudLog.ListByReferrer(s.ctx, referrer)
		s.Require().NoError(err)
		s.Require().Len(logged, 1)
		s.Equal(fraud.ActionFlag, logged[0].Action)
	})
}

func (s *ConversionServiceSuite) TestFirstAttributionWins() {
	firstReferrer := domain.NewUserID()
	secondReferrer := domain.NewUserID()
	referee := domain.NewUserID()

	firstCode := s.issuePercentageCode(firstReferrer)
	firstClick := s.click(firstCode)
	_, err := s.service.Process(s.ctx, firstClick.ID, s.purchase(referee, 10000))
	s.Require().NoError(err)

	secondCode := s.issuePercentageCode(secondReferrer)
	secondClick := s.click(secondCode)
	result, err := s.service.Process(s.ctx, secondClick.ID, s.purchase(referee, 10000))
	s.Require().NoError(err)

	// The conversion settles, but the relationship and the money stay
	// with the referrer of record.
	s.Equal(tracking.StateConverted, result.Tracking.State())
	s.Equal(firstReferrer, result.Relationship.ReferrerID)
	s.Nil(result.PrimaryEarning)

	listed, err := s.earningsStore.ListByBeneficiary(s.ctx, secondReferrer)
	s.Require().NoError(err)
	s.Empty(listed)
}

func (s *ConversionServiceSuite) TestAffiliateFailureSurfacesAfterSettlement() {
	ctrl := gomock.NewController(s.T())
	defer ctrl.Finish()

	ledger := mocks.NewMockAffiliateLedger(ctrl)
	ledger.EXPECT().
		RecordConversion(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeInternal, "affiliate store unavailable"))

	service := s.newService(WithAffiliates(ledger))

	issued := s.issuePercentageCode(domain.NewUserID())
	record := s.click(issued)

	_, err := service.Process(s.ctx, record.ID, s.purchase(domain.NewUserID(), 20000))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	// The conversion itself is not unwound.
	reloaded, err := s.trackingStore.FindByID(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(tracking.StateConverted, reloaded.State())

	listed, err := s.earningsStore.ListByBeneficiary(s.ctx, issued.OwnerID)
	s.Require().NoError(err)
	s.Len(listed, 1)
}
