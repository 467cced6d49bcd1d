package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"refward/internal/code"
	"refward/internal/code/ratelimit"
	id "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
	"refward/pkg/requestcontext"
)

type TrackingServiceSuite struct {
	suite.Suite
	store     *InMemoryStore
	codeStore *code.InMemoryStore
	codes     *code.Service
	service   *Service
	ctx       context.Context
}

func TestTrackingServiceSuite(t *testing.T) {
	suite.Run(t, new(TrackingServiceSuite))
}

func (s *TrackingServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.codeStore = code.NewInMemoryStore()
	s.codes = code.NewService(
		s.codeStore,
		ratelimit.NewInMemoryLimiter(),
		code.IssuePolicy{Limit: 100, Window: time.Hour},
	)
	s.service = NewService(s.store, s.codes,
		WithLinkBuilder(NewLinkBuilder("https://refward.example", []byte("test-secret"), time.Hour)),
	)
	s.ctx = context.Background()
}

// SetupSubTest gives every s.Run a fresh set of stores; the subtests assert
// on store contents and assume they start empty.
func (s *TrackingServiceSuite) SetupSubTest() {
	s.SetupTest()
}

func (s *TrackingServiceSuite) issueCode() *code.ReferralCode {
	issued, err := s.codes.Issue(s.ctx, id.NewUserID(), code.IssueOptions{
		Kind:        code.KindStandard,
		RewardType:  code.RewardPercentage,
		RewardValue: 10,
	})
	s.Require().NoError(err)
	return issued
}

func (s *TrackingServiceSuite) clickContext() ClickContext {
	return ClickContext{
		SourceURL:  "https://twitter.com/someone/status/1",
		LandingURL: "https://refward.example/signup",
		IP:         "203.0.113.9",
		UserAgent:  "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
		SessionID:  "sess-1",
	}
}

// createFailingStore refuses every Create; reads pass through.
type createFailingStore struct {
	*InMemoryStore
}

func (s *createFailingStore) Create(context.Context, *ReferralTracking) error {
	return errors.New("storage down")
}

func (s *TrackingServiceSuite) TestTrack() {
	s.Run("records a click against a valid code", func() {
		issued := s.issueCode()
		record, err := s.service.Track(s.ctx, issued.Code, s.clickContext())
		s.Require().NoError(err)

		s.Equal(issued.ID, record.CodeID)
		s.Equal(issued.OwnerID, record.ReferrerID)
		s.Equal(StateClicked, record.State())
		s.Equal(AttributionLastClick, record.Attribution)
		s.NotEmpty(record.Device.Fingerprint)
		s.True(record.Device.Mobile)

		reloaded, err := s.codes.Get(s.ctx, issued.ID)
		s.Require().NoError(err)
		s.Equal(int64(1), reloaded.CurrentUses)
	})

	s.Run("accepts unnormalized code input", func() {
		issued := s.issueCode()
		record, err := s.service.Track(s.ctx, "  "+issued.Code+"  ", s.clickContext())
		s.Require().NoError(err)
		s.Equal(issued.ID, record.CodeID)
	})

	s.Run("writes nothing for an unknown code", func() {
		_, err := s.service.Track(s.ctx, "NOSUCH99", s.clickContext())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Empty(s.store.All())
	})

	s.Run("writes nothing for a paused code", func() {
		issued := s.issueCode()
		_, err := s.codes.Pause(s.ctx, issued.ID)
		s.Require().NoError(err)

		_, err = s.service.Track(s.ctx, issued.Code, s.clickContext())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Empty(s.store.All())
	})

	s.Run("respects the code's use limit", func() {
		maxUses := int64(1)
		issued, err := s.codes.Issue(s.ctx, id.NewUserID(), code.IssueOptions{
			Kind:        code.KindStandard,
			RewardType:  code.RewardFixed,
			RewardValue: 500,
			MaxUses:     &maxUses,
		})
		s.Require().NoError(err)

		_, err = s.service.Track(s.ctx, issued.Code, s.clickContext())
		s.Require().NoError(err)

		_, err = s.service.Track(s.ctx, issued.Code, s.clickContext())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Len(s.store.All(), 1)
	})

	s.Run("persist failure surfaces with the reserved use consumed", func() {
		failing := &createFailingStore{InMemoryStore: NewInMemoryStore()}
		svc := NewService(failing, s.codes)
		issued := s.issueCode()

		_, err := svc.Track(s.ctx, issued.Code, s.clickContext())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.Empty(failing.All())

		// The use was reserved before the failed write and stays spent;
		// uses bound abuse, they do not account for money.
		reloaded, err := s.codes.Get(s.ctx, issued.ID)
		s.Require().NoError(err)
		s.Equal(int64(1), reloaded.CurrentUses)
	})

	s.Run("falls back to a derived fingerprint", func() {
		issued := s.issueCode()
		clickCtx := s.clickContext()
		clickCtx.Fingerprint = ""
		record, err := s.service.Track(s.ctx, issued.Code, clickCtx)
		s.Require().NoError(err)
		s.Contains(record.Device.Fingerprint, "ua:")

		again, err := s.service.Track(s.ctx, issued.Code, clickCtx)
		s.Require().NoError(err)
		s.Equal(record.Device.Fingerprint, again.Device.Fingerprint)
	})

	s.Run("stamps the request clock", func() {
		issued := s.issueCode()
		at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(s.ctx, at)
		record, err := s.service.Track(ctx, issued.Code, s.clickContext())
		s.Require().NoError(err)
		s.Equal(at, record.CreatedAt)
	})
}

func (s *TrackingServiceSuite) TestShareLink() {
	s.Run("builds a verifiable link for a valid code", func() {
		issued := s.issueCode()
		link, err := s.service.ShareLink(s.ctx, issued.Code, LinkParams{})
		s.Require().NoError(err)
		s.Contains(link, "https://refward.example/r/"+issued.Code)
		s.Contains(link, "t=")
	})

	s.Run("refuses a link for an invalid code", func() {
		_, err := s.service.ShareLink(s.ctx, "NOSUCH99", LinkParams{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
