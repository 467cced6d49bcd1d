package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"refward/internal/achievement"
	"refward/internal/affiliate"
	"refward/internal/analytics"
	"refward/internal/code"
	"refward/internal/code/ratelimit"
	"refward/internal/earnings"
	jwttoken "refward/internal/jwt_token"
	"refward/internal/relationship"
	"refward/internal/tracking"
	domain "refward/pkg/domain"
)

type AnalyticsHandlerSuite struct {
	suite.Suite
	jwt          *jwttoken.JWTService
	codes        *code.Service
	earnings     *earnings.InMemoryStore
	achievements *achievement.Engine
	router       chi.Router
	user         domain.UserID
}

func TestAnalyticsHandlerSuite(t *testing.T) {
	suite.Run(t, new(AnalyticsHandlerSuite))
}

func (s *AnalyticsHandlerSuite) SetupTest() {
	s.codes = code.NewService(code.NewInMemoryStore(), ratelimit.NewInMemoryLimiter(),
		code.IssuePolicy{Limit: 100, Window: time.Hour})
	s.earnings = earnings.NewInMemoryStore()
	s.achievements = achievement.NewEngine(achievement.NewInMemoryStore())

	service := analytics.NewService(s.codes, tracking.NewInMemoryStore(), s.earnings,
		affiliate.NewService(affiliate.NewInMemoryStore()), s.achievements,
		relationship.NewInMemoryStore())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.jwt = jwttoken.NewJWTService("analytics-test-key", "refward-test")
	handler := New(service, s.achievements, logger, nil, jwttoken.NewJWTServiceAdapter(s.jwt))
	s.router = chi.NewRouter()
	handler.Register(s.router)
	s.user = domain.NewUserID()
}

func (s *AnalyticsHandlerSuite) token(userID domain.UserID) string {
	token, err := s.jwt.GenerateAccessToken(userID, "session-1", time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *AnalyticsHandlerSuite) get(target string, userID domain.UserID) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Authorization", "Bearer "+s.token(userID))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *AnalyticsHandlerSuite) TestOverview() {
	s.Run("empty dashboard defaults to bronze and all time", func() {
		w := s.get("/analytics/overview", s.user)

		s.Equal(http.StatusOK, w.Code)
		var overview analytics.Overview
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &overview))
		s.Equal(analytics.TimeframeAll, overview.Timeframe)
		s.Equal(affiliate.TierBronze, overview.Tier)
		s.Zero(overview.Performance.Clicks)
	})

	s.Run("honors the timeframe parameter", func() {
		w := s.get("/analytics/overview?timeframe=7d", s.user)

		s.Equal(http.StatusOK, w.Code)
		var overview analytics.Overview
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &overview))
		s.Equal(analytics.TimeframeWeek, overview.Timeframe)
	})

	s.Run("counts issued codes", func() {
		_, err := s.codes.Issue(context.Background(), s.user, code.IssueOptions{
			Kind:        code.KindStandard,
			RewardType:  code.RewardPercentage,
			RewardValue: 10,
		})
		s.Require().NoError(err)

		w := s.get("/analytics/overview", s.user)

		s.Equal(http.StatusOK, w.Code)
		var overview analytics.Overview
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &overview))
		s.Equal(1, overview.Performance.TotalCodes)
		s.Equal(1, overview.Performance.ActiveCodes)
	})

	s.Run("rejects an unknown timeframe", func() {
		w := s.get("/analytics/overview?timeframe=14d", s.user)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *AnalyticsHandlerSuite) TestAchievements() {
	_, err := s.achievements.Recompute(context.Background(), s.user, achievement.Stats{
		Relationships: 1,
	})
	s.Require().NoError(err)

	w := s.get("/achievements", s.user)

	s.Equal(http.StatusOK, w.Code)
	var resp struct {
		Achievements []achievement.Achievement `json:"achievements"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Require().NotEmpty(resp.Achievements)

	// Unlocked rows sort first; the rest report progress toward their
	// targets.
	s.Equal("first_referral", resp.Achievements[0].Key)
	s.True(resp.Achievements[0].Unlocked)
	for _, a := range resp.Achievements[1:] {
		s.False(a.Unlocked)
		s.Positive(a.Target)
	}
}
