package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"refward/internal/affiliate"
	jwttoken "refward/internal/jwt_token"
	id "refward/pkg/domain"
)

type AffiliateHandlerSuite struct {
	suite.Suite
	jwt    *jwttoken.JWTService
	router chi.Router
	user   id.UserID
}

func TestAffiliateHandlerSuite(t *testing.T) {
	suite.Run(t, new(AffiliateHandlerSuite))
}

func (s *AffiliateHandlerSuite) SetupTest() {
	service := affiliate.NewService(affiliate.NewInMemoryStore())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.jwt = jwttoken.NewJWTService("affiliate-test-key", "refward-test")
	handler := New(service, logger, nil, jwttoken.NewJWTServiceAdapter(s.jwt))
	s.router = chi.NewRouter()
	handler.Register(s.router)
	s.user = id.NewUserID()
}

func (s *AffiliateHandlerSuite) token(userID id.UserID) string {
	token, err := s.jwt.GenerateAccessToken(userID, "session-1", time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *AffiliateHandlerSuite) do(method, target string, body any, userID id.UserID) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer "+s.token(userID))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *AffiliateHandlerSuite) TestEnrollAndProfile() {
	s.Run("enroll creates a bronze profile", func() {
		w := s.do(http.MethodPost, "/affiliate/enroll", nil, s.user)

		s.Equal(http.StatusOK, w.Code)
		var profile affiliate.Profile
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &profile))
		s.Equal(s.user, profile.UserID)
		s.Equal(affiliate.TierBronze, profile.Tier)
	})

	s.Run("enroll is idempotent", func() {
		w := s.do(http.MethodPost, "/affiliate/enroll", nil, s.user)
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("profile returns the enrolled state", func() {
		w := s.do(http.MethodGet, "/affiliate/profile", nil, s.user)

		s.Equal(http.StatusOK, w.Code)
		var profile affiliate.Profile
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &profile))
		s.Equal(affiliate.TierBronze, profile.Tier)
	})

	s.Run("profile of an unenrolled user reads as not found", func() {
		w := s.do(http.MethodGet, "/affiliate/profile", nil, id.NewUserID())
		s.Equal(http.StatusNotFound, w.Code)
	})
}

func (s *AffiliateHandlerSuite) TestPayoutAccount() {
	s.do(http.MethodPost, "/affiliate/enroll", nil, s.user)

	s.Run("stores and verifies the account reference", func() {
		w := s.do(http.MethodPut, "/affiliate/payout-account",
			payoutAccountRequest{Account: "DE89370400440532013000"}, s.user)
		s.Equal(http.StatusNoContent, w.Code)

		w = s.do(http.MethodPost, "/affiliate/payout-account/verify",
			payoutAccountRequest{Account: "DE89370400440532013000"}, s.user)
		s.Equal(http.StatusOK, w.Code)
		var resp map[string]bool
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.True(resp["match"])
	})

	s.Run("wrong reference does not verify", func() {
		w := s.do(http.MethodPost, "/affiliate/payout-account/verify",
			payoutAccountRequest{Account: "GB29NWBK60161331926819"}, s.user)
		s.Equal(http.StatusOK, w.Code)
		var resp map[string]bool
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.False(resp["match"])
	})

	s.Run("empty account is rejected", func() {
		w := s.do(http.MethodPut, "/affiliate/payout-account",
			payoutAccountRequest{Account: "   "}, s.user)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("profile never exposes the hash", func() {
		w := s.do(http.MethodGet, "/affiliate/profile", nil, s.user)
		s.Equal(http.StatusOK, w.Code)
		s.NotContains(w.Body.String(), "payout")
	})
}
