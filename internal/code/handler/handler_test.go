package handler

import (
	"bytes"
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

	"refward/internal/code"
	"refward/internal/code/ratelimit"
	"refward/internal/platform/middleware"
	id "refward/pkg/domain"
)

type CodeHandlerSuite struct {
	suite.Suite
	codes   *code.Service
	handler *Handler
	owner   id.UserID
}

func TestCodeHandlerSuite(t *testing.T) {
	suite.Run(t, new(CodeHandlerSuite))
}

func (s *CodeHandlerSuite) SetupTest() {
	s.codes = code.NewService(code.NewInMemoryStore(), ratelimit.NewInMemoryLimiter(),
		code.IssuePolicy{Limit: 100, Window: time.Hour})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.handler = New(s.codes, logger, nil, nil)
	s.owner = id.NewUserID()
}

func (s *CodeHandlerSuite) request(method, target string, body any, userID id.UserID) *http.Request {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, target, reader)
	return req.WithContext(middleware.WithUser(req.Context(), userID))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func (s *CodeHandlerSuite) issue(owner id.UserID) *code.ReferralCode {
	issued, err := s.codes.Issue(context.Background(), owner, code.IssueOptions{
		Kind:        code.KindStandard,
		RewardType:  code.RewardPercentage,
		RewardValue: 10,
	})
	s.Require().NoError(err)
	return issued
}

func (s *CodeHandlerSuite) TestIssue() {
	s.Run("creates a code for the authenticated user", func() {
		w := httptest.NewRecorder()
		s.handler.handleIssue(w, s.request(http.MethodPost, "/referral-codes", issueRequest{
			RewardType:  "percentage",
			RewardValue: 15,
		}, s.owner))

		s.Equal(http.StatusCreated, w.Code)
		var created code.ReferralCode
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &created))
		s.Equal(s.owner, created.OwnerID)
		s.Equal(code.KindStandard, created.Kind)
		s.NotEmpty(created.Code)
	})

	s.Run("rejects an invalid reward", func() {
		w := httptest.NewRecorder()
		s.handler.handleIssue(w, s.request(http.MethodPost, "/referral-codes", issueRequest{
			RewardType:  "percentage",
			RewardValue: 150,
		}, s.owner))

		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("rejects a malformed body", func() {
		req := httptest.NewRequest(http.MethodPost, "/referral-codes", bytes.NewReader([]byte("{")))
		req = req.WithContext(middleware.WithUser(req.Context(), s.owner))
		w := httptest.NewRecorder()
		s.handler.handleIssue(w, req)

		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("rejects a malformed campaign id", func() {
		w := httptest.NewRecorder()
		s.handler.handleIssue(w, s.request(http.MethodPost, "/referral-codes", issueRequest{
			RewardType:  "percentage",
			RewardValue: 15,
			CampaignID:  "not-a-uuid",
		}, s.owner))

		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *CodeHandlerSuite) TestList() {
	s.issue(s.owner)
	s.issue(s.owner)
	s.issue(id.NewUserID())

	w := httptest.NewRecorder()
	s.handler.handleList(w, s.request(http.MethodGet, "/referral-codes", nil, s.owner))

	s.Equal(http.StatusOK, w.Code)
	var resp struct {
		Codes []code.ReferralCode `json:"codes"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Len(resp.Codes, 2)
}

func (s *CodeHandlerSuite) TestGet() {
	issued := s.issue(s.owner)

	s.Run("returns an owned code", func() {
		req := withURLParam(s.request(http.MethodGet, "/referral-codes/"+issued.ID.String(), nil, s.owner),
			"codeID", issued.ID.String())
		w := httptest.NewRecorder()
		s.handler.handleGet(w, req)

		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("hides someone else's code", func() {
		req := withURLParam(s.request(http.MethodGet, "/referral-codes/"+issued.ID.String(), nil, id.NewUserID()),
			"codeID", issued.ID.String())
		w := httptest.NewRecorder()
		s.handler.handleGet(w, req)

		s.Equal(http.StatusNotFound, w.Code)
	})

	s.Run("rejects a malformed id", func() {
		req := withURLParam(s.request(http.MethodGet, "/referral-codes/nope", nil, s.owner),
			"codeID", "nope")
		w := httptest.NewRecorder()
		s.handler.handleGet(w, req)

		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *CodeHandlerSuite) TestLifecycle() {
	issued := s.issue(s.owner)

	s.Run("pause suspends the code", func() {
		req := withURLParam(s.request(http.MethodPost, "/x", nil, s.owner), "codeID", issued.ID.String())
		w := httptest.NewRecorder()
		s.handler.handlePause(w, req)

		s.Equal(http.StatusOK, w.Code)
		var paused code.ReferralCode
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &paused))
		s.Equal(code.StatusPaused, paused.Status)
	})

	s.Run("resume reactivates it", func() {
		req := withURLParam(s.request(http.MethodPost, "/x", nil, s.owner), "codeID", issued.ID.String())
		w := httptest.NewRecorder()
		s.handler.handleResume(w, req)

		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("revoked codes cannot resume", func() {
		req := withURLParam(s.request(http.MethodPost, "/x", nil, s.owner), "codeID", issued.ID.String())
		w := httptest.NewRecorder()
		s.handler.handleRevoke(w, req)
		s.Equal(http.StatusOK, w.Code)

		req = withURLParam(s.request(http.MethodPost, "/x", nil, s.owner), "codeID", issued.ID.String())
		w = httptest.NewRecorder()
		s.handler.handleResume(w, req)
		s.Equal(http.StatusConflict, w.Code)
	})
}
