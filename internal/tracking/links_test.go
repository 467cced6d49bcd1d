package tracking

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "refward/pkg/domain-errors"
)

type LinkBuilderSuite struct {
	suite.Suite
	builder *LinkBuilder
	now     time.Time
}

func TestLinkBuilderSuite(t *testing.T) {
	suite.Run(t, new(LinkBuilderSuite))
}

func (s *LinkBuilderSuite) SetupTest() {
	s.builder = NewLinkBuilder("https://refward.example", []byte("test-secret"), time.Hour)
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *LinkBuilderSuite) tokenFrom(link string) string {
	parsed, err := url.Parse(link)
	s.Require().NoError(err)
	return parsed.Query().Get("t")
}

func (s *LinkBuilderSuite) TestBuildLink() {
	link, err := s.builder.BuildLink("SUMMER25", LinkParams{}, s.now)
	s.Require().NoError(err)

	parsed, err := url.Parse(link)
	s.Require().NoError(err)
	s.Equal("/r/SUMMER25", parsed.Path)
	s.NotEmpty(parsed.Query().Get("t"))
}

func (s *LinkBuilderSuite) TestBuildLinkWithParams() {
	link, err := s.builder.BuildLink("SUMMER25", LinkParams{
		Campaign: "june-launch",
		Source:   "newsletter",
		Medium:   "email",
	}, s.now)
	s.Require().NoError(err)

	parsed, err := url.Parse(link)
	s.Require().NoError(err)
	q := parsed.Query()
	s.Equal("june-launch", q.Get("campaign"))
	s.Equal("newsletter", q.Get("utm_source"))
	s.Equal("email", q.Get("utm_medium"))
	s.Empty(q.Get("utm_content"), "empty params stay out of the URL")
}

func (s *LinkBuilderSuite) TestVerifyToken() {
	link, err := s.builder.BuildLink("SUMMER25", LinkParams{}, s.now)
	s.Require().NoError(err)
	token := s.tokenFrom(link)

	s.Run("accepts a fresh token for its own code", func() {
		s.NoError(s.builder.VerifyToken(token, "SUMMER25", s.now.Add(time.Minute)))
	})

	s.Run("rejects a token minted for a different code", func() {
		err := s.builder.VerifyToken(token, "OTHER999", s.now.Add(time.Minute))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects an expired token", func() {
		err := s.builder.VerifyToken(token, "SUMMER25", s.now.Add(2*time.Hour))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects a token signed with a different secret", func() {
		other := NewLinkBuilder("https://refward.example", []byte("other-secret"), time.Hour)
		err := other.VerifyToken(token, "SUMMER25", s.now.Add(time.Minute))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *LinkBuilderSuite) TestBuildQR() {
	link, err := s.builder.BuildLink("SUMMER25", LinkParams{}, s.now)
	s.Require().NoError(err)
	qr, err := s.builder.BuildQR("SUMMER25", LinkParams{}, s.now)
	s.Require().NoError(err)

	// Tokens carry a random nonce, so compare structure rather than bytes.
	s.Equal(s.pathOf(link), s.pathOf(qr))
}

func (s *LinkBuilderSuite) pathOf(link string) string {
	parsed, err := url.Parse(link)
	s.Require().NoError(err)
	return parsed.Host + parsed.Path
}
