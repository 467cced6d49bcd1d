package tracking

import (
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "refward/pkg/domain-errors"
)

// LinkBuilder produces shareable referral URLs. Each link carries the
// plain code plus a signed, short-lived token binding the link to the
// code it was minted for, so a pasted link can be verified server side.
type LinkBuilder struct {
	baseURL string
	secret  []byte
	ttl     time.Duration
}

func NewLinkBuilder(baseURL string, secret []byte, ttl time.Duration) *LinkBuilder {
	return &LinkBuilder{baseURL: baseURL, secret: secret, ttl: ttl}
}

// LinkClaims is the payload of a referral link token.
type LinkClaims struct {
	Code string `json:"code"`
	jwt.RegisteredClaims
}

// LinkParams are the optional attribution parameters carried in a link's
// query string. Empty fields are omitted from the URL.
type LinkParams struct {
	Campaign string
	Source   string
	Medium   string
	Content  string
}

// BuildLink returns the shareable URL for a code. The token is optional
// on inbound clicks; a missing or expired token degrades to a plain code
// lookup rather than rejecting the visit.
func (b *LinkBuilder) BuildLink(code string, params LinkParams, now time.Time) (string, error) {
	token, err := b.mintToken(code, now)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(b.baseURL)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "parse referral base url")
	}
	u.Path = "/r/" + code
	q := u.Query()
	q.Set("t", token)
	if params.Campaign != "" {
		q.Set("campaign", params.Campaign)
	}
	if params.Source != "" {
		q.Set("utm_source", params.Source)
	}
	if params.Medium != "" {
		q.Set("utm_medium", params.Medium)
	}
	if params.Content != "" {
		q.Set("utm_content", params.Content)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// BuildQR returns the payload to encode in a QR image for a code. The QR
// payload is the shareable link itself; rendering is left to the client.
func (b *LinkBuilder) BuildQR(code string, params LinkParams, now time.Time) (string, error) {
	return b.BuildLink(code, params, now)
}

func (b *LinkBuilder) mintToken(code string, now time.Time) (string, error) {
	claims := LinkClaims{
		Code: code,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(b.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign referral link token")
	}
	return signed, nil
}

// VerifyToken checks a link token's signature and expiry and confirms it
// was minted for the given code.
func (b *LinkBuilder) VerifyToken(token, code string, now time.Time) error {
	claims := &LinkClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return b.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "referral link token is invalid")
	}
	if !parsed.Valid || claims.Code != code {
		return dErrors.New(dErrors.CodeValidation, "referral link token does not match code")
	}
	return nil
}
