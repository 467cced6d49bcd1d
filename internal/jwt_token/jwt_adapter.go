package jwttoken

import (
	"refward/internal/platform/middleware"
	id "refward/pkg/domain"
	dErrors "refward/pkg/domain-errors"
)

// JWTServiceAdapter bridges JWTService to the middleware.TokenValidator
// interface, converting the string subject into a typed UserID.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token subject is not a valid user id")
	}
	return &middleware.TokenClaims{
		UserID:    userID,
		SessionID: claims.SessionID,
	}, nil
}
