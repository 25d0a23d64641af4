package jwttoken

import (
	authmw "vendemos/pkg/platform/middleware/auth"
)

// MiddlewareValidator lets the auth middleware validate tokens without
// depending on the jwt library's claim types.
type MiddlewareValidator struct {
	tokens *JWTService
}

var _ authmw.JWTValidator = (*MiddlewareValidator)(nil)

func NewMiddlewareValidator(tokens *JWTService) *MiddlewareValidator {
	return &MiddlewareValidator{tokens: tokens}
}

func (v *MiddlewareValidator) ValidateToken(raw string) (*authmw.JWTClaims, error) {
	claims, err := v.tokens.ValidateToken(raw)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{UserID: claims.UserID, JTI: claims.ID}, nil
}
