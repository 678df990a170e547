package jwttoken

import (
	authmw "phonecheck/pkg/platform/middleware/auth"
)

// ValidatorFunc adapts a claim-mapping function to auth.TokenValidator.
type ValidatorFunc func(tokenString string) (*authmw.Claims, error)

func (f ValidatorFunc) ValidateToken(tokenString string) (*authmw.Claims, error) {
	return f(tokenString)
}

// Validator returns the middleware view of s: only subject and token ID
// leave this package.
func (s *JWTService) Validator() authmw.TokenValidator {
	return ValidatorFunc(func(tokenString string) (*authmw.Claims, error) {
		claims, err := s.ValidateToken(tokenString)
		if err != nil {
			return nil, err
		}
		return &authmw.Claims{Subject: claims.Subject, TokenID: claims.ID}, nil
	})
}
