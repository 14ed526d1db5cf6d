package token

import (
	authmw "faceguard/pkg/platform/middleware/auth"
)

// MiddlewareAdapter exposes the credential service through the middleware's
// validator interface.
type MiddlewareAdapter struct {
	service *Service
}

func NewMiddlewareAdapter(service *Service) *MiddlewareAdapter {
	return &MiddlewareAdapter{service: service}
}

func (a *MiddlewareAdapter) Validate(tokenString string) (*authmw.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.Claims{
		Subject: claims.Subject,
		Role:    claims.Role,
	}, nil
}
