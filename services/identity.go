package services

import (
	"context"
	"fmt"

	"scavenger-hunt/utils"
)

// Identity is the caller as established by the identity provider.
type Identity struct {
	UserID string
	Email  string
}

// IdentityProvider turns a session token into a stable user id.
type IdentityProvider interface {
	Identify(ctx context.Context, token string) (*Identity, error)
}

// JWTIdentity verifies HS256 sessions signed with a secret shared with the provider.
type JWTIdentity struct {
	Secret string
}

func NewJWTIdentity(secret string) *JWTIdentity {
	return &JWTIdentity{Secret: secret}
}

func (j *JWTIdentity) Identify(_ context.Context, token string) (*Identity, error) {
	claims, err := utils.ParseSessionToken(j.Secret, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email}, nil
}
