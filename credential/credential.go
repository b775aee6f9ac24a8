/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package credential holds the access/refresh token pair of the admin session.
//
// Stores publish every change on a Bus, so the request client, persistence and UI layers can
// observe credential updates without sharing global state.
package credential

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is the token pair issued by the backend on login and on every refresh.
type Credential struct {
	AccessToken  string `yaml:"token" json:"token"`
	RefreshToken string `yaml:"refreshToken" json:"refreshToken"`

	// UserID is sent along with the refresh request when the backend requires it.
	UserID string `yaml:"userId,omitempty" json:"userId,omitempty"`
}

// IsZero reports whether the credential carries no tokens at all.
func (c Credential) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Store keeps the current credential. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the current credential and false if there is none.
	Get() (Credential, bool)
	// Set replaces the current credential.
	Set(c Credential) error
	// Clear removes the current credential.
	Clear() error
}

// ErrNotJWT is returned by AccessTokenExpiry for tokens that are not JWTs.
var ErrNotJWT = errors.New("access token is not a JWT")

// AccessTokenExpiry returns the "exp" claim of a JWT access token without verifying its signature.
// It is meant for diagnostics only: the backend remains the authority on token validity.
func AccessTokenExpiry(accessToken string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, errors.Join(ErrNotJWT, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
