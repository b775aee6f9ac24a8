/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package mockbackend

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var errStaleGeneration = errors.New("token generation is expired")

type accessClaims struct {
	jwt.RegisteredClaims
	UserID     int    `json:"uid"`
	Generation uint64 `json:"gen"`
}

// tokenIssuer signs access tokens with HS256 and produces opaque refresh tokens.
type tokenIssuer struct {
	key []byte
	ttl time.Duration
}

func (ti tokenIssuer) issueAccessToken(u User, generation uint64) (string, error) {
	now := time.Now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
		UserID:     u.ID,
		Generation: generation,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.key)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (ti tokenIssuer) issueRefreshToken() string {
	return uuid.NewString()
}

// verifyAccessToken checks the signature, the expiration and the generation of the token.
func (ti tokenIssuer) verifyAccessToken(token string, generation uint64) (*accessClaims, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return ti.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Generation != generation {
		return nil, errStaleGeneration
	}
	return claims, nil
}

func newSigningKey() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
