/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package credential

import (
	"errors"

	"golang.org/x/oauth2"
)

// ErrNoCredential is returned when the store holds no access token.
var ErrNoCredential = errors.New("no credential stored")

type storeTokenSource struct {
	store Store
}

// TokenSource exposes the access token kept in store as an oauth2.TokenSource.
// Expiry is filled from the JWT "exp" claim when the access token is a JWT.
// The source never refreshes tokens, that is up to the request client.
func TokenSource(store Store) oauth2.TokenSource {
	return storeTokenSource{store: store}
}

func (ts storeTokenSource) Token() (*oauth2.Token, error) {
	c, ok := ts.store.Get()
	if !ok || c.AccessToken == "" {
		return nil, ErrNoCredential
	}
	tok := &oauth2.Token{AccessToken: c.AccessToken, RefreshToken: c.RefreshToken, TokenType: "Bearer"}
	if exp, err := AccessTokenExpiry(c.AccessToken); err == nil {
		tok.Expiry = exp
	}
	return tok, nil
}
