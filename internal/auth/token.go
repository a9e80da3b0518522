package auth

import (
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
)

// AccessToken is a bearer/refresh token pair. Two tokens with the same
// fields are equal.
type AccessToken struct {
	TokenType    string
	AccessToken  string
	RefreshToken string
	Scope        string
}

var tokenFields = []field[AccessToken]{
	{wire: "token_type", ptr: func(t *AccessToken) *string { return &t.TokenType }},
	{wire: "access_token", ptr: func(t *AccessToken) *string { return &t.AccessToken }},
	{wire: "refresh_token", ptr: func(t *AccessToken) *string { return &t.RefreshToken }},
	{wire: "scope", ptr: func(t *AccessToken) *string { return &t.Scope }},
}

// TokenFromWire builds an AccessToken from a token endpoint response.
func TokenFromWire(doc map[string]any) AccessToken {
	var t AccessToken
	decodeFields(tokenFields, doc, &t)
	return t
}

func (t AccessToken) Wire() map[string]any {
	return encodeFields(tokenFields, &t)
}

func (t AccessToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Wire())
}

func (t *AccessToken) UnmarshalJSON(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}
	*t = TokenFromWire(doc)
	return nil
}

// OAuth2 converts t for use with golang.org/x/oauth2 transports.
func (t AccessToken) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		TokenType:    t.TokenType,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
	if t.Scope != "" {
		tok = tok.WithExtra(map[string]any{"scope": t.Scope})
	}
	return tok
}

// TokenFromOAuth2 is the inverse of AccessToken.OAuth2.
func TokenFromOAuth2(tok *oauth2.Token) AccessToken {
	t := AccessToken{
		TokenType:    tok.TokenType,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if s, ok := tok.Extra("scope").(string); ok {
		t.Scope = s
	}
	return t
}
