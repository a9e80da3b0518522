package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/thellimist/cozyclient/internal/apierr"
)

// GenerateState returns a cryptographically random state string for CSRF protection.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (a *Authenticator) oauthConfig(client Client, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
		RedirectURL:  client.RedirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   a.endpoint("/auth/authorize"),
			TokenURL:  a.endpoint("/auth/access_token"),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL returns the URL the user must visit to grant client the
// given scopes, and the fresh state nonce embedded in it.
func (a *Authenticator) AuthCodeURL(client Client, scopes []string) (authURL, state string, err error) {
	state, err = GenerateState()
	if err != nil {
		return "", "", fmt.Errorf("generate state: %w", err)
	}
	return a.oauthConfig(client, scopes).AuthCodeURL(state), state, nil
}

// AccessToken checks that callbackURL answers the authorization request
// identified by expectedState and exchanges its code for a token. A state
// mismatch fails without contacting the server.
func (a *Authenticator) AccessToken(ctx context.Context, client Client, expectedState, callbackURL string) (AccessToken, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return AccessToken{}, &apierr.ValidationError{Field: "callbackURL", Message: fmt.Sprintf("invalid callback URL: %v", err)}
	}
	q := u.Query()

	if got := q.Get("state"); expectedState == "" || got != expectedState {
		a.log().Warn("authorization callback state does not match the pending request")
		return AccessToken{}, &apierr.StateMismatchError{Expected: expectedState, Got: got}
	}
	if oauthErr := q.Get("error"); oauthErr != "" {
		return AccessToken{}, &apierr.AuthorizationError{Code: oauthErr, Description: q.Get("error_description")}
	}
	code := q.Get("code")
	if code == "" {
		return AccessToken{}, &apierr.ValidationError{Field: "code", Message: "callback URL carries no authorization code"}
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {client.ClientID},
		"client_secret": {client.ClientSecret},
	}
	if client.RedirectURI != "" {
		form.Set("redirect_uri", client.RedirectURI)
	}

	a.log().WithField("client_id", client.ClientID).Debug("exchanging authorization code")
	token, err := a.tokenRequest(ctx, form)
	if err != nil {
		return AccessToken{}, fmt.Errorf("token exchange: %w", err)
	}
	return token, nil
}

// RefreshToken trades token's refresh token for a new access token. When
// the server does not rotate the refresh token, the previous one is kept.
func (a *Authenticator) RefreshToken(ctx context.Context, client Client, token AccessToken) (AccessToken, error) {
	if token.RefreshToken == "" {
		return AccessToken{}, &apierr.ValidationError{Field: "refreshToken", Message: "access token has no refresh token"}
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {token.RefreshToken},
		"client_id":     {client.ClientID},
		"client_secret": {client.ClientSecret},
	}

	a.log().WithField("client_id", client.ClientID).Debug("refreshing access token")
	next, err := a.tokenRequest(ctx, form)
	if err != nil {
		return AccessToken{}, fmt.Errorf("token refresh: %w", err)
	}
	if next.RefreshToken == "" {
		next.RefreshToken = token.RefreshToken
	}
	return next, nil
}

func (a *Authenticator) tokenRequest(ctx context.Context, form url.Values) (AccessToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint("/auth/access_token"), strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	doc, err := a.do(req)
	if err != nil {
		return AccessToken{}, err
	}
	token := TokenFromWire(doc)
	if token.AccessToken == "" {
		return AccessToken{}, fmt.Errorf("token response missing access_token")
	}
	return token, nil
}
