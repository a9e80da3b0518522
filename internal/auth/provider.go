package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// Provider produces the Authorization header for API requests.
type Provider interface {
	// GetHeaders returns the HTTP headers to include in API requests.
	GetHeaders(ctx context.Context) (map[string]string, error)
	// OnUnauthorized is called when the server returns 401. It can attempt
	// re-authentication and return retry=true to retry the request.
	OnUnauthorized(ctx context.Context, resp *http.Response) (retry bool, err error)
}

// NoAuthProvider provides no authentication headers.
type NoAuthProvider struct{}

func (p *NoAuthProvider) GetHeaders(_ context.Context) (map[string]string, error) {
	return nil, nil
}

func (p *NoAuthProvider) OnUnauthorized(_ context.Context, _ *http.Response) (bool, error) {
	return false, nil
}

// BearerTokenProvider sends a fixed token, such as an application token
// handed over by the hosting environment.
type BearerTokenProvider struct {
	Token string
}

func (p *BearerTokenProvider) GetHeaders(_ context.Context) (map[string]string, error) {
	if p.Token == "" {
		return nil, nil
	}
	return map[string]string{"Authorization": "Bearer " + p.Token}, nil
}

func (p *BearerTokenProvider) OnUnauthorized(_ context.Context, _ *http.Response) (bool, error) {
	return false, nil
}

// CredentialsProvider authorizes requests with the credentials of a
// completed flow. On 401 it refreshes the token once and saves the new
// credentials to Storage when set.
type CredentialsProvider struct {
	Auth    *Authenticator
	Storage Storage

	mu    sync.Mutex
	creds Credentials
	src   oauth2.TokenSource
}

func NewCredentialsProvider(a *Authenticator, s Storage, creds Credentials) *CredentialsProvider {
	p := &CredentialsProvider{Auth: a, Storage: s}
	p.set(creds)
	return p
}

func (p *CredentialsProvider) set(creds Credentials) {
	p.creds = creds
	p.src = oauth2.StaticTokenSource(creds.Token.OAuth2())
}

// Credentials returns the current credentials, including any refresh.
func (p *CredentialsProvider) Credentials() Credentials {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creds
}

func (p *CredentialsProvider) GetHeaders(_ context.Context) (map[string]string, error) {
	p.mu.Lock()
	src := p.src
	p.mu.Unlock()

	tok, err := src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, nil
	}
	return map[string]string{"Authorization": tok.Type() + " " + tok.AccessToken}, nil
}

func (p *CredentialsProvider) OnUnauthorized(ctx context.Context, _ *http.Response) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.creds.Token.RefreshToken == "" {
		return false, fmt.Errorf("access token rejected and no refresh token available")
	}
	token, err := p.Auth.RefreshToken(ctx, p.creds.Client, p.creds.Token)
	if err != nil {
		return false, err
	}

	creds := Credentials{Client: p.creds.Client, Token: token}
	if p.Storage != nil {
		if err := SaveCredentials(ctx, p.Storage, creds); err != nil {
			return false, err
		}
	}
	p.set(creds)
	return true, nil
}
