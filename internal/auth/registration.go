package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/thellimist/cozyclient/internal/apierr"
)

// RegisterClient registers params as a new OAuth client and returns it
// with the identifiers issued by the server. RedirectURI, SoftwareID and
// ClientName are required and checked before any request is sent.
func (a *Authenticator) RegisterClient(ctx context.Context, params Client) (Client, error) {
	if err := apierr.Check(params, nil, "RedirectURI", "SoftwareID", "ClientName"); err != nil {
		return Client{}, err
	}

	a.log().WithField("client_name", params.ClientName).Debug("registering OAuth client")
	doc, err := a.doJSON(ctx, http.MethodPost, a.endpoint("/auth/register"), "", params.registrationWire())
	if err != nil {
		return Client{}, fmt.Errorf("client registration: %w", err)
	}

	client := params.Merge(doc)
	if client.ClientID == "" {
		return Client{}, fmt.Errorf("client registration: server returned empty client_id")
	}
	a.log().WithField("client_id", client.ClientID).Debug("OAuth client registered")
	return client, nil
}

// GetClient fetches an already registered client, authorized with its
// registration access token. Server-confirmed attributes take precedence
// over the ones in known.
func (a *Authenticator) GetClient(ctx context.Context, known Client) (Client, error) {
	if err := apierr.Check(known, nil, "ClientID", "RegistrationAccessToken"); err != nil {
		return Client{}, err
	}

	u := a.endpoint("/auth/register/" + url.PathEscape(known.ClientID))
	doc, err := a.doJSON(ctx, http.MethodGet, u, known.RegistrationAccessToken, nil)
	if err != nil {
		return Client{}, fmt.Errorf("get client %s: %w", known.ClientID, err)
	}
	return known.Merge(doc), nil
}

// UnregisterClient deletes the client on the server.
func (a *Authenticator) UnregisterClient(ctx context.Context, client Client) error {
	if err := apierr.Check(client, nil, "ClientID", "RegistrationAccessToken"); err != nil {
		return err
	}

	u := a.endpoint("/auth/register/" + url.PathEscape(client.ClientID))
	if _, err := a.doJSON(ctx, http.MethodDelete, u, client.RegistrationAccessToken, nil); err != nil {
		return fmt.Errorf("unregister client %s: %w", client.ClientID, err)
	}
	return nil
}
