package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/thellimist/cozyclient/internal/apierr"
)

// ErrPending is returned by RunFlow while the user has not yet come back
// from the authorization server.
var ErrPending = errors.New("authorization pending: waiting for the redirect from the authorization server")

// Flow describes one invocation of RunFlow.
type Flow struct {
	// Storage holds the pending state and the final credentials.
	Storage Storage
	// PageURL is the URL the application is currently at. After the
	// redirect it carries the state and code query parameters.
	PageURL string
	// Describe returns the client to register and the scopes to request.
	// It is only called when a new authorization starts.
	Describe func() (Client, []string)
	// Authorize sends the user to authURL. It is called once the pending
	// state has been saved.
	Authorize func(ctx context.Context, client Client, authURL string) error
}

// RunFlow drives the authorization code flow across the redirect to the
// authorization server. Call it on every page load:
//
//   - with saved credentials it returns them without any request;
//   - with nothing saved it registers a client, saves the pending state,
//     calls Authorize and returns ErrPending;
//   - back from the redirect it checks the state, exchanges the code,
//     saves the credentials and forgets the pending state.
//
// A state mismatch leaves the pending state in place. Concurrent flows on
// the same Storage are not serialized.
func (a *Authenticator) RunFlow(ctx context.Context, f Flow) (Credentials, error) {
	if f.Storage == nil {
		return Credentials{}, &apierr.ValidationError{Field: "storage", Message: "flow storage must be provided"}
	}

	creds, err := LoadCredentials(ctx, f.Storage)
	if err == nil {
		return creds, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Credentials{}, err
	}

	callback, err := callbackParams(f.PageURL)
	if err != nil {
		return Credentials{}, err
	}

	pending, err := LoadPendingState(ctx, f.Storage)
	switch {
	case errors.Is(err, ErrNotFound):
		if callback == nil {
			return Credentials{}, a.startFlow(ctx, f)
		}
		a.log().Warn("authorization callback received with no pending authorization")
		return Credentials{}, &apierr.StateMismatchError{Got: callback.Get("state")}
	case err != nil:
		return Credentials{}, err
	}

	if callback == nil {
		return Credentials{}, ErrPending
	}

	token, err := a.AccessToken(ctx, pending.Client, pending.State, f.PageURL)
	if err != nil {
		return Credentials{}, err
	}

	creds = Credentials{Client: pending.Client, Token: token}
	if err := SaveCredentials(ctx, f.Storage, creds); err != nil {
		return Credentials{}, err
	}
	if err := f.Storage.Delete(ctx, StateKey); err != nil {
		return Credentials{}, fmt.Errorf("delete pending state: %w", err)
	}

	a.log().WithField("client_id", creds.Client.ClientID).Info("authorization complete")
	return creds, nil
}

// Logout forgets the saved credentials and any pending state. The client is
// unregistered on the server first when one is known; a failure to do so is
// logged and does not keep the local state.
func (a *Authenticator) Logout(ctx context.Context, s Storage) error {
	client := Client{}
	if creds, err := LoadCredentials(ctx, s); err == nil {
		client = creds.Client
	} else if pending, err := LoadPendingState(ctx, s); err == nil {
		client = pending.Client
	}

	if client.ClientID != "" && client.RegistrationAccessToken != "" {
		if err := a.UnregisterClient(ctx, client); err != nil {
			a.log().WithError(err).Warn("could not unregister client")
		}
	}
	return ClearCredentials(ctx, s)
}

// DiscardPending forgets an unfinished authorization. Its client is
// unregistered first, best effort, so the server does not keep it.
// Saved credentials are left alone.
func (a *Authenticator) DiscardPending(ctx context.Context, s Storage) error {
	pending, err := LoadPendingState(ctx, s)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if pending.Client.ClientID != "" && pending.Client.RegistrationAccessToken != "" {
		if err := a.UnregisterClient(ctx, pending.Client); err != nil {
			a.log().WithError(err).Warn("could not unregister client of the unfinished authorization")
		}
	}
	return s.Delete(ctx, StateKey)
}

// startFlow registers the client, saves the pending state and hands the
// authorization URL to f.Authorize. It returns ErrPending on success.
func (a *Authenticator) startFlow(ctx context.Context, f Flow) error {
	if f.Describe == nil || f.Authorize == nil {
		return &apierr.ValidationError{Field: "describe", Message: "flow needs Describe and Authorize to start an authorization"}
	}

	params, scopes := f.Describe()
	client, err := a.RegisterClient(ctx, params)
	if err != nil {
		return err
	}

	authURL, state, err := a.AuthCodeURL(client, scopes)
	if err != nil {
		return err
	}

	pending := PendingAuthState{State: state, Client: client, URL: authURL}
	if err := save(ctx, f.Storage, StateKey, pending); err != nil {
		return err
	}

	a.log().WithField("client_id", client.ClientID).Info("redirecting to authorization server")
	if err := f.Authorize(ctx, client, authURL); err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	return ErrPending
}

// callbackParams returns the query of pageURL when it looks like an
// authorization callback, nil otherwise.
func callbackParams(pageURL string) (url.Values, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, &apierr.ValidationError{Field: "pageURL", Message: fmt.Sprintf("invalid page URL: %v", err)}
	}
	q := u.Query()
	if q.Has("state") || q.Has("code") || q.Has("error") {
		return q, nil
	}
	return nil, nil
}
