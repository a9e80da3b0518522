package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thellimist/cozyclient/internal/apierr"
	"github.com/thellimist/cozyclient/internal/auth"
)

// Client talks to the intents API of one instance.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	// Auth authorizes requests. Nil sends them unauthenticated.
	Auth   auth.Provider
	Logger logrus.FieldLogger
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func (c *Client) log() logrus.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	return discard
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (c *Client) provider() auth.Provider {
	if c.Auth != nil {
		return c.Auth
	}
	return &auth.NoAuthProvider{}
}

type createRequest struct {
	Action      string   `json:"action" validate:"required"`
	Type        string   `json:"type" validate:"required"`
	Permissions []string `json:"permissions,omitempty"`
}

func misformed(field string) string {
	return fmt.Sprintf("Misformed intent, %q property must be provided", field)
}

// Create asks the server for an intent to perform action on doctype typ.
// data is kept on the returned intent and handed to the service by Start.
// action and typ are checked before any request is sent.
func (c *Client) Create(ctx context.Context, action, typ string, data any, permissions ...string) (*Intent, error) {
	req := createRequest{Action: action, Type: typ, Permissions: permissions}
	if err := apierr.Check(req, misformed, "Action", "Type"); err != nil {
		return nil, err
	}

	body := map[string]any{
		"data": map[string]any{
			"type":       Doctype,
			"attributes": req,
		},
	}
	resp, err := c.do(ctx, http.MethodPost, "/intents", body)
	if err != nil {
		return nil, fmt.Errorf("create intent: %w", err)
	}

	it, err := decodeIntent(resp)
	if err != nil {
		return nil, err
	}
	it.data = data
	it.log = c.log()
	c.log().WithFields(logrus.Fields{"intent": it.ID, "action": action, "type": typ}).Debug("intent created")
	return it, nil
}

// Get fetches an existing intent.
func (c *Client) Get(ctx context.Context, id string) (*Intent, error) {
	if id == "" {
		return nil, &apierr.ValidationError{Field: "id", Message: "intent id must be provided"}
	}
	resp, err := c.do(ctx, http.MethodGet, "/intents/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("get intent %s: %w", id, err)
	}
	it, err := decodeIntent(resp)
	if err != nil {
		return nil, err
	}
	it.log = c.log()
	return it, nil
}

// do sends one API request with the provider's headers. A 401 answer is
// retried once when the provider re-authenticates.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, err
		}
	}

	p := c.provider()
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/vnd.api+json")
		if body != nil {
			req.Header.Set("Content-Type", "application/vnd.api+json")
		}
		headers, err := p.GetHeaders(ctx)
		if err != nil {
			return nil, fmt.Errorf("auth headers: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient().Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			se := apierr.FromResponse(resp)
			resp.Body.Close()
			if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
				retry, err := p.OnUnauthorized(ctx, resp)
				if err != nil {
					c.log().WithError(err).Warn("re-authentication failed")
					return nil, se
				}
				if retry {
					c.log().Debug("retrying after re-authentication")
					continue
				}
			}
			return nil, se
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return data, nil
	}
}
