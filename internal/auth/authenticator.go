package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thellimist/cozyclient/internal/apierr"
)

// Authenticator performs the authorization calls against one remote
// instance. The zero HTTPClient uses a client with a 30s timeout.
type Authenticator struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func (a *Authenticator) log() logrus.FieldLogger {
	if a.Logger != nil {
		return a.Logger
	}
	return discard
}

func (a *Authenticator) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// endpoint joins path onto the instance URL, tolerating trailing slashes.
func (a *Authenticator) endpoint(path string) string {
	return strings.TrimRight(a.BaseURL, "/") + path
}

// doJSON sends a request with an optional JSON body and decodes a JSON
// object answer. Transport failures are wrapped, not replaced.
func (a *Authenticator) doJSON(ctx context.Context, method, url, bearer string, body any) (map[string]any, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return a.do(req)
}

func (a *Authenticator) do(req *http.Request) (map[string]any, error) {
	resp, err := a.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apierr.FromResponse(resp)
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	var doc map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return doc, nil
}
