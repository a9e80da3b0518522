// Package intent creates intents on the remote server and runs the
// cross-frame handshake between the application asking for an intent and
// the service handling it.
package intent

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Wire tokens exchanged during the handshake.
const (
	ReadyMessage = "intent:ready"
	ErrorMessage = "intent:error"
)

// FrameClass marks the frames injected by Start.
const FrameClass = "coz-intent"

// Doctype is the JSON:API type of intent documents.
const Doctype = "io.cozy.intents"

// ServiceRef is a candidate service for an intent.
type ServiceRef struct {
	Slug string `json:"slug"`
	Href string `json:"href"`
}

// Intent is a request for an action on a doctype, as created by the
// server. It is read-only once fetched.
type Intent struct {
	ID          string
	Action      string
	Type        string
	Permissions []string
	// Client is the origin of the application that created the intent.
	Client   string
	Services []ServiceRef
	Links    map[string]string

	// data is posted to the service once it is ready.
	data any
	log  logrus.FieldLogger
}

// Data returns the payload handed to the service by Start.
func (it *Intent) Data() any {
	return it.data
}

type document struct {
	Data struct {
		Type       string `json:"type"`
		ID         string `json:"id"`
		Attributes struct {
			Action      string       `json:"action"`
			Type        string       `json:"type"`
			Permissions []string     `json:"permissions"`
			Client      string       `json:"client"`
			Services    []ServiceRef `json:"services"`
		} `json:"attributes"`
		Links map[string]string `json:"links"`
	} `json:"data"`
}

func decodeIntent(body []byte) (*Intent, error) {
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}
	if doc.Data.ID == "" {
		return nil, fmt.Errorf("decode intent: document has no id")
	}
	if doc.Data.Type != "" && doc.Data.Type != Doctype {
		return nil, fmt.Errorf("decode intent: unexpected type %q", doc.Data.Type)
	}
	a := doc.Data.Attributes
	return &Intent{
		ID:          doc.Data.ID,
		Action:      a.Action,
		Type:        a.Type,
		Permissions: a.Permissions,
		Client:      a.Client,
		Services:    a.Services,
		Links:       doc.Data.Links,
	}, nil
}
