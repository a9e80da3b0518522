package auth

import (
	"encoding/json"
	"fmt"
)

// Client is an OAuth client registered with the remote server. The same
// type holds local registration parameters (identifiers empty) and the
// server's answer (identifiers set). It is a value: replace it, don't
// mutate a shared one.
type Client struct {
	ClientID                string `name:"clientID" validate:"required"`
	ClientSecret            string `name:"clientSecret"`
	RegistrationAccessToken string `name:"registrationAccessToken" validate:"required"`
	RedirectURI             string `name:"redirectURI" validate:"required"`
	SoftwareID              string `name:"softwareID" validate:"required"`
	SoftwareVersion         string `name:"softwareVersion"`
	ClientName              string `name:"clientName" validate:"required"`
	ClientKind              string `name:"clientKind"`
	ClientURI               string `name:"clientURI"`
	LogoURI                 string `name:"logoURI"`
	PolicyURI               string `name:"policyURI"`
}

var clientFields = []field[Client]{
	{wire: "client_id", ptr: func(c *Client) *string { return &c.ClientID }},
	{wire: "client_secret", ptr: func(c *Client) *string { return &c.ClientSecret }},
	{wire: "registration_access_token", ptr: func(c *Client) *string { return &c.RegistrationAccessToken }},
	{wire: "redirect_uris", list: true, ptr: func(c *Client) *string { return &c.RedirectURI }},
	{wire: "software_id", ptr: func(c *Client) *string { return &c.SoftwareID }},
	{wire: "software_version", ptr: func(c *Client) *string { return &c.SoftwareVersion }},
	{wire: "client_name", ptr: func(c *Client) *string { return &c.ClientName }},
	{wire: "client_kind", ptr: func(c *Client) *string { return &c.ClientKind }},
	{wire: "client_uri", ptr: func(c *Client) *string { return &c.ClientURI }},
	{wire: "logo_uri", ptr: func(c *Client) *string { return &c.LogoURI }},
	{wire: "policy_uri", ptr: func(c *Client) *string { return &c.PolicyURI }},
}

// ClientFromWire builds a Client from a server document such as a
// registration response.
func ClientFromWire(doc map[string]any) Client {
	var c Client
	decodeFields(clientFields, doc, &c)
	return c
}

// Wire returns the snake_case document for c.
func (c Client) Wire() map[string]any {
	return encodeFields(clientFields, &c)
}

// Merge returns c with every non-empty attribute of doc applied over it.
func (c Client) Merge(doc map[string]any) Client {
	decodeFields(clientFields, doc, &c)
	return c
}

// registrationWire is the registration request body: the client metadata
// without server-issued identifiers.
func (c Client) registrationWire() map[string]any {
	doc := c.Wire()
	delete(doc, "client_id")
	delete(doc, "client_secret")
	delete(doc, "registration_access_token")
	return doc
}

func (c Client) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Wire())
}

func (c *Client) UnmarshalJSON(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode client: %w", err)
	}
	*c = ClientFromWire(doc)
	return nil
}
