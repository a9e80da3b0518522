package auth

import (
	"encoding/json"
	"testing"
)

func apiClientDoc() map[string]any {
	return map[string]any{
		"client_id":                 "123",
		"client_secret":             "456",
		"registration_access_token": "789",
		"redirect_uris":             []any{"http://coucou/"},
		"software_id":               "id",
		"software_version":          "1",
		"client_name":               "client",
		"client_kind":               "desktop",
		"client_uri":                "http://foobar",
		"logo_uri":                  "123",
		"policy_uri":                "123",
	}
}

func TestClientFromWire(t *testing.T) {
	c := ClientFromWire(apiClientDoc())

	want := Client{
		ClientID:                "123",
		ClientSecret:            "456",
		RegistrationAccessToken: "789",
		RedirectURI:             "http://coucou/",
		SoftwareID:              "id",
		SoftwareVersion:         "1",
		ClientName:              "client",
		ClientKind:              "desktop",
		ClientURI:               "http://foobar",
		LogoURI:                 "123",
		PolicyURI:               "123",
	}
	if c != want {
		t.Errorf("ClientFromWire() = %+v, want %+v", c, want)
	}
}

func TestClientWire_OmitsEmptyAndListsRedirectURI(t *testing.T) {
	c := Client{RedirectURI: "http://coucou/", SoftwareID: "id", ClientName: "client"}
	doc := c.Wire()

	if len(doc) != 3 {
		t.Errorf("expected 3 wire attributes, got %d: %v", len(doc), doc)
	}
	uris, ok := doc["redirect_uris"].([]string)
	if !ok || len(uris) != 1 || uris[0] != "http://coucou/" {
		t.Errorf("redirect_uris = %#v, want [http://coucou/]", doc["redirect_uris"])
	}
	if doc["client_name"] != "client" {
		t.Errorf("client_name = %v", doc["client_name"])
	}
}

func TestClientFieldTableIsExhaustive(t *testing.T) {
	full := ClientFromWire(apiClientDoc())
	if got := len(full.Wire()); got != len(clientFields) {
		t.Errorf("wire has %d attributes, field table has %d", got, len(clientFields))
	}
	if len(clientFields) != 11 {
		t.Errorf("client field table has %d entries, want 11", len(clientFields))
	}
}

func TestClientMerge_ServerWins(t *testing.T) {
	local := Client{ClientID: "123", ClientSecret: "blabla", RedirectURI: "http://coucou/", ClientName: "client"}
	merged := local.Merge(map[string]any{"client_secret": "456", "registration_access_token": "789", "client_name": ""})

	if merged.ClientSecret != "456" {
		t.Errorf("ClientSecret = %q, want server value", merged.ClientSecret)
	}
	if merged.RegistrationAccessToken != "789" {
		t.Errorf("RegistrationAccessToken = %q", merged.RegistrationAccessToken)
	}
	if merged.ClientName != "client" {
		t.Errorf("empty server value should not erase local ClientName, got %q", merged.ClientName)
	}
	if local.ClientSecret != "blabla" {
		t.Error("Merge must not modify the receiver")
	}
}

func TestClientJSON(t *testing.T) {
	c := ClientFromWire(apiClientDoc())
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["registration_access_token"] != "789" {
		t.Errorf("stored form should use wire names, got %s", data)
	}

	var back Client
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back != c {
		t.Errorf("decoded %+v, want %+v", back, c)
	}
}

func TestAccessTokenEquality(t *testing.T) {
	a := TokenFromWire(map[string]any{"token_type": "Bearer", "access_token": "123", "refresh_token": "456", "scope": "a b"})
	b := AccessToken{TokenType: "Bearer", AccessToken: "123", RefreshToken: "456", Scope: "a b"}
	if a != b {
		t.Errorf("%+v != %+v", a, b)
	}
}

func TestAccessTokenOAuth2(t *testing.T) {
	tok := AccessToken{TokenType: "bearer", AccessToken: "123", RefreshToken: "456", Scope: "a b"}
	o := tok.OAuth2()
	if o.Type() != "Bearer" {
		t.Errorf("Type() = %q, want Bearer", o.Type())
	}
	if got := TokenFromOAuth2(o); got != tok {
		t.Errorf("TokenFromOAuth2() = %+v, want %+v", got, tok)
	}
}
