// Package stacktest runs an in-process fake of the remote server: client
// registration, the authorization endpoint (auto-approving), the token
// endpoint and the intents API.
package stacktest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Service is a candidate service attached to every created intent.
type Service struct {
	Slug string `json:"slug"`
	Href string `json:"href"`
}

type client struct {
	doc map[string]any
}

func (c *client) str(key string) string {
	s, _ := c.doc[key].(string)
	return s
}

type grant struct {
	clientID string
	scope    string
}

// Server is the fake. Exported fields may be changed between requests.
type Server struct {
	*httptest.Server

	// AppToken is accepted as a bearer token on the intents API.
	AppToken string
	// ClientOrigin is the client origin recorded on created intents.
	ClientOrigin string
	// Services are attached to created intents. Nil means no service.
	Services []Service
	// Deny makes the authorization endpoint redirect with access_denied.
	Deny bool
	// RotateRefresh issues a new refresh token on every refresh.
	RotateRefresh bool

	mu       sync.Mutex
	clients  map[string]*client
	codes    map[string]grant
	access   map[string]grant
	refresh  map[string]grant
	intents  map[string]map[string]any
	requests []string
}

// New starts a server. Close it with t.Cleanup(s.Close).
func New() *Server {
	s := NewUnstarted()
	s.Server = httptest.NewServer(s.Router())
	return s
}

// NewUnstarted returns a server whose routes are served by the caller,
// e.g. with http.ListenAndServe(addr, s.Router()).
func NewUnstarted() *Server {
	return &Server{
		AppToken:     "apptoken",
		ClientOrigin: "https://contacts.cozy.example.net",
		clients:      make(map[string]*client),
		codes:        make(map[string]grant),
		access:       make(map[string]grant),
		refresh:      make(map[string]grant),
		intents:      make(map[string]map[string]any),
	}
}

// Router returns the routes, for use behind another listener.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.record)
	r.HandleFunc("/auth/register", s.register).Methods(http.MethodPost)
	r.HandleFunc("/auth/register/{clientID}", s.getClient).Methods(http.MethodGet)
	r.HandleFunc("/auth/register/{clientID}", s.deleteClient).Methods(http.MethodDelete)
	r.HandleFunc("/auth/authorize", s.authorize).Methods(http.MethodGet)
	r.HandleFunc("/auth/access_token", s.token).Methods(http.MethodPost)
	r.HandleFunc("/intents", s.createIntent).Methods(http.MethodPost)
	r.HandleFunc("/intents/{id}", s.getIntent).Methods(http.MethodGet)
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tmpl := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if t, err := route.GetPathTemplate(); err == nil {
				tmpl = t
			}
		}
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+tmpl)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Requests returns "METHOD /path/template" for every request served.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Count returns how many requests matched "METHOD /path/template".
func (s *Server) Count(req string) int {
	n := 0
	for _, r := range s.Requests() {
		if r == req {
			n++
		}
	}
	return n
}

// Revoke invalidates an access token so the next use answers 401.
func (s *Server) Revoke(accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.access, accessToken)
}

// AddIntent stores an intent document as if it had been created.
func (s *Server) AddIntent(id string, attributes map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[id] = attributes
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/vnd.api+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]any{{
			"status": http.StatusText(status),
			"title":  http.StatusText(status),
			"detail": detail,
		}},
	})
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return h[7:]
	}
	return ""
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	for _, key := range []string{"redirect_uris", "client_name", "software_id"} {
		if _, ok := doc[key]; !ok {
			writeError(w, http.StatusBadRequest, key+" is mandatory")
			return
		}
	}

	id := uuid.NewString()
	doc["client_id"] = id
	doc["client_secret"] = uuid.NewString()
	doc["registration_access_token"] = uuid.NewString()

	s.mu.Lock()
	s.clients[id] = &client{doc: doc}
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) lookupClient(w http.ResponseWriter, r *http.Request) *client {
	id := mux.Vars(r)["clientID"]
	s.mu.Lock()
	c, ok := s.clients[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "client not found")
		return nil
	}
	if bearer(r) != c.str("registration_access_token") {
		writeError(w, http.StatusUnauthorized, "invalid registration access token")
		return nil
	}
	return c
}

func (s *Server) getClient(w http.ResponseWriter, r *http.Request) {
	if c := s.lookupClient(w, r); c != nil {
		writeJSON(w, http.StatusOK, c.doc)
	}
}

func (s *Server) deleteClient(w http.ResponseWriter, r *http.Request) {
	c := s.lookupClient(w, r)
	if c == nil {
		return
	}
	s.mu.Lock()
	delete(s.clients, c.str("client_id"))
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	c, ok := s.clients[q.Get("client_id")]
	s.mu.Unlock()
	if !ok || q.Get("response_type") != "code" {
		writeError(w, http.StatusBadRequest, "invalid authorization request")
		return
	}

	redirect, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || redirect.String() == "" {
		writeError(w, http.StatusBadRequest, "invalid redirect_uri")
		return
	}
	if uris, _ := c.doc["redirect_uris"].([]any); len(uris) == 0 || uris[0] != redirect.String() {
		writeError(w, http.StatusBadRequest, "redirect_uri does not match registration")
		return
	}

	back := redirect.Query()
	back.Set("state", q.Get("state"))
	if s.Deny {
		back.Set("error", "access_denied")
		back.Set("error_description", "the user denied access")
	} else {
		code := uuid.NewString()
		s.mu.Lock()
		s.codes[code] = grant{clientID: q.Get("client_id"), scope: q.Get("scope")}
		s.mu.Unlock()
		back.Set("code", code)
	}
	redirect.RawQuery = back.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[r.Form.Get("client_id")]
	if !ok || c.str("client_secret") != r.Form.Get("client_secret") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_client", "error_description": "unknown client or bad secret"})
		return
	}

	var g grant
	refreshToken := ""
	switch r.Form.Get("grant_type") {
	case "authorization_code":
		g, ok = s.codes[r.Form.Get("code")]
		if !ok || g.clientID != r.Form.Get("client_id") {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "invalid code"})
			return
		}
		delete(s.codes, r.Form.Get("code"))
		refreshToken = uuid.NewString()
		s.refresh[refreshToken] = g
	case "refresh_token":
		g, ok = s.refresh[r.Form.Get("refresh_token")]
		if !ok || g.clientID != r.Form.Get("client_id") {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "invalid refresh token"})
			return
		}
		if s.RotateRefresh {
			delete(s.refresh, r.Form.Get("refresh_token"))
			refreshToken = uuid.NewString()
			s.refresh[refreshToken] = g
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	accessToken := uuid.NewString()
	s.access[accessToken] = g

	resp := map[string]string{
		"token_type":   "bearer",
		"access_token": accessToken,
		"scope":        g.scope,
	}
	if refreshToken != "" {
		resp["refresh_token"] = refreshToken
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) authorized(r *http.Request) bool {
	tok := bearer(r)
	if tok == "" {
		return false
	}
	if tok == s.AppToken {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.access[tok]
	return ok
}

func intentDocument(id string, attributes map[string]any) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"type":       "io.cozy.intents",
			"id":         id,
			"attributes": attributes,
			"links": map[string]any{
				"self": "/intents/" + id,
			},
		},
	}
}

func (s *Server) createIntent(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var body struct {
		Data struct {
			Type       string         `json:"type"`
			Attributes map[string]any `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Data.Attributes == nil {
		writeError(w, http.StatusBadRequest, "invalid intent document")
		return
	}

	attrs := body.Data.Attributes
	attrs["client"] = s.ClientOrigin
	services := make([]any, 0, len(s.Services))
	for _, svc := range s.Services {
		services = append(services, map[string]any{"slug": svc.Slug, "href": svc.Href})
	}
	attrs["services"] = services

	id := uuid.NewString()
	s.mu.Lock()
	s.intents[id] = attrs
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/vnd.api+json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(intentDocument(id, attrs))
}

func (s *Server) getIntent(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	attrs, ok := s.intents[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "intent not found")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.api+json")
	json.NewEncoder(w).Encode(intentDocument(id, attrs))
}
