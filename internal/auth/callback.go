package auth

import (
	"context"
	"fmt"
	"html"
	"net"
	"net/http"
	"sync"
)

// CallbackServer listens on 127.0.0.1 for the redirect back from the
// authorization server and hands the full callback URL to the caller,
// which feeds it to RunFlow as the page URL.
type CallbackServer struct {
	// Port to listen on; 0 picks a free one. A registered client keeps its
	// redirect URI, so reuse the port it was registered with.
	Port int
	// Path of the redirect URI; "/callback" when empty.
	Path string

	listener net.Listener
	server   *http.Server
	result   chan string
	once     sync.Once
}

// Start begins listening. Call Close() when done.
func (s *CallbackServer) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.Port))
	if err != nil {
		return fmt.Errorf("start callback server: %w", err)
	}
	s.listener = ln
	s.Port = ln.Addr().(*net.TCPAddr).Port
	s.result = make(chan string, 1)

	if s.Path == "" {
		s.Path = "/callback"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(s.Path, s.handleCallback)
	s.server = &http.Server{Handler: mux}

	go s.server.Serve(ln)
	return nil
}

// RedirectURI returns the full callback URL.
func (s *CallbackServer) RedirectURI() string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", s.Port, s.Path)
}

// WaitForCallback blocks until the callback is received or ctx is done.
// The state is not checked here; RunFlow does that.
func (s *CallbackServer) WaitForCallback(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("timed out waiting for authorization callback")
	case u := <-s.result:
		return u, nil
	}
}

// Close shuts down the callback server.
func (s *CallbackServer) Close() {
	s.once.Do(func() {
		if s.server != nil {
			s.server.Close()
		}
	})
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query(); !q.Has("state") && !q.Has("code") && !q.Has("error") {
		http.NotFound(w, r)
		return
	}

	u := *r.URL
	u.Scheme = "http"
	u.Host = r.Host

	if oauthErr := r.URL.Query().Get("error"); oauthErr != "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>%s</p></body></html>", html.EscapeString(oauthErr))
	} else {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "<html><body><h1>Authorization received</h1><p>You can close this window and return to the terminal.</p></body></html>")
	}

	select {
	case s.result <- u.String():
	default:
	}
}
