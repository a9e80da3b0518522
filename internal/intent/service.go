package intent

import (
	"context"
	"fmt"
	"sync"

	"github.com/thellimist/cozyclient/internal/apierr"
)

// Service is the handling side of an intent, running inside the frame
// created by the requesting application.
type Service struct {
	intent *Intent
	win    ServiceWindow
	origin string
	data   any

	mu         sync.Mutex
	terminated bool
}

// CreateService fetches intent id and performs the handshake with the
// application that created it: it signals readiness to win's parent and
// waits for the first message from the intent's client origin, whose data
// becomes the service data. ctx bounds the wait.
func (c *Client) CreateService(ctx context.Context, id string, win ServiceWindow) (*Service, error) {
	it, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.Client == "" {
		return nil, fmt.Errorf("intent %s has no client origin", it.ID)
	}
	origin := it.Client

	h := newSettlement()
	h.subscribe(win, func(ev MessageEvent) {
		if ev.Origin != origin {
			return
		}
		h.settle(ev.Data, nil)
	})

	if err := win.Parent().PostMessage(ReadyMessage, origin); err != nil {
		h.settle(nil, nil)
		return nil, fmt.Errorf("post ready message: %w", err)
	}
	c.log().WithField("intent", it.ID).Debug("intent service ready")

	data, err := h.wait(ctx)
	if err != nil {
		h.settle(nil, err)
		return nil, err
	}
	return &Service{intent: it, win: win, origin: origin, data: data}, nil
}

// Data returns the payload sent by the requesting application.
func (s *Service) Data() any {
	return s.data
}

// Intent returns the intent being served.
func (s *Service) Intent() *Intent {
	return s.intent
}

// Terminate sends result to the requesting application. Once a result has
// been sent, later calls return *apierr.AlreadyTerminatedError and send
// nothing. A failed post leaves the service open.
func (s *Service) Terminate(result any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return &apierr.AlreadyTerminatedError{}
	}
	if err := s.win.Parent().PostMessage(result, s.origin); err != nil {
		return fmt.Errorf("post result: %w", err)
	}
	s.terminated = true
	return nil
}

// Fail reports an error to the requesting application and terminates the
// service.
func (s *Service) Fail() error {
	return s.Terminate(ErrorMessage)
}
