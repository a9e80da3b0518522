package intent

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/thellimist/cozyclient/internal/apierr"
)

// Call is a started intent waiting for its service's result.
type Call struct {
	*settlement

	intent *Intent
	frame  Frame
	origin string

	mu    sync.Mutex
	ready bool
}

// Start embeds the intent's first service in a frame inside container and
// runs the handshake with it. The call settles when the service posts a
// result or an error, or breaks the protocol. There is no timeout; use the
// context given to Wait.
func (it *Intent) Start(container Container) (*Call, error) {
	if len(it.Services) == 0 {
		return nil, &apierr.NoServiceFoundError{Action: it.Action, Type: it.Type}
	}
	svc := it.Services[0]
	origin, err := originOf(svc.Href)
	if err != nil {
		return nil, err
	}

	frame, err := container.CreateFrame(svc.Href)
	if err != nil {
		return nil, fmt.Errorf("create intent frame: %w", err)
	}
	frame.AddClass(FrameClass)

	c := &Call{
		settlement: newSettlement(),
		intent:     it,
		frame:      frame,
		origin:     origin,
	}
	c.subscribe(container.Window(), c.receive)
	it.logger().WithFields(logrus.Fields{"intent": it.ID, "service": svc.Slug}).Debug("intent frame started")
	return c, nil
}

func (it *Intent) logger() logrus.FieldLogger {
	if it.log != nil {
		return it.log
	}
	return discard
}

// Frame returns the frame the service runs in.
func (c *Call) Frame() Frame {
	return c.frame
}

// Done is closed once the call has settled.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the service result arrives or ctx is done. A done ctx
// only stops waiting; the handshake keeps listening.
func (c *Call) Wait(ctx context.Context) (any, error) {
	return c.wait(ctx)
}

func isToken(data any, token string) bool {
	s, ok := data.(string)
	return ok && s == token
}

func (c *Call) receive(ev MessageEvent) {
	if ev.Origin != c.origin || !sameWindow(ev.Source, c.frame.ContentWindow()) {
		return
	}
	if c.isSettled() {
		return
	}

	c.mu.Lock()
	ready := c.ready
	if !ready && isToken(ev.Data, ReadyMessage) {
		c.ready = true
	}
	c.mu.Unlock()

	switch {
	case isToken(ev.Data, ErrorMessage):
		c.settle(nil, &apierr.IntentError{})
	case isToken(ev.Data, ReadyMessage):
		if ready {
			return
		}
		if err := c.frame.ContentWindow().PostMessage(c.intent.data, c.origin); err != nil {
			c.settle(nil, fmt.Errorf("post intent data: %w", err))
		}
	case !ready:
		c.settle(nil, &apierr.UnexpectedHandshakeError{Data: ev.Data})
	default:
		if c.settle(ev.Data, nil) {
			if err := c.frame.Remove(); err != nil {
				c.intent.logger().WithError(err).Warn("could not remove intent frame")
			}
		}
	}
}
