package intent

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/thellimist/cozyclient/internal/apierr"
)

const serviceURL = "https://files.cozy.example.net"

func pickIntent() *Intent {
	return &Intent{
		ID:          "77bcc42c-0fd8-11e7-ac95-8f605f6e8338",
		Action:      "PICK",
		Type:        "io.cozy.files",
		Permissions: []string{"GET"},
		Client:      "contacts.cozy.example.net",
		Services: []ServiceRef{{
			Slug: "files",
			Href: serviceURL + "/pick?intent=77bcc42c-0fd8-11e7-ac95-8f605f6e8338",
		}},
		data: map[string]any{"key": "value"},
	}
}

func start(t *testing.T) (*Call, *fakeContainer, *fakeFrame) {
	t.Helper()
	c := newContainer()
	call, err := pickIntent().Start(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return call, c, c.frames[0]
}

func waitSettled(t *testing.T, call *Call) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return call.Wait(ctx)
}

func TestStart_NoService(t *testing.T) {
	it := pickIntent()
	it.Action, it.Services = "EDIT", nil
	c := newContainer()

	_, err := it.Start(c)
	var nse *apierr.NoServiceFoundError
	if !errors.As(err, &nse) {
		t.Fatalf("expected NoServiceFoundError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Unable to find a service") {
		t.Errorf("unexpected message: %s", err)
	}
	if len(c.frames) != 0 {
		t.Error("no frame should be created")
	}
	if sub, _, _ := c.win.counts(); sub != 0 {
		t.Error("no listener should be registered")
	}
}

func TestStart_InjectsFrame(t *testing.T) {
	_, c, frame := start(t)

	if len(c.frames) != 1 {
		t.Fatalf("created %d frames, want 1", len(c.frames))
	}
	if frame.src != pickIntent().Services[0].Href {
		t.Errorf("src = %q", frame.src)
	}
	if !reflect.DeepEqual(frame.classes, []string{"coz-intent"}) {
		t.Errorf("classes = %v", frame.classes)
	}
	sub, cancelled, _ := c.win.counts()
	if sub != 1 || cancelled != 0 {
		t.Errorf("subscribed %d, cancelled %d; want 1, 0", sub, cancelled)
	}
}

func TestStart_FrameError(t *testing.T) {
	c := newContainer()
	c.err = errNoDOM
	_, err := pickIntent().Start(c)
	if !errors.Is(err, errNoDOM) {
		t.Fatalf("expected frame error, got %v", err)
	}
}

func TestHandshake_ReadyPostsData(t *testing.T) {
	call, c, frame := start(t)

	c.win.dispatch(MessageEvent{Origin: serviceURL, Data: ReadyMessage, Source: frame.content})

	want := []post{{map[string]any{"key": "value"}, serviceURL}}
	if got := frame.content.sent(); !reflect.DeepEqual(got, want) {
		t.Errorf("posts = %v, want %v", got, want)
	}
	if _, cancelled, _ := c.win.counts(); cancelled != 0 {
		t.Error("listener should stay registered until a result arrives")
	}
	select {
	case <-call.Done():
		t.Error("call should still be pending")
	default:
	}
}

func TestHandshake_IgnoresForeignMessages(t *testing.T) {
	_, c, frame := start(t)

	c.win.dispatch(MessageEvent{Origin: "https://evil.example.net", Data: ReadyMessage, Source: frame.content})
	c.win.dispatch(MessageEvent{Origin: serviceURL, Data: ReadyMessage, Source: &fakeWindow{}})
	c.win.dispatch(MessageEvent{Origin: serviceURL, Data: "garbage", Source: nil})

	if got := frame.content.sent(); len(got) != 0 {
		t.Errorf("no data should be posted, got %v", got)
	}
	if _, cancelled, active := c.win.counts(); cancelled != 0 || active != 1 {
		t.Errorf("listener should remain registered, cancelled=%d active=%d", cancelled, active)
	}
}

func TestHandshake_Unexpected(t *testing.T) {
	call, c, frame := start(t)

	c.win.dispatch(MessageEvent{Origin: serviceURL, Data: "unexpected handshake data", Source: frame.content})

	_, err := waitSettled(t, call)
	var uhe *apierr.UnexpectedHandshakeError
	if !errors.As(err, &uhe) {
		t.Fatalf("expected UnexpectedHandshakeError, got %v", err)
	}
	if err.Error() != "Unexpected handshake message from intent service" {
		t.Errorf("unexpected message: %s", err)
	}
	if uhe.Data != "unexpected handshake data" {
		t.Errorf("Data = %v", uhe.Data)
	}
	if _, cancelled, active := c.win.counts(); cancelled != 1 || active != 0 {
		t.Errorf("listener should be removed once, cancelled=%d active=%d", cancelled, active)
	}
}

func TestHandshake_IntentError(t *testing.T) {
	call, c, frame := start(t)

	c.win.dispatch(MessageEvent{Origin: serviceURL, Data: ErrorMessage, Source: frame.content})

	_, err := waitSettled(t, call)
	var ie *apierr.IntentError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IntentError, got %v", err)
	}
	if err.Error() != "Intent error" {
		t.Errorf("unexpected message: %s", err)
	}
	if _, cancelled, _ := c.win.counts(); cancelled != 1 {
		t.Errorf("cancelled %d times, want 1", cancelled)
	}
}

func TestHandshake_ErrorAfterReady(t *testing.T) {
	call, c, frame := start(t)

	c.win.dispatch(MessageEvent{Origin: serviceURL, Data: ReadyMessage, Source: frame.content})
	c.win.dispatch(MessageEvent{Origin: serviceURL, Data: ErrorMessage, Source: frame.content})

	_, err := waitSettled(t, call)
	var ie *apierr.IntentError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IntentError, got %v", err)
	}
	if n := len(frame.content.sent()); n != 1 {
		t.Errorf("data posted %d times, want 1", n)
	}
}

func TestHandshake_Success(t *testing.T) {
	call, c, frame := start(t)
	result := map[string]any{"id": "abcde1234"}

	c.win.dispatch(MessageEvent{Origin: serviceURL, Data: ReadyMessage, Source: frame.content})
	c.win.dispatch(MessageEvent{Origin: serviceURL, Data: result, Source: frame.content})

	got, err := waitSettled(t, call)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, result) {
		t.Errorf("result = %v, want %v", got, result)
	}
	if _, cancelled, active := c.win.counts(); cancelled != 1 || active != 0 {
		t.Errorf("listener should be removed once, cancelled=%d active=%d", cancelled, active)
	}
	if frame.removed != 1 {
		t.Errorf("frame removed %d times, want 1", frame.removed)
	}
}

func TestHandshake_SettlesOnce(t *testing.T) {
	call, _, frame := start(t)
	result := map[string]any{"id": "first"}

	// Deliver straight to the listener, as a host racing with teardown would.
	call.receive(MessageEvent{Origin: serviceURL, Data: ReadyMessage, Source: frame.content})
	call.receive(MessageEvent{Origin: serviceURL, Data: result, Source: frame.content})
	call.receive(MessageEvent{Origin: serviceURL, Data: ErrorMessage, Source: frame.content})
	call.receive(MessageEvent{Origin: serviceURL, Data: map[string]any{"id": "second"}, Source: frame.content})

	got, err := waitSettled(t, call)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, result) {
		t.Errorf("result = %v, want the first one", got)
	}
	if frame.removed != 1 {
		t.Errorf("frame removed %d times, want 1", frame.removed)
	}
}

func TestCallWait_ContextDone(t *testing.T) {
	call, c, _ := start(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := call.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if _, _, active := c.win.counts(); active != 1 {
		t.Error("giving up on Wait should not remove the listener")
	}
}

func TestOriginOf(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"https://files.cozy.example.net/pick?intent=1", "https://files.cozy.example.net", false},
		{"http://localhost:8080/a", "http://localhost:8080", false},
		{"https://Files.Cozy.example.net:443/pick", "https://files.cozy.example.net", false},
		{"HTTP://files.cozy.example.net:80/", "http://files.cozy.example.net", false},
		{"http://files.cozy.example.net:443/", "http://files.cozy.example.net:443", false},
		{"https://[::1]:443/pick", "https://[::1]", false},
		{"https://[::1]:8443/pick", "https://[::1]:8443", false},
		{"/relative", "", true},
	}
	for _, tt := range tests {
		got, err := originOf(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("originOf(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("originOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHandshake_ServiceHrefNotCanonical(t *testing.T) {
	it := pickIntent()
	it.Services[0].Href = "https://Files.Cozy.example.net:443/pick?intent=" + it.ID
	c := newContainer()
	call, err := it.Start(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	frame := c.frames[0]

	c.win.dispatch(MessageEvent{Origin: serviceURL, Data: ReadyMessage, Source: frame.content})

	want := []post{{map[string]any{"key": "value"}, serviceURL}}
	if got := frame.content.sent(); !reflect.DeepEqual(got, want) {
		t.Fatalf("posts = %v, want %v", got, want)
	}

	c.win.dispatch(MessageEvent{Origin: serviceURL, Data: "done", Source: frame.content})
	if v, err := waitSettled(t, call); err != nil || v != "done" {
		t.Errorf("got %v, %v", v, err)
	}
}

// funcWindow is a host window that cannot be compared with ==.
type funcWindow struct {
	post func(any, string) error
}

func (w funcWindow) PostMessage(data any, targetOrigin string) error { return w.post(data, targetOrigin) }
func (w funcWindow) Subscribe(func(MessageEvent)) func()             { return func() {} }

func TestSameWindow(t *testing.T) {
	w := &fakeWindow{}
	if !sameWindow(w, w) {
		t.Error("a window should equal itself")
	}
	if sameWindow(w, &fakeWindow{}) || sameWindow(nil, w) || sameWindow(w, nil) {
		t.Error("distinct or missing windows should differ")
	}

	fw := funcWindow{post: func(any, string) error { return nil }}
	if sameWindow(fw, fw) || sameWindow(w, fw) || sameWindow(fw, w) {
		t.Error("windows that cannot be compared should never match")
	}
}
