package intent

import (
	"fmt"
	"net"
	"net/url"
	"reflect"
	"strings"
)

// MessageEvent is a cross-frame message as seen by a listener.
type MessageEvent struct {
	// Origin is the scheme://host[:port] of the sender.
	Origin string
	Data   any
	// Source is the window that posted the message, when known.
	Source Window
}

// Window is a browsing context that messages can be posted to and
// received on.
type Window interface {
	// PostMessage delivers data to the window if its origin matches
	// targetOrigin.
	PostMessage(data any, targetOrigin string) error
	// Subscribe registers fn for every message the window receives. The
	// returned func removes it.
	Subscribe(fn func(MessageEvent)) (cancel func())
}

// ServiceWindow is the window an intent service runs in.
type ServiceWindow interface {
	Window
	Parent() Window
}

// Container is the element an intent frame is attached to.
type Container interface {
	// Window is the window owning the container.
	Window() Window
	// CreateFrame creates a frame loading src and appends it to the
	// container.
	CreateFrame(src string) (Frame, error)
}

// Frame is an embedded frame.
type Frame interface {
	ContentWindow() Window
	AddClass(name string)
	// Remove detaches the frame from its container.
	Remove() error
}

// sameWindow compares windows with their own Equal method when they have
// one. Host windows wrapping foreign handles are not comparable with ==.
func sameWindow(a, b Window) bool {
	if a == nil || b == nil {
		return false
	}
	if eq, ok := a.(interface{ Equal(Window) bool }); ok {
		return eq.Equal(b)
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// originOf returns the origin of rawURL serialized as a browser reports it
// in MessageEvent.origin: lowercase scheme and host, no default port.
func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse service URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("service URL %q is not absolute", rawURL)
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && port != defaultPorts[scheme] {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return scheme + "://" + host, nil
}
