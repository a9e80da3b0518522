package intent

import (
	"errors"
	"sync"
)

type post struct {
	Data   any
	Origin string
}

// fakeWindow records posts and subscriptions. Messages are delivered to
// listeners with dispatch.
type fakeWindow struct {
	parent *fakeWindow
	// onPost runs after a post is recorded.
	onPost func(data any, targetOrigin string)
	// fail, when set, is returned by PostMessage and nothing is recorded.
	fail error

	mu        sync.Mutex
	listeners map[int]func(MessageEvent)
	next      int
	subscribe int
	cancel    int
	posts     []post
}

func (w *fakeWindow) PostMessage(data any, targetOrigin string) error {
	w.mu.Lock()
	if w.fail != nil {
		defer w.mu.Unlock()
		return w.fail
	}
	w.posts = append(w.posts, post{data, targetOrigin})
	onPost := w.onPost
	w.mu.Unlock()
	if onPost != nil {
		onPost(data, targetOrigin)
	}
	return nil
}

func (w *fakeWindow) Subscribe(fn func(MessageEvent)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listeners == nil {
		w.listeners = make(map[int]func(MessageEvent))
	}
	id := w.next
	w.next++
	w.listeners[id] = fn
	w.subscribe++

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.listeners, id)
			w.cancel++
		})
	}
}

func (w *fakeWindow) Parent() Window {
	return w.parent
}

func (w *fakeWindow) dispatch(ev MessageEvent) {
	w.mu.Lock()
	fns := make([]func(MessageEvent), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (w *fakeWindow) counts() (subscribed, cancelled, active int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.subscribe, w.cancel, len(w.listeners)
}

func (w *fakeWindow) sent() []post {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]post(nil), w.posts...)
}

type fakeFrame struct {
	src     string
	classes []string
	content *fakeWindow
	removed int
}

func (f *fakeFrame) ContentWindow() Window { return f.content }
func (f *fakeFrame) AddClass(name string)  { f.classes = append(f.classes, name) }

func (f *fakeFrame) Remove() error {
	f.removed++
	return nil
}

type fakeContainer struct {
	win    *fakeWindow
	frames []*fakeFrame
	err    error
}

func newContainer() *fakeContainer {
	return &fakeContainer{win: &fakeWindow{}}
}

func (c *fakeContainer) Window() Window { return c.win }

func (c *fakeContainer) CreateFrame(src string) (Frame, error) {
	if c.err != nil {
		return nil, c.err
	}
	f := &fakeFrame{src: src, content: &fakeWindow{}}
	c.frames = append(c.frames, f)
	return f, nil
}

var errNoDOM = errors.New("no document")
