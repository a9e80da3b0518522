//go:build js && wasm

// Package jsdom binds the intent host interfaces to the browser DOM when
// compiled to WebAssembly.
package jsdom

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"syscall/js"

	"github.com/thellimist/cozyclient/internal/intent"
)

// Window wraps a DOM window.
type Window struct {
	v js.Value
}

var (
	_ intent.ServiceWindow = (*Window)(nil)
	_ intent.Container     = (*Element)(nil)
	_ intent.Frame         = (*Frame)(nil)
)

// Global returns the window the program runs in.
func Global() *Window {
	return &Window{v: js.Global()}
}

func (w *Window) Equal(o intent.Window) bool {
	ow, ok := o.(*Window)
	return ok && ow != nil && w.v.Equal(ow.v)
}

func (w *Window) PostMessage(data any, targetOrigin string) (err error) {
	v, err := toJS(data)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("postMessage: %v", r)
		}
	}()
	w.v.Call("postMessage", v, targetOrigin)
	return nil
}

func (w *Window) Subscribe(fn func(intent.MessageEvent)) func() {
	cb := js.FuncOf(func(_ js.Value, args []js.Value) any {
		if len(args) == 0 {
			return nil
		}
		ev := args[0]
		msg := intent.MessageEvent{
			Origin: ev.Get("origin").String(),
			Data:   fromJS(ev.Get("data")),
		}
		if src := ev.Get("source"); src.Truthy() {
			msg.Source = &Window{v: src}
		}
		fn(msg)
		return nil
	})
	w.v.Call("addEventListener", "message", cb)

	var once sync.Once
	return func() {
		once.Do(func() {
			w.v.Call("removeEventListener", "message", cb)
			cb.Release()
		})
	}
}

func (w *Window) Parent() intent.Window {
	return &Window{v: w.v.Get("parent")}
}

// Element is a DOM element frames can be attached to.
type Element struct {
	v js.Value
}

// ElementByID looks up an element of the current document.
func ElementByID(id string) (*Element, error) {
	v := js.Global().Get("document").Call("getElementById", id)
	if !v.Truthy() {
		return nil, fmt.Errorf("no element with id %q", id)
	}
	return &Element{v: v}, nil
}

func (e *Element) Window() intent.Window {
	return &Window{v: e.v.Get("ownerDocument").Get("defaultView")}
}

func (e *Element) CreateFrame(src string) (intent.Frame, error) {
	doc := e.v.Get("ownerDocument")
	if !doc.Truthy() {
		return nil, errors.New("element has no owner document")
	}
	iframe := doc.Call("createElement", "iframe")
	iframe.Call("setAttribute", "src", src)
	e.v.Call("appendChild", iframe)
	return &Frame{v: iframe}, nil
}

// Frame is an iframe element.
type Frame struct {
	v js.Value
}

func (f *Frame) ContentWindow() intent.Window {
	return &Window{v: f.v.Get("contentWindow")}
}

func (f *Frame) AddClass(name string) {
	f.v.Get("classList").Call("add", name)
}

func (f *Frame) Remove() error {
	parent := f.v.Get("parentNode")
	if !parent.Truthy() {
		return nil
	}
	parent.Call("removeChild", f.v)
	return nil
}

// toJS converts data to a structured-cloneable JS value through JSON.
func toJS(data any) (js.Value, error) {
	if s, ok := data.(string); ok {
		return js.ValueOf(s), nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return js.Undefined(), fmt.Errorf("encode message: %w", err)
	}
	return js.Global().Get("JSON").Call("parse", string(b)), nil
}

func fromJS(v js.Value) any {
	switch v.Type() {
	case js.TypeUndefined, js.TypeNull:
		return nil
	case js.TypeString:
		return v.String()
	case js.TypeBoolean:
		return v.Bool()
	case js.TypeNumber:
		return v.Float()
	}
	s := js.Global().Get("JSON").Call("stringify", v)
	var out any
	if err := json.Unmarshal([]byte(s.String()), &out); err != nil {
		return nil
	}
	return out
}
