//go:build js && wasm

// Command wasm exposes the intent handshake to JavaScript:
//
//	cozyIntents.start(cozyURL, token, action, doctype, data, elementID) -> Promise
//	cozyIntents.serve(cozyURL, token, intentID) -> Promise<{data, terminate(result) -> Promise, fail() -> Promise}>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/thellimist/cozyclient/internal/auth"
	"github.com/thellimist/cozyclient/internal/intent"
	"github.com/thellimist/cozyclient/internal/intent/jsdom"
)

func client(cozyURL, token string) *intent.Client {
	return &intent.Client{BaseURL: cozyURL, Auth: &auth.BearerTokenProvider{Token: token}}
}

// promise runs fn on its own goroutine and settles a JS promise with its
// result. Network calls must not block the event loop callback.
func promise(fn func() (any, error)) js.Value {
	var handler js.Func
	handler = js.FuncOf(func(_ js.Value, args []js.Value) any {
		resolve, reject := args[0], args[1]
		go func() {
			defer handler.Release()
			v, err := fn()
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}
			resolve.Invoke(v)
		}()
		return nil
	})
	return js.Global().Get("Promise").New(handler)
}

func jsonValue(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return js.Global().Get("JSON").Call("parse", string(b))
}

var start = js.FuncOf(func(_ js.Value, args []js.Value) any {
	if len(args) != 6 {
		return promise(func() (any, error) { return nil, fmt.Errorf("start: want 6 arguments, got %d", len(args)) })
	}
	cozyURL, token := args[0].String(), args[1].String()
	action, doctype := args[2].String(), args[3].String()
	var data any
	if d := args[4]; d.Truthy() {
		json.Unmarshal([]byte(js.Global().Get("JSON").Call("stringify", d).String()), &data)
	}
	elementID := args[5].String()

	return promise(func() (any, error) {
		ctx := context.Background()
		el, err := jsdom.ElementByID(elementID)
		if err != nil {
			return nil, err
		}
		it, err := client(cozyURL, token).Create(ctx, action, doctype, data)
		if err != nil {
			return nil, err
		}
		call, err := it.Start(el)
		if err != nil {
			return nil, err
		}
		result, err := call.Wait(ctx)
		if err != nil {
			return nil, err
		}
		return jsonValue(result), nil
	})
})

var serve = js.FuncOf(func(_ js.Value, args []js.Value) any {
	if len(args) != 3 {
		return promise(func() (any, error) { return nil, fmt.Errorf("serve: want 3 arguments, got %d", len(args)) })
	}
	cozyURL, token, id := args[0].String(), args[1].String(), args[2].String()

	return promise(func() (any, error) {
		svc, err := client(cozyURL, token).CreateService(context.Background(), id, jsdom.Global())
		if err != nil {
			return nil, err
		}
		obj := js.Global().Get("Object").New()
		obj.Set("data", jsonValue(svc.Data()))
		obj.Set("terminate", js.FuncOf(func(_ js.Value, args []js.Value) any {
			var result any
			if len(args) > 0 {
				json.Unmarshal([]byte(js.Global().Get("JSON").Call("stringify", args[0]).String()), &result)
			}
			return promise(func() (any, error) { return nil, svc.Terminate(result) })
		}))
		obj.Set("fail", js.FuncOf(func(js.Value, []js.Value) any {
			return promise(func() (any, error) { return nil, svc.Fail() })
		}))
		return obj, nil
	})
})

func main() {
	api := js.Global().Get("Object").New()
	api.Set("start", start)
	api.Set("serve", serve)
	js.Global().Set("cozyIntents", api)

	select {}
}
