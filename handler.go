package cardx

import (
	"context"
	"strings"
)

// Param is one NAME[=VALUE] modifier of a property. HasValue is false for
// bare parameters such as the vCard 2.1 style "TEL;WORK:".
type Param struct {
	Name     string `json:"name"`
	Value    string `json:"value,omitempty"`
	HasValue bool   `json:"has_value"`
}

func (p Param) String() string {
	if !p.HasValue {
		return p.Name
	}
	return p.Name + "=" + p.Value
}

// Params is the ordered parameter list of a property.
type Params []Param

// Get returns the value of the first parameter named name, compared case-insensitively.
func (ps Params) Get(name string) (string, bool) {
	for _, p := range ps {
		if strings.EqualFold(p.Name, name) {
			return p.Value, p.HasValue
		}
	}
	return "", false
}

func (ps Params) String() string {
	var sb strings.Builder
	for i, p := range ps {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(p.String())
	}
	return sb.String()
}

// PropertyFunc is called once per property, after the name and all parameters
// are known and before any data of that property.
type PropertyFunc func(ctx context.Context, name string, params Params) error

// DataFunc is called with decoded value bytes. An empty data slice marks the
// end of the current property value. The slice is only valid during the call.
type DataFunc func(ctx context.Context, data []byte) error

// Handler receives both kinds of parse events. Returning an error aborts the
// Parse call that produced the event.
type Handler interface {
	Property(ctx context.Context, name string, params Params) error
	Data(ctx context.Context, data []byte) error
}

// HandlerFuncs turns a pair of functions into a Handler. Either may be nil.
type HandlerFuncs struct {
	OnProperty PropertyFunc
	OnData     DataFunc
}

func (h HandlerFuncs) Property(ctx context.Context, name string, params Params) error {
	if h.OnProperty == nil {
		return nil
	}
	return h.OnProperty(ctx, name, params)
}

func (h HandlerFuncs) Data(ctx context.Context, data []byte) error {
	if h.OnData == nil {
		return nil
	}
	return h.OnData(ctx, data)
}

// NoopHandler accepts every event.
var NoopHandler Handler = HandlerFuncs{}

// Middleware decorates a Handler.
type Middleware func(Handler) Handler

// Chain wraps h with the given middlewares. The first middleware is the
// outermost one and sees every event first.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		h = mws[i](h)
	}
	return h
}

// Encoding returns the transfer encoding these parameters select for the
// property value.
func (ps Params) Encoding() EncodingMode {
	return selectEncoding(ps)
}
