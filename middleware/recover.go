package middleware

import (
	"context"
	"fmt"

	"github.com/modfin/cardx"
)

// Recover turns a panic in a handler into an error, which aborts the Parse
// call instead of the program.
func Recover(next cardx.Handler) cardx.Handler {
	return recoverer{next: next}
}

type recoverer struct {
	next cardx.Handler
}

func (r recoverer) Property(ctx context.Context, name string, params cardx.Params) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("recovered: %v", rec)
		}
	}()
	return r.next.Property(ctx, name, params)
}

func (r recoverer) Data(ctx context.Context, data []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("recovered: %v", rec)
		}
	}()
	return r.next.Data(ctx, data)
}
