package middleware

import (
	"context"
	"strings"

	"github.com/modfin/cardx"
)

// FilterProperty only passes on properties for which include returns true.
// The data events of a dropped property, its terminal event included, are
// dropped as well, so the event pairing stays intact downstream.
func FilterProperty(include func(name string, params cardx.Params) bool) cardx.Middleware {
	return func(next cardx.Handler) cardx.Handler {
		return &filter{next: next, include: include}
	}
}

// FilterProperties Check if the property name is in the allow list, compared
// case-insensitively.
// Example usage: cardx.Chain(h, middleware.FilterProperties("FN", "EMAIL", "TEL"))
// if no names are provided, all properties are passed on
func FilterProperties(names ...string) cardx.Middleware {
	var set = map[string]bool{}
	for _, n := range names {
		set[strings.ToUpper(n)] = true
	}
	return FilterProperty(func(name string, _ cardx.Params) bool {
		if len(set) == 0 {
			return true
		}
		return set[strings.ToUpper(name)]
	})
}

// DropProperties is the inverse of FilterProperties, the listed properties are dropped.
func DropProperties(names ...string) cardx.Middleware {
	var set = map[string]bool{}
	for _, n := range names {
		set[strings.ToUpper(n)] = true
	}
	return FilterProperty(func(name string, _ cardx.Params) bool {
		return !set[strings.ToUpper(name)]
	})
}

type filter struct {
	next    cardx.Handler
	include func(string, cardx.Params) bool
	drop    bool
}

func (f *filter) Property(ctx context.Context, name string, params cardx.Params) error {
	f.drop = !f.include(name, params)
	if f.drop {
		return nil
	}
	return f.next.Property(ctx, name, params)
}

func (f *filter) Data(ctx context.Context, data []byte) error {
	if f.drop {
		if len(data) == 0 {
			f.drop = false
		}
		return nil
	}
	return f.next.Data(ctx, data)
}
