package middleware

import (
	"context"
	"strings"

	"github.com/modfin/cardx"
)

// CanonicalNames upper cases property and parameter names before passing
// them on. Card formats treat names case-insensitively, handlers downstream
// can then compare them directly. Values are left untouched.
func CanonicalNames(next cardx.Handler) cardx.Handler {
	return cardx.HandlerFuncs{
		OnProperty: func(ctx context.Context, name string, params cardx.Params) error {
			canon := make(cardx.Params, len(params))
			for i, p := range params {
				p.Name = strings.ToUpper(p.Name)
				canon[i] = p
			}
			if len(params) == 0 {
				canon = params
			}
			return next.Property(ctx, strings.ToUpper(name), canon)
		},
		OnData: next.Data,
	}
}

// SplitGroup strips a vCard group prefix, "item1.EMAIL", from property names.
// The group is available to later handlers through GroupFromContext.
func SplitGroup(next cardx.Handler) cardx.Handler {
	return cardx.HandlerFuncs{
		OnProperty: func(ctx context.Context, name string, params cardx.Params) error {
			group, rest, found := strings.Cut(name, ".")
			if !found || group == "" || rest == "" {
				return next.Property(ctx, name, params)
			}
			return next.Property(context.WithValue(ctx, groupKey{}, group), rest, params)
		},
		OnData: next.Data,
	}
}

type groupKey struct{}

// GroupFromContext returns the group SplitGroup removed from the current property name.
func GroupFromContext(ctx context.Context) string {
	g, _ := ctx.Value(groupKey{}).(string)
	return g
}
