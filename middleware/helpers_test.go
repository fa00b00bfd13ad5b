package middleware

import (
	"context"
	"fmt"

	"github.com/modfin/cardx"
)

// collector records events as short strings, "P:NAME", "D:data" and "END".
type collector struct {
	events []string
	groups []string
}

func (c *collector) Property(ctx context.Context, name string, params cardx.Params) error {
	c.events = append(c.events, fmt.Sprintf("P:%s%s", name, paramSuffix(params)))
	c.groups = append(c.groups, GroupFromContext(ctx))
	return nil
}

func (c *collector) Data(_ context.Context, data []byte) error {
	if len(data) == 0 {
		c.events = append(c.events, "END")
		return nil
	}
	c.events = append(c.events, "D:"+string(data))
	return nil
}

func paramSuffix(params cardx.Params) string {
	if len(params) == 0 {
		return ""
	}
	return ";" + params.String()
}

func parse(h cardx.Handler, input string) error {
	p := cardx.New(nil)
	p.SetHandler(h)
	return p.Parse([]byte(input), true)
}
