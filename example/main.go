package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/asaskevich/EventBus"
	"github.com/modfin/cardx"
	"github.com/modfin/cardx/bus"
	"github.com/modfin/cardx/middleware"
	"github.com/modfin/cardx/sink"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// Print properties as they are parsed, values once complete
	var value []byte
	printer := cardx.HandlerFuncs{
		OnProperty: func(ctx context.Context, name string, params cardx.Params) error {
			if g := middleware.GroupFromContext(ctx); g != "" {
				fmt.Printf("[%s] ", g)
			}
			fmt.Printf("%s %s\n", name, params)
			return nil
		},
		OnData: func(ctx context.Context, data []byte) error {
			if len(data) > 0 {
				value = append(value, data...)
				return nil
			}
			if len(value) > 0 {
				fmt.Printf("%s╰ %q\n", strings.Repeat(" ", 2), value)
			}
			value = value[:0]
			return nil
		},
	}

	// A second consumer collects whole records from the bus
	b := EventBus.New()
	store := &sink.MemoryStore{}
	_, err := bus.Subscribe(b, "", sink.NewRecorder(store, "", 0), true, func(err error) {
		logger.Error("recording failed", "err", err)
	})
	check(err)
	publisher := bus.NewPublisher(b, "")

	h := cardx.Chain(fanOut{printer, publisher},
		middleware.Recover,
		middleware.Logger(logger),
		middleware.CanonicalNames,
		middleware.SplitGroup,
	)

	p := cardx.New(&cardx.Config{Logger: logger})
	defer p.Free()
	p.SetHandler(h)

	// Feed the card in small pieces, as it would come off a socket
	for in := []byte(exampleCard); len(in) > 0; {
		n := min(16, len(in))
		check(p.Parse(in[:n], false))
		in = in[n:]
	}
	check(p.Close())
	// BEGIN
	//   ╰ "VCARD"
	// VERSION
	//   ╰ "2.1"
	// N CHARSET=UTF-8;ENCODING=QUOTED-PRINTABLE
	//   ╰ "Müller;Anna"
	// ...
	// NOTE ENCODING=QUOTED-PRINTABLE
	//   ╰ "Met at the conference,\r\nwants the slides"
	// PHOTO ENCODING=BASE64;TYPE=GIF
	//   ╰ "GIF89a"
	// ...

	b.WaitAsync()
	for _, r := range store.Records() {
		fmt.Printf("%2d %-8s %d bytes\n", r.Seq, r.Name, len(r.Value))
	}
}

// fanOut sends every event to all handlers in order.
type fanOut []cardx.Handler

func (f fanOut) Property(ctx context.Context, name string, params cardx.Params) error {
	for _, h := range f {
		if err := h.Property(ctx, name, params); err != nil {
			return err
		}
	}
	return nil
}

func (f fanOut) Data(ctx context.Context, data []byte) error {
	for _, h := range f {
		if err := h.Data(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

var exampleCard = `BEGIN:VCARD
VERSION:2.1
N;CHARSET=UTF-8;ENCODING=QUOTED-PRINTABLE:M=C3=BCller;Anna
FN:Anna Müller
item1.TEL;TYPE=work;VOICE:+49 30 1234567
item1.X-ABLABEL:Office
NOTE;ENCODING=QUOTED-PRINTABLE:Met at the conference,=0D=0A=
wants the slides
PHOTO;ENCODING=BASE64;TYPE=GIF:
 R0lGODlh
ADR;TYPE=work:;;Hauptstraße 1;Berlin;;10115;Germany
END:VCARD
`
