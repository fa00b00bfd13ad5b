// Package charset converts property values carrying a CHARSET parameter to
// UTF-8. The parser itself passes value bytes through untouched.
package charset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/modfin/cardx"
)

var ErrUnknown = errors.New("unknown charset")

// Labels the WHATWG table either lacks or maps to a superset. Old vCards say
// ISO-8859-1 and mean it, so it is not widened to windows-1252.
var encodings = map[string]encoding.Encoding{
	"iso-8859-1": charmap.ISO8859_1,
	"latin1":     charmap.ISO8859_1,
	"us-ascii":   charmap.ISO8859_1,
	"ascii":      charmap.ISO8859_1,
	"iso-8859-9": charmap.ISO8859_9,
	"latin5":     charmap.ISO8859_9,
	"ibm437":     charmap.CodePage437,
	"cp437":      charmap.CodePage437,
	"ibm850":     charmap.CodePage850,
	"cp850":      charmap.CodePage850,
	"ibm852":     charmap.CodePage852,
	"cp852":      charmap.CodePage852,
	"ibm858":     charmap.CodePage858,
	"cp858":      charmap.CodePage858,
	"ms932":      japanese.ShiftJIS,
	"utf8":       unicode.UTF8,
	"utf-16":     unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
}

// Lookup finds the encoding for a charset label, case-insensitively.
func Lookup(label string) (encoding.Encoding, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if e, ok := encodings[label]; ok {
		return e, nil
	}
	if e, _ := htmlcharset.Lookup(label); e != nil {
		return e, nil
	}
	if e, err := ianaindex.IANA.Encoding(label); err == nil && e != nil {
		return e, nil
	}
	return nil, ErrUnknown
}

// NewReader returns a reader converting input from label to UTF-8.
func NewReader(label string, input io.Reader) (io.Reader, error) {
	e, err := Lookup(label)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(input, e.NewDecoder()), nil
}

// Decode converts b from label to UTF-8.
func Decode(label string, b []byte) ([]byte, error) {
	e, err := Lookup(label)
	if err != nil {
		return nil, err
	}
	out, _, err := transform.Bytes(e.NewDecoder(), b)
	return out, err
}

// Middleware converts values with a CHARSET parameter to UTF-8 before they
// reach next. Such values are collected and handed on in one data event
// ahead of the terminal one, multi byte sequences may span data events.
// Values in an unknown charset are passed on unchanged.
func Middleware() cardx.Middleware {
	return func(next cardx.Handler) cardx.Handler {
		return &transcoder{next: next}
	}
}

type transcoder struct {
	next  cardx.Handler
	label string
	buf   bytes.Buffer
}

func (t *transcoder) Property(ctx context.Context, name string, params cardx.Params) error {
	t.buf.Reset()
	t.label = ""
	if v, ok := params.Get("CHARSET"); ok {
		if _, err := Lookup(v); err == nil && !isUTF8(v) {
			t.label = v
		}
	}
	return t.next.Property(ctx, name, params)
}

func (t *transcoder) Data(ctx context.Context, data []byte) error {
	if t.label == "" {
		return t.next.Data(ctx, data)
	}
	if len(data) > 0 {
		t.buf.Write(data)
		return nil
	}
	label := t.label
	t.label = ""
	out, err := Decode(label, t.buf.Bytes())
	t.buf.Reset()
	if err != nil {
		return err
	}
	if len(out) > 0 {
		if err := t.next.Data(ctx, out); err != nil {
			return err
		}
	}
	return t.next.Data(ctx, nil)
}

func isUTF8(label string) bool {
	switch strings.ToLower(label) {
	case "utf-8", "utf8":
		return true
	}
	return false
}
