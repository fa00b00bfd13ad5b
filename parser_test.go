package cardx

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	Name   string
	Params Params
	Data   string
	End    bool
}

type recorder struct {
	events []event
}

func (r *recorder) Property(_ context.Context, name string, params Params) error {
	r.events = append(r.events, event{Name: name, Params: params})
	return nil
}

func (r *recorder) Data(_ context.Context, data []byte) error {
	if len(data) == 0 {
		r.events = append(r.events, event{End: true})
		return nil
	}
	r.events = append(r.events, event{Data: string(data)})
	return nil
}

type property struct {
	Name   string
	Params Params
	Value  string
}

// properties merges the data events of each property and checks the event
// pairing along the way.
func (r *recorder) properties(t *testing.T) []property {
	t.Helper()
	var out []property
	open := false
	for _, e := range r.events {
		switch {
		case e.End:
			require.True(t, open, "terminal data event without a property")
			open = false
		case e.Name != "":
			require.False(t, open, "property %s before the terminal event of the previous one", e.Name)
			out = append(out, property{Name: e.Name, Params: e.Params})
			open = true
		default:
			require.True(t, open, "data event without a property")
			require.NotEmpty(t, e.Data)
			out[len(out)-1].Value += e.Data
		}
	}
	require.False(t, open, "last property was not terminated")
	return out
}

func parseChunks(t *testing.T, cfg *Config, chunks ...string) ([]property, error) {
	t.Helper()
	rec := &recorder{}
	p := New(cfg)
	p.SetHandler(rec)
	for i, c := range chunks {
		if err := p.Parse([]byte(c), i == len(chunks)-1); err != nil {
			return nil, err
		}
	}
	return rec.properties(t), nil
}

func param(name, value string) Param {
	return Param{Name: name, Value: value, HasValue: true}
}

func TestParseScenarios(t *testing.T) {
	t.Run("Property with parameter", func(t *testing.T) {
		props, err := parseChunks(t, nil, "TEL;TYPE=work:+1-555-0100\r\n")
		require.NoError(t, err)
		require.Len(t, props, 1)
		assert.Equal(t, "TEL", props[0].Name)
		assert.Equal(t, Params{param("TYPE", "work")}, props[0].Params)
		assert.Equal(t, "+1-555-0100", props[0].Value)
	})

	t.Run("Folded continuation line", func(t *testing.T) {
		props, err := parseChunks(t, nil, "NOTE:Hello\r\n World\r\n")
		require.NoError(t, err)
		require.Len(t, props, 1)
		assert.Equal(t, "Hello World", props[0].Value)
	})

	t.Run("Base64 split inside a quartet", func(t *testing.T) {
		in := "PHOTO;ENCODING=BASE64:SGVsbG8sIFdvcmxkIQ==\r\n"
		whole, err := parseChunks(t, nil, in)
		require.NoError(t, err)
		require.Len(t, whole, 1)
		assert.Equal(t, "Hello, World!", whole[0].Value)

		for i := 0; i <= len(in); i++ {
			split, err := parseChunks(t, nil, in[:i], in[i:])
			require.NoError(t, err, "split at %d", i)
			assert.Equal(t, whole, split, "split at %d", i)
		}
	})

	t.Run("Missing parameter name", func(t *testing.T) {
		_, err := parseChunks(t, nil, "TEL;:123\r\n")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStructural))

		var pe *ParseError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, 1, pe.Line)
		assert.Equal(t, 5, pe.Column)
		assert.Equal(t, StateParamBeforeName, pe.State)
		assert.Equal(t, byte(':'), pe.Char)
	})

	t.Run("Escaped semicolon", func(t *testing.T) {
		props, err := parseChunks(t, nil, `TEL;TYPE=a\;b:123`+"\r\n")
		require.NoError(t, err)
		require.Len(t, props, 1)
		assert.Equal(t, Params{param("TYPE", "a;b")}, props[0].Params)
		assert.Equal(t, "123", props[0].Value)
	})
}

func TestParseCard(t *testing.T) {
	card := "BEGIN:VCARD\r\n" +
		"VERSION:2.1\r\n" +
		"\r\n" +
		"N;CHARSET=UTF-8:Doe;John;;;\r\n" +
		"TEL;WORK;VOICE:+1 555 0100\r\n" +
		"EMAIL;TYPE=internet, pref ;X-FLAG:john@example.com\r\n" +
		"X-EMPTY:\r\n" +
		"NOTE;ENCODING=QUOTED-PRINTABLE:caf=C3=A9\r\n" +
		"END:VCARD\r\n"

	props, err := parseChunks(t, nil, card)
	require.NoError(t, err)

	expected := []property{
		{Name: "BEGIN", Value: "VCARD"},
		{Name: "VERSION", Value: "2.1"},
		{Name: "N", Params: Params{param("CHARSET", "UTF-8")}, Value: "Doe;John;;;"},
		{Name: "TEL", Params: Params{{Name: "WORK"}, {Name: "VOICE"}}, Value: "+1 555 0100"},
		{Name: "EMAIL", Params: Params{param("TYPE", "internet, pref "), {Name: "X-FLAG"}}, Value: "john@example.com"},
		{Name: "X-EMPTY"},
		{Name: "NOTE", Params: Params{param("ENCODING", "QUOTED-PRINTABLE")}, Value: "café"},
		{Name: "END", Value: "VCARD"},
	}
	assert.Equal(t, expected, props)

	t.Run("Byte by byte", func(t *testing.T) {
		var chunks []string
		for i := range card {
			chunks = append(chunks, card[i:i+1])
		}
		chunks = append(chunks, "")
		split, err := parseChunks(t, nil, chunks...)
		require.NoError(t, err)
		assert.Equal(t, expected, split)
	})

	t.Run("Bare line feeds", func(t *testing.T) {
		split, err := parseChunks(t, nil, strings.ReplaceAll(card, "\r\n", "\n"))
		require.NoError(t, err)
		assert.Equal(t, expected, split)
	})
}

func TestLineAssembler(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []property
	}{
		{
			name:   "Fold on chunk boundary after LF",
			chunks: []string{"NOTE:Hello\r\n", " World\r\n"},
			want:   []property{{Name: "NOTE", Value: "Hello World"}},
		},
		{
			name:   "Fold on chunk boundary between CR and LF",
			chunks: []string{"NOTE:Hello\r", "\n", "\tWorld", ""},
			want:   []property{{Name: "NOTE", Value: "Hello\tWorld"}},
		},
		{
			name:   "Fold inside the header",
			chunks: []string{"TEL;TY\r\n PE=work:1\r\n"},
			want:   []property{{Name: "TEL", Params: Params{param("TY PE", "work")}, Value: "1"}},
		},
		{
			name:   "Blank lines are dropped",
			chunks: []string{"\r\n\r\nA:1\r\n\n\r\nB:2\r\n\r\n"},
			want:   []property{{Name: "A", Value: "1"}, {Name: "B", Value: "2"}},
		},
		{
			name:   "Line without colon is dropped",
			chunks: []string{"GARBAGE\r\nA:1\r\n"},
			want:   []property{{Name: "A", Value: "1"}},
		},
		{
			name:   "Missing final line break",
			chunks: []string{"A:1\r\nB:2"},
			want:   []property{{Name: "A", Value: "1"}, {Name: "B", Value: "2"}},
		},
		{
			name:   "Trailing CR",
			chunks: []string{"A:1\r"},
			want:   []property{{Name: "A", Value: "1"}},
		},
		{
			name:   "Lone CR is data",
			chunks: []string{"A:x\ry\r\n"},
			want:   []property{{Name: "A", Value: "x\ry"}},
		},
		{
			name:   "Empty chunks",
			chunks: []string{"", "A:", "", "1", "", ""},
			want:   []property{{Name: "A", Value: "1"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props, err := parseChunks(t, nil, tt.chunks...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, props)
		})
	}
}

func TestHeaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		state ParserState
	}{
		{"Empty property name", ":value\r\n", StatePropertyName},
		{"Empty property name before parameters", ";A=1:value\r\n", StatePropertyName},
		{"Double semicolon", "TEL;;A:1\r\n", StateParamBeforeName},
		{"Equals without name", "TEL;=A:1\r\n", StateParamBeforeName},
		{"Colon right after equals", "TEL;TYPE=:1\r\n", StateValueBeforeValue},
		{"Semicolon right after equals", "TEL;TYPE=;X:1\r\n", StateValueBeforeValue},
		{"Line break inside parameters", "TEL;TYPE=work\r\nA:1\r\n", StateValueInValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseChunks(t, nil, tt.input)
			require.ErrorIs(t, err, ErrStructural)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.state, pe.State)
		})
	}
}

func TestEscapes(t *testing.T) {
	props, err := parseChunks(t, nil, `X;A=a\\b;B=\x;C=c\:d`+"\r\n")
	require.NoError(t, err)
	require.Len(t, props, 1)
	// an escaped colon still ends the header
	assert.Equal(t, Params{param("A", `a\b`), param("B", "x"), param("C", "c")}, props[0].Params)
	assert.Equal(t, "d", props[0].Value)
}

func TestSelectEncoding(t *testing.T) {
	tests := []struct {
		params Params
		want   EncodingMode
	}{
		{nil, EncodingNone},
		{Params{param("ENCODING", "QUOTED-PRINTABLE")}, EncodingQuotedPrintable},
		{Params{param("encoding", "q")}, EncodingQuotedPrintable},
		{Params{param("ENCODING", "b")}, EncodingBase64},
		{Params{param("ENCODING", "Base64")}, EncodingBase64},
		{Params{param("ENCODING", "8bit")}, EncodingEightBit},
		{Params{param("ENCODING", "7BIT")}, EncodingNone},
		{Params{{Name: "WORK"}, {Name: "BASE64"}}, EncodingBase64},
		{Params{{Name: "quoted-printable"}}, EncodingQuotedPrintable},
		{Params{{Name: "B"}}, EncodingNone},
		{Params{param("TYPE", "BASE64")}, EncodingNone},
	}
	for _, tt := range tests {
		t.Run(tt.params.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, selectEncoding(tt.params))
		})
	}
}

func TestBase64(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for n := 0; n < 64; n++ {
		data := make([]byte, n)
		rnd.Read(data)
		encoded := base64.StdEncoding.EncodeToString(data)
		in := "PHOTO;ENCODING=b:" + encoded + "\r\n"
		for i := 0; i < 4; i++ {
			cut := rnd.Intn(len(in) + 1)
			props, err := parseChunks(t, nil, in[:cut], in[cut:])
			require.NoError(t, err)
			require.Len(t, props, 1)
			require.Equal(t, string(data), props[0].Value, "len %d cut %d", n, cut)
		}
	}

	t.Run("vCard 2.1 wrapped body", func(t *testing.T) {
		in := "PHOTO;BASE64:\r\n  SGVs\r\n  bG8=\r\n\r\nA:1\r\n"
		props, err := parseChunks(t, nil, in)
		require.NoError(t, err)
		assert.Equal(t, []property{
			{Name: "PHOTO", Params: Params{{Name: "BASE64"}}, Value: "Hello"},
			{Name: "A", Value: "1"},
		}, props)
	})

	t.Run("Partial group is padded", func(t *testing.T) {
		for in, want := range map[string]string{"QUJD": "ABC", "QUI": "AB", "QQ": "A", "Q": "", "QUJDQQ": "ABCA"} {
			props, err := parseChunks(t, nil, "X;ENCODING=b:"+in)
			require.NoError(t, err)
			require.Len(t, props, 1)
			assert.Equal(t, want, props[0].Value, in)
		}
	})

	t.Run("Groups after padding", func(t *testing.T) {
		props, err := parseChunks(t, nil, "X;ENCODING=b:QQ==QUJD\r\n")
		require.NoError(t, err)
		assert.Equal(t, "AABC", props[0].Value)
	})

	for _, in := range []string{"QU*D", "=QUJ", "Q=JD", "QU=D"} {
		t.Run("Invalid "+in, func(t *testing.T) {
			_, err := parseChunks(t, nil, "X;ENCODING=b:"+in+"\r\n")
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestQuotedPrintable(t *testing.T) {
	in := "NOTE;QUOTED-PRINTABLE:Gr=C3=BC=C3=9Fe=0D=0Aaus M=c3=bcnchen =\r\nund =3D mehr\r\n"
	whole, err := parseChunks(t, nil, in)
	require.NoError(t, err)
	require.Len(t, whole, 1)
	assert.Equal(t, "Grüße\r\naus München und = mehr", whole[0].Value)

	for i := 0; i <= len(in); i++ {
		for j := i; j <= len(in); j += 7 {
			split, err := parseChunks(t, nil, in[:i], in[i:j], in[j:])
			require.NoError(t, err)
			require.Equal(t, whole, split, "split at %d and %d", i, j)
		}
	}

	t.Run("Soft line break", func(t *testing.T) {
		props, err := parseChunks(t, nil, "NOTE;ENCODING=QUOTED-PRINTABLE:one=\r\ntwo\r\nA:1\r\n")
		require.NoError(t, err)
		assert.Equal(t, []property{
			{Name: "NOTE", Params: Params{param("ENCODING", "QUOTED-PRINTABLE")}, Value: "onetwo"},
			{Name: "A", Value: "1"},
		}, props)
	})

	t.Run("Dangling equals at end of input", func(t *testing.T) {
		props, err := parseChunks(t, nil, "NOTE;ENCODING=QUOTED-PRINTABLE:x=", "")
		require.NoError(t, err)
		assert.Equal(t, "x=", props[0].Value)

		props, err = parseChunks(t, nil, "NOTE;ENCODING=QUOTED-PRINTABLE:x=4\r\n")
		require.NoError(t, err)
		assert.Equal(t, "x=4", props[0].Value)
	})

	t.Run("Invalid escape is kept", func(t *testing.T) {
		props, err := parseChunks(t, nil, "NOTE;ENCODING=QUOTED-PRINTABLE:a=ZZb\r\n")
		require.NoError(t, err)
		assert.Equal(t, "a=ZZb", props[0].Value)
	})
}

func TestWithoutDataHandler(t *testing.T) {
	var names []string
	p := New(nil)
	p.SetPropertyHandler(func(_ context.Context, name string, _ Params) error {
		names = append(names, name)
		return nil
	})
	in := "PHOTO;ENCODING=b:!!not base64!!\r\nNOTE;QUOTED-PRINTABLE:a=\r\nb\r\nEND:VCARD\r\n"
	require.NoError(t, p.Parse([]byte(in), true))
	assert.Equal(t, []string{"PHOTO", "NOTE", "END"}, names)

	p = New(nil)
	p.SetHandler(HandlerFuncs{OnProperty: func(context.Context, string, Params) error { return nil }})
	assert.NoError(t, p.Parse([]byte(in), true))
}

func TestLargeValueIsBatched(t *testing.T) {
	value := strings.Repeat("x", 3*dataFlushSize+10)
	rec := &recorder{}
	p := New(nil)
	p.SetHandler(rec)
	require.NoError(t, p.Parse([]byte("NOTE:"+value+"\r\n"), true))
	props := rec.properties(t)
	require.Len(t, props, 1)
	assert.Equal(t, value, props[0].Value)
	assert.Greater(t, len(rec.events), 3)
}

func TestHandlerErrors(t *testing.T) {
	boom := errors.New("boom")

	p := New(nil)
	p.SetPropertyHandler(func(_ context.Context, name string, _ Params) error {
		if name == "B" {
			return boom
		}
		return nil
	})
	err := p.Parse([]byte("A:1\r\nB:2\r\nC:3\r\n"), true)
	require.ErrorIs(t, err, boom)
	// the error is sticky
	assert.ErrorIs(t, p.Parse([]byte("D:4\r\n"), true), boom)
	assert.ErrorIs(t, p.Err(), boom)

	p = New(&Config{Resync: true})
	p.SetDataHandler(func(_ context.Context, data []byte) error {
		if len(data) > 0 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, p.Parse([]byte("A:1\r\n"), true), boom, "handler errors are never skipped")
}

func TestResync(t *testing.T) {
	in := "TEL;:bad\r\n" +
		"PHOTO;ENCODING=b:QU*D more\r\n" +
		"NOTE:ok\r\n" +
		"X;A=1\r\n" +
		"END:VCARD\r\n"

	_, err := parseChunks(t, nil, in)
	require.ErrorIs(t, err, ErrStructural)

	rec := &recorder{}
	p := New(&Config{Resync: true})
	p.SetHandler(rec)
	require.NoError(t, p.Parse([]byte(in), true))
	assert.Equal(t, 3, p.Skipped())
	assert.Equal(t, []property{
		{Name: "PHOTO", Params: Params{param("ENCODING", "b")}},
		{Name: "NOTE", Value: "ok"},
		{Name: "END", Value: "VCARD"},
	}, rec.properties(t))
}

func TestResyncKeepsDecodedData(t *testing.T) {
	// the first group is fine, the second one is broken
	in := "X;ENCODING=b:QUJD*A==\r\nNOTE:ok\r\n"
	want := []property{
		{Name: "X", Params: Params{param("ENCODING", "b")}, Value: "ABC"},
		{Name: "NOTE", Value: "ok"},
	}
	for cut := 0; cut <= len(in); cut++ {
		props, err := parseChunks(t, &Config{Resync: true}, in[:cut], in[cut:])
		require.NoError(t, err)
		assert.Equal(t, want, props, "cut %d", cut)
	}

	props, err := parseChunks(t, &Config{Resync: true}, "DC;ENCODING=b:QUJD4A=:N\n\r\n=")
	require.NoError(t, err)
	assert.Equal(t, []property{{Name: "DC", Params: Params{param("ENCODING", "b")}, Value: "ABC"}}, props)
}

func TestDataBeforeErrorIsDelivered(t *testing.T) {
	in := "X;ENCODING=b:QUJD*A==\r\n"
	for cut := 0; cut <= len(in); cut++ {
		rec := &recorder{}
		p := New(nil)
		p.SetHandler(rec)
		err := p.Parse([]byte(in[:cut]), false)
		if err == nil {
			err = p.Parse([]byte(in[cut:]), true)
		}
		require.ErrorIs(t, err, ErrDecode, "cut %d", cut)

		var data string
		for _, e := range rec.events {
			data += e.Data
		}
		assert.Equal(t, "ABC", data, "cut %d", cut)
		assert.False(t, rec.events[len(rec.events)-1].End, "broken property is not terminated")
	}
}

func TestLineTooLong(t *testing.T) {
	_, err := parseChunks(t, &Config{MaxLineLength: 8}, "X-VERY-LONG-NAME:1\r\n")
	require.ErrorIs(t, err, ErrLineTooLong)

	_, err = parseChunks(t, &Config{MaxLineLength: 8}, "X;TYPE=123456789:1\r\n")
	require.ErrorIs(t, err, ErrLineTooLong)

	// values are streamed and not limited
	props, err := parseChunks(t, &Config{MaxLineLength: 8}, "X:"+strings.Repeat("y", 100)+"\r\n")
	require.NoError(t, err)
	assert.Len(t, props[0].Value, 100)
}

func TestLifecycle(t *testing.T) {
	rec := &recorder{}
	p := New(nil)
	p.SetHandler(rec)

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "user data")
	p.SetContext(ctx)
	assert.Equal(t, ctx, p.Context())
	var seen any
	p.SetPropertyHandler(func(ctx context.Context, name string, params Params) error {
		seen = ctx.Value(key{})
		return rec.Property(ctx, name, params)
	})

	_, err := io.Copy(p, strings.NewReader("A:1\r\nB:2"))
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.Equal(t, "user data", seen)
	assert.Equal(t, []property{{Name: "A", Value: "1"}, {Name: "B", Value: "2"}}, rec.properties(t))

	require.Error(t, p.Parse([]byte(":x\r\n"), true))
	p.Reset()
	require.NoError(t, p.Parse([]byte("C:3\r\n"), true))

	p.Free()
	assert.ErrorIs(t, p.Parse([]byte("D:4\r\n"), true), ErrFreed)
}

func TestFold(t *testing.T) {
	line := []byte("NOTE:This is a long note that keeps going and going so that it has to be folded over several lines")
	folded := Fold(line, 20)
	assert.True(t, bytes.Contains(folded, []byte("\r\n ")))
	for _, l := range bytes.Split(folded, []byte("\r\n")) {
		assert.GreaterOrEqual(t, len(l), 1)
	}

	props, err := parseChunks(t, nil, string(folded)+"\r\n")
	require.NoError(t, err)
	require.Len(t, props, 1)
	unfolded := "NOTE:" + props[0].Value
	assert.Equal(t, string(line), unfolded)
	assert.Equal(t, folded, Fold([]byte(unfolded), 20))

	assert.Equal(t, []byte("nospace"), Fold([]byte("nospace"), 2))
	assert.Equal(t, []byte("ab cd"), Fold([]byte("ab cd"), 0), "zero width uses the default")
}

func TestParseReader(t *testing.T) {
	rec := &recorder{}
	err := ParseReader(context.Background(), strings.NewReader("A:1\r\nB:2\r\n"), rec, &Config{ChunkSize: 3})
	require.NoError(t, err)
	assert.Equal(t, []property{{Name: "A", Value: "1"}, {Name: "B", Value: "2"}}, rec.properties(t))

	in := "A:1\r\n"
	assert.NoError(t, ParseReader(context.Background(), strings.NewReader(in), NoopHandler, &Config{MaxSize: int64(len(in))}))
	assert.ErrorIs(t, ParseReader(context.Background(), strings.NewReader(in), NoopHandler, &Config{MaxSize: 2}), LimitError)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ParseReader(ctx, strings.NewReader(in), NoopHandler, nil), context.Canceled)

	err = ParseReader(context.Background(), strings.NewReader("TEL;:1\r\n"), NoopHandler, nil)
	assert.ErrorIs(t, err, ErrStructural)
}

func TestConfig(t *testing.T) {
	c := &Config{}
	c.setDefaults()
	assert.Equal(t, defaultMaxLineLength, c.MaxLineLength)
	assert.Equal(t, int64(defaultMaxSize), c.MaxSize)
	assert.Equal(t, defaultChunkSize, c.ChunkSize)
	require.NotNil(t, c.Logger)
	assert.False(t, c.Logger.Enabled(context.Background(), slog.LevelError), "default logger discards")
	assert.NoError(t, c.Validate())

	c = &Config{MaxLineLength: -1, ChunkSize: -1}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_line_length")
	assert.Contains(t, err.Error(), "chunk_size")
}

func TestChain(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return HandlerFuncs{
				OnProperty: func(ctx context.Context, n string, params Params) error {
					order = append(order, name)
					return next.Property(ctx, n, params)
				},
				OnData: next.Data,
			}
		}
	}
	h := Chain(NoopHandler, mw("outer"), nil, mw("inner"))
	require.NoError(t, h.Property(context.Background(), "A", nil))
	assert.Equal(t, []string{"outer", "inner"}, order)
}
