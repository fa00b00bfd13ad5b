package cardx

import (
	"context"
	"errors"
	"log/slog"
)

// Parser is an incremental parser for line oriented card formats such as
// vCard and vCalendar. Input is fed in chunks of any size with Parse, and
// every logical line is reported as one property event followed by its
// decoded data.
//
// A Parser is not safe for concurrent use. Use one instance per document.
type Parser struct {
	ctx context.Context
	cfg Config
	log *slog.Logger

	onProperty PropertyFunc
	onData     DataFunc

	state   ParserState
	buf     []byte // token being accumulated
	name    string
	params  Params
	escaped bool
	fold    foldState
	dec     decoder
	out     []byte // decoded data not yet handed to onData

	// position of the next byte, and of the last physical line break
	line, col           int
	breakLine, breakCol int

	open     bool // a property event was fired and its terminal data event is pending
	skipping bool // resync: rest of the logical line is discarded
	skipped  int

	err   error
	freed bool
}

// New allocates a parser with clean state. cfg may be nil.
func New(cfg *Config) *Parser {
	p := &Parser{ctx: context.Background()}
	if cfg != nil {
		p.cfg = *cfg
	}
	p.cfg.setDefaults()
	p.log = p.cfg.Logger
	p.Reset()
	return p
}

// SetContext sets the context handed to every callback.
func (p *Parser) SetContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	p.ctx = ctx
}

// Context returns the context handed to every callback.
func (p *Parser) Context() context.Context {
	return p.ctx
}

// SetPropertyHandler registers the property callback, nil unregisters it.
func (p *Parser) SetPropertyHandler(f PropertyFunc) {
	p.onProperty = f
}

// SetDataHandler registers the data callback, nil unregisters it. Without a
// data callback values are not decoded at all, which makes structural scans cheap.
func (p *Parser) SetDataHandler(f DataFunc) {
	p.onData = f
}

// SetHandler registers both callbacks of h. A HandlerFuncs with a nil
// function leaves that callback unregistered.
func (p *Parser) SetHandler(h Handler) {
	if hf, ok := h.(HandlerFuncs); ok {
		p.onProperty = hf.OnProperty
		p.onData = hf.OnData
		return
	}
	if h == nil {
		p.onProperty, p.onData = nil, nil
		return
	}
	p.onProperty = h.Property
	p.onData = h.Data
}

// Parse feeds one chunk of input. final forces everything still buffered to
// be flushed: a pending line break, an open line and incomplete decode groups.
// An empty chunk is fine, typically used together with final.
//
// In strict mode the first error is returned and every later call returns it
// again, the parser is only good for Free or Reset after that. Data decoded
// before a parse error is delivered, the terminal data event of the broken
// property is not.
func (p *Parser) Parse(chunk []byte, final bool) error {
	if p.freed {
		return ErrFreed
	}
	if p.err != nil {
		return p.err
	}
	for _, c := range chunk {
		if err := p.feed(c); err != nil {
			return p.fail(err)
		}
	}
	if final {
		if err := p.finish(); err != nil {
			return p.fail(err)
		}
		return nil
	}
	if err := p.flushData(); err != nil {
		return p.fail(err)
	}
	return nil
}

// Write implements io.Writer, it is Parse with final set to false.
func (p *Parser) Write(b []byte) (int, error) {
	if err := p.Parse(b, false); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close implements io.Closer, it flushes the parser with a final Parse call.
func (p *Parser) Close() error {
	return p.Parse(nil, true)
}

// Reset puts the parser back into its freshly created state. Handlers,
// context and configuration are kept.
func (p *Parser) Reset() {
	p.resetLine()
	p.fold = foldState{}
	p.out = p.out[:0]
	p.line, p.col = 1, 0
	p.breakLine, p.breakCol = 0, 0
	p.open = false
	p.skipping = false
	p.skipped = 0
	p.err = nil
	p.freed = false
}

// Free releases all buffers. Parse returns ErrFreed afterwards.
func (p *Parser) Free() {
	p.buf = nil
	p.out = nil
	p.params = nil
	p.onProperty = nil
	p.onData = nil
	p.freed = true
}

// Err returns the error that stopped the parser, if any.
func (p *Parser) Err() error {
	return p.err
}

// Skipped returns how many malformed lines were skipped in Resync mode.
func (p *Parser) Skipped() int {
	return p.skipped
}

// fail makes err sticky. Bytes decoded ahead of a parse error are still
// handed to the data handler, whatever the chunking was.
func (p *Parser) fail(err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		if ferr := p.flushData(); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}
	p.err = err
	return err
}

// handle applies the resync policy to an error from the state machine. Only
// parse errors are skipped, errors from callbacks always abort.
func (p *Parser) handle(err error, eol bool) error {
	if err == nil {
		return nil
	}
	var pe *ParseError
	if !p.cfg.Resync || !errors.As(err, &pe) {
		return err
	}
	p.skipped++
	p.log.Warn("skipping malformed line", "line", pe.Line, "col", pe.Column, "state", pe.State, "err", err)

	// the value is cut short, what was decoded up to the error is kept
	if err := p.flushData(); err != nil {
		return err
	}
	wasOpen := p.open
	p.open = false
	p.resetLine()
	p.skipping = !eol
	if wasOpen && p.onData != nil {
		if err := p.onData(p.ctx, nil); err != nil {
			return &handlerError{event: "data", err: err}
		}
	}
	return nil
}

func (p *Parser) parseError(kind error, c byte) *ParseError {
	return &ParseError{Kind: kind, Line: p.line, Column: p.col, State: p.state, Char: c}
}

// flushData hands the batched decoded bytes to the data handler.
func (p *Parser) flushData() error {
	if len(p.out) == 0 {
		return nil
	}
	if p.onData != nil {
		if err := p.onData(p.ctx, p.out); err != nil {
			p.out = p.out[:0]
			return &handlerError{event: "data", err: err}
		}
	}
	p.out = p.out[:0]
	return nil
}
