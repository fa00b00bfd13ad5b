package cardx

// foldState survives between Parse calls so a fold split over two chunks is
// still recognised.
type foldState struct {
	// startOfLine is set after a physical line break. Whether it was a fold
	// or a real line break is decided by the next byte.
	startOfLine bool
	// cr is set after a '\r' that may be the first half of CRLF.
	cr bool
}

// DefaultFoldWidth is the line width Fold uses when given a width of zero.
const DefaultFoldWidth = 75

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

// feed runs one raw input byte through the line assembler. Folded line
// breaks are removed, the whitespace starting the continuation line is kept.
func (p *Parser) feed(c byte) error {
	p.col++
	if p.fold.startOfLine {
		p.fold.startOfLine = false
		if isBlank(c) {
			return p.handle(p.step(c), false)
		}
		if err := p.handle(p.lineBreak(false), true); err != nil {
			return err
		}
	}
	if p.fold.cr {
		p.fold.cr = false
		if c == '\n' {
			p.newline()
			return nil
		}
		// a lone CR is data
		if err := p.handle(p.step('\r'), false); err != nil {
			return err
		}
	}
	switch c {
	case '\r':
		p.fold.cr = true
		return nil
	case '\n':
		p.newline()
		return nil
	}
	return p.handle(p.step(c), false)
}

func (p *Parser) newline() {
	p.fold.startOfLine = true
	p.breakLine, p.breakCol = p.line, p.col
	p.line++
	p.col = 0
}

// finish resolves everything left pending at the end of the input. A CR at
// the very end is taken as a line break, and an unterminated line is ended
// as if a line break followed it.
func (p *Parser) finish() error {
	if p.fold.cr {
		p.fold.cr = false
		p.newline()
	}
	if p.fold.startOfLine {
		p.fold.startOfLine = false
		if err := p.handle(p.lineBreak(false), true); err != nil {
			return err
		}
	}
	if p.skipping || p.state != StatePropertyName || len(p.buf) > 0 {
		p.breakLine, p.breakCol = p.line, p.col
		if err := p.handle(p.lineBreak(true), true); err != nil {
			return err
		}
	}
	return p.flushData()
}

// Fold breaks a logical line into physical lines of at least width bytes.
// A CRLF is inserted in front of the first space or tab found at or past the
// width, so unfolding the result gives back line unchanged. Lines without
// whitespace are never broken.
func Fold(line []byte, width int) []byte {
	if width <= 0 {
		width = DefaultFoldWidth
	}
	out := make([]byte, 0, len(line)+2*(len(line)/width+1))
	n := 0
	for _, c := range line {
		if n >= width && isBlank(c) {
			out = append(out, '\r', '\n')
			n = 0
		}
		out = append(out, c)
		n++
	}
	return out
}
