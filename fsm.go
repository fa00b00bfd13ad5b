package cardx

import (
	"bytes"
	"strings"
)

// step advances the property line state machine by one logical character.
func (p *Parser) step(c byte) error {
	if p.skipping {
		return nil
	}
	switch p.state {
	case StatePropertyName:
		switch c {
		case ';':
			if err := p.takeName(c); err != nil {
				return err
			}
			p.state = StateParamBeforeName
		case ':':
			if err := p.takeName(c); err != nil {
				return err
			}
			return p.startProperty()
		case ' ', '\t':
		default:
			return p.push(c)
		}

	case StateParamBeforeName:
		switch c {
		case ' ', '\t':
		case ';', ':', '=':
			return p.parseError(ErrStructural, c)
		default:
			p.state = StateParamInName
			return p.push(c)
		}

	case StateParamInName:
		switch c {
		case '=':
			p.params = append(p.params, Param{Name: p.token()})
			p.state = StateValueBeforeValue
		case ';':
			p.params = append(p.params, Param{Name: p.token()})
			p.state = StateParamBeforeName
		case ':':
			p.params = append(p.params, Param{Name: p.token()})
			return p.startProperty()
		default:
			return p.push(c)
		}

	case StateValueBeforeValue:
		switch c {
		case ' ', '\t':
		case ';', ':':
			return p.parseError(ErrStructural, c)
		default:
			p.state = StateValueInValue
			return p.step(c)
		}

	case StateValueInValue:
		switch {
		case c == ':':
			p.takeValue()
			return p.startProperty()
		case p.escaped:
			p.escaped = false
			return p.push(c)
		case c == '\\':
			p.escaped = true
		case c == ';':
			p.takeValue()
			p.state = StateParamBeforeName
		default:
			return p.push(c)
		}

	case StatePropertyData:
		return p.decode(c)
	}
	return nil
}

// lineBreak handles a real, unfolded line break. final is set when the
// break is synthesised at the end of input, a dangling quoted-printable
// soft break then ends the value too.
func (p *Parser) lineBreak(final bool) error {
	if p.skipping {
		p.skipping = false
		p.resetLine()
		return nil
	}
	switch p.state {
	case StatePropertyName:
		if len(p.buf) > 0 {
			p.log.Debug("dropping line without value", "line", p.breakLine, "name", string(p.buf))
		}
		p.resetLine()
		return nil
	case StatePropertyData:
		if !final && p.dec.softBreak() {
			return nil
		}
		return p.endProperty()
	}
	return &ParseError{Kind: ErrStructural, Line: p.breakLine, Column: p.breakCol, State: p.state, Char: '\n'}
}

func (p *Parser) push(c byte) error {
	if len(p.buf) >= p.cfg.MaxLineLength {
		return p.parseError(ErrLineTooLong, c)
	}
	p.buf = append(p.buf, c)
	return nil
}

// token returns the accumulated token as an owned string and clears the buffer.
func (p *Parser) token() string {
	s := string(bytes.TrimRight(p.buf, " \t"))
	p.buf = p.buf[:0]
	return s
}

func (p *Parser) takeName(c byte) error {
	p.name = p.token()
	if p.name == "" {
		return p.parseError(ErrStructural, c)
	}
	return nil
}

func (p *Parser) takeValue() {
	last := len(p.params) - 1
	p.params[last].Value = string(p.buf)
	p.params[last].HasValue = true
	p.buf = p.buf[:0]
	p.escaped = false
}

// startProperty completes the header: the encoding is selected and the
// property event fires.
func (p *Parser) startProperty() error {
	params := p.params
	p.params = nil
	p.state = StatePropertyData
	p.dec.reset(selectEncoding(params), p.onData != nil)
	p.open = true
	if p.onProperty != nil {
		if err := p.onProperty(p.ctx, p.name, params); err != nil {
			return &handlerError{event: "property", err: err}
		}
	}
	return nil
}

func (p *Parser) decode(c byte) error {
	out, err := p.dec.decode(p.out, c)
	p.out = out
	if err != nil {
		return p.parseError(err, c)
	}
	if len(p.out) >= dataFlushSize {
		return p.flushData()
	}
	return nil
}

// endProperty flushes the decoder and fires the terminal data event.
func (p *Parser) endProperty() error {
	out, err := p.dec.flush(p.out)
	p.out = out
	if err != nil {
		return &ParseError{Kind: err, Line: p.breakLine, Column: p.breakCol, State: p.state, Char: '\n'}
	}
	if err := p.flushData(); err != nil {
		return err
	}
	p.open = false
	p.resetLine()
	if p.onData != nil {
		if err := p.onData(p.ctx, nil); err != nil {
			return &handlerError{event: "data", err: err}
		}
	}
	return nil
}

func (p *Parser) resetLine() {
	p.state = StatePropertyName
	p.buf = p.buf[:0]
	p.name = ""
	p.params = nil
	p.escaped = false
}

// selectEncoding picks the value encoding from an ENCODING parameter or from
// a bare parameter named after an encoding, as vCard 2.1 writes it.
func selectEncoding(params Params) EncodingMode {
	for _, prm := range params {
		if prm.HasValue {
			if !strings.EqualFold(prm.Name, "ENCODING") {
				continue
			}
			if m, ok := encodingTokens[strings.ToUpper(strings.TrimSpace(prm.Value))]; ok {
				return m
			}
			continue
		}
		// single letter tokens are only accepted as ENCODING values
		if len(prm.Name) > 1 {
			if m, ok := encodingTokens[strings.ToUpper(prm.Name)]; ok {
				return m
			}
		}
	}
	return EncodingNone
}
