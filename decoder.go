package cardx

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

const invalidSymbol = 0xff

var base64Values = func() (t [256]byte) {
	for i := range t {
		t[i] = invalidSymbol
	}
	for i := 0; i < len(base64Alphabet); i++ {
		t[base64Alphabet[i]] = byte(i)
	}
	return t
}()

// decoder turns the raw characters of one property value into decoded bytes.
// Partial quoted-printable escapes and base64 quartets are kept in scratch
// between calls, so a value may be split anywhere across Parse calls.
type decoder struct {
	mode EncodingMode
	// emit is false when nobody listens for data, only the state needed to
	// find the end of the value is tracked then
	emit    bool
	scratch [4]byte
	n       int
}

func (d *decoder) reset(mode EncodingMode, emit bool) {
	d.mode = mode
	d.emit = emit
	d.n = 0
}

// decode appends the output for c, if any, to dst.
func (d *decoder) decode(dst []byte, c byte) ([]byte, error) {
	switch d.mode {
	case EncodingQuotedPrintable:
		return d.quotedPrintable(dst, c), nil
	case EncodingBase64:
		if !d.emit {
			return dst, nil
		}
		return d.base64(dst, c)
	}
	if d.emit {
		dst = append(dst, c)
	}
	return dst, nil
}

func (d *decoder) quotedPrintable(dst []byte, c byte) []byte {
	if d.n == 0 {
		if c == '=' {
			d.scratch[0] = c
			d.n = 1
			return dst
		}
		if d.emit {
			dst = append(dst, c)
		}
		return dst
	}
	d.scratch[d.n] = c
	d.n++
	if d.n < 3 {
		return dst
	}
	d.n = 0
	if !d.emit {
		return dst
	}
	hi, ok1 := unhex(d.scratch[1])
	lo, ok2 := unhex(d.scratch[2])
	if !ok1 || !ok2 {
		// not an escape, keep it as written
		return append(dst, d.scratch[:3]...)
	}
	return append(dst, hi<<4|lo)
}

func (d *decoder) base64(dst []byte, c byte) ([]byte, error) {
	switch c {
	case ' ', '\t', '\r', '\v', '\f':
		return dst, nil
	}
	d.scratch[d.n] = c
	d.n++
	if d.n < 4 {
		return dst, nil
	}
	d.n = 0
	return decodeQuantum(dst, d.scratch)
}

// softBreak reports whether a line break right now is a quoted-printable
// soft line break, "=" at the end of a line, and consumes the "=".
func (d *decoder) softBreak() bool {
	if d.mode == EncodingQuotedPrintable && d.n == 1 {
		d.n = 0
		return true
	}
	return false
}

// flush ends the value. A dangling quoted-printable "=" is passed through
// literally. An incomplete base64 group is padded with '=' and decoded, a
// single leftover character carries no complete byte and is dropped.
func (d *decoder) flush(dst []byte) ([]byte, error) {
	n := d.n
	d.n = 0
	if n == 0 || !d.emit {
		return dst, nil
	}
	switch d.mode {
	case EncodingQuotedPrintable:
		return append(dst, d.scratch[:n]...), nil
	case EncodingBase64:
		if n == 1 {
			return dst, nil
		}
		q := d.scratch
		for i := n; i < 4; i++ {
			q[i] = '='
		}
		return decodeQuantum(dst, q)
	}
	return dst, nil
}

// decodeQuantum decodes one group of four base64 characters. Padding may
// only take the last one or two positions.
func decodeQuantum(dst []byte, q [4]byte) ([]byte, error) {
	var v [4]byte
	n := 4
	for i, c := range q {
		if c == '=' {
			if i < 2 {
				return dst, ErrDecode
			}
			for _, rest := range q[i+1:] {
				if rest != '=' {
					return dst, ErrDecode
				}
			}
			n = i
			break
		}
		x := base64Values[c]
		if x == invalidSymbol {
			return dst, ErrDecode
		}
		v[i] = x
	}
	dst = append(dst, v[0]<<2|v[1]>>4)
	if n > 2 {
		dst = append(dst, v[1]<<4|v[2]>>2)
	}
	if n > 3 {
		dst = append(dst, v[2]<<6|v[3])
	}
	return dst, nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
