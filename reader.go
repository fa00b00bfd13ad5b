package cardx

import (
	"context"
	"errors"
	"io"
)

// limitedReader is io.LimitReader that tells a truncated input apart from a
// clean EOF. Once N is used up it peeks one byte: EOF means the input fit exactly.
type limitedReader struct {
	R io.Reader // underlying reader
	N int64     // max bytes remaining
}

func (l *limitedReader) Read(p []byte) (n int, err error) {
	if l.N <= 0 {
		var one [1]byte
		for {
			n, err = l.R.Read(one[:])
			if n > 0 {
				return 0, LimitError
			}
			if err != nil {
				return 0, err
			}
		}
	}
	if int64(len(p)) > l.N {
		p = p[0:l.N]
	}
	n, err = l.R.Read(p)
	l.N -= int64(n)
	return
}

// ParseReader parses everything r yields, in chunks of cfg.ChunkSize, and
// sends the events to h. ctx is checked between chunks and is the context
// the callbacks receive. Input beyond cfg.MaxSize fails with LimitError.
func ParseReader(ctx context.Context, r io.Reader, h Handler, cfg *Config) error {
	p := New(cfg)
	defer p.Free()
	p.SetContext(ctx)
	p.SetHandler(h)

	lr := &limitedReader{R: r, N: p.cfg.MaxSize}
	buf := make([]byte, p.cfg.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := lr.Read(buf)
		if n > 0 {
			if perr := p.Parse(buf[:n], false); perr != nil {
				return perr
			}
		}
		if errors.Is(err, io.EOF) {
			return p.Parse(nil, true)
		}
		if err != nil {
			return err
		}
	}
}
