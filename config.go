package cardx

import (
	"errors"
	"fmt"
	"log/slog"
)

// Config holds the tunables of a Parser. The zero value is usable, unset
// fields are filled in with defaults by New.
type Config struct {
	// Logger receives debug records for dropped lines and warnings for errors
	// skipped in Resync mode. Defaults to a logger that discards everything.
	Logger *slog.Logger `json:"-" yaml:"-"`

	// MaxLineLength limits the size of a single token, the property name or a
	// parameter name or value. Growing past it fails with ErrLineTooLong.
	// Defaults to 32 KiB
	MaxLineLength int `json:"max_line_length" yaml:"max_line_length"`

	// MaxSize is the maximum number of bytes ParseReader consumes before it
	// fails with LimitError. Defaults to 10 Mebibytes
	MaxSize int64 `json:"max_size" yaml:"max_size"`

	// ChunkSize is the read size ParseReader uses. Defaults to 4 KiB
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// Resync makes the parser skip a broken line and continue at the next line
	// break instead of failing the whole session on the first error.
	Resync bool `json:"resync" yaml:"resync"`
}

// setDefaults fills in values that were not configured
// The defaults are:
// * discard logging
// * 32 KiB max token length
// * 10 MiB max input for ParseReader, read in 4 KiB chunks
// * strict mode, no resync
func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = discardLogger()
	}
	if c.MaxLineLength == 0 {
		c.MaxLineLength = defaultMaxLineLength
	}
	if c.MaxSize == 0 {
		c.MaxSize = defaultMaxSize
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = defaultChunkSize
	}
}

// Validate reports every invalid setting, joined into one error.
func (c *Config) Validate() error {
	var err error
	if c.MaxLineLength < 0 {
		err = errors.Join(err, fmt.Errorf("max_line_length must not be negative, got %d", c.MaxLineLength))
	}
	if c.MaxSize < 0 {
		err = errors.Join(err, fmt.Errorf("max_size must not be negative, got %d", c.MaxSize))
	}
	if c.ChunkSize < 0 {
		err = errors.Join(err, fmt.Errorf("chunk_size must not be negative, got %d", c.ChunkSize))
	}
	return err
}
