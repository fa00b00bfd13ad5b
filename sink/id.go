package sink

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"os"
	"sync/atomic"
	"time"
)

// Document ids are xids: 4 bytes unix time, 3 bytes host, 2 bytes pid and a
// 3 byte counter, written as 20 lower case base32hex characters. They sort by
// creation time.
var idEncoding = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.NoPadding)

var (
	host    [3]byte
	pid     = uint16(os.Getpid())
	counter atomic.Uint32
)

func init() {
	name, err := os.Hostname()
	if err != nil {
		_, _ = rand.Read(host[:])
	} else {
		sum := sha256.Sum256([]byte(name))
		copy(host[:], sum[:])
	}
	var seed [4]byte
	_, _ = rand.Read(seed[:])
	counter.Store(binary.BigEndian.Uint32(seed[:]) & 0xffffff)
}

// NewDocumentID returns a new unique id for a parsed document.
func NewDocumentID() string {
	return newID(time.Now())
}

func newID(t time.Time) string {
	var id [12]byte
	binary.BigEndian.PutUint32(id[0:4], uint32(t.Unix()))
	copy(id[4:7], host[:])
	binary.BigEndian.PutUint16(id[7:9], pid)
	n := counter.Add(1)
	id[9] = byte(n >> 16)
	id[10] = byte(n >> 8)
	id[11] = byte(n)
	return idEncoding.EncodeToString(id[:])
}
