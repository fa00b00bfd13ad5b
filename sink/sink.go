// Package sink assembles parse events into flat records and stores them.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/modfin/cardx"
)

// Record is one property with its whole decoded value.
type Record struct {
	DocID  string       `json:"doc_id"`
	Seq    int          `json:"seq"`
	Group  string       `json:"group,omitempty"`
	Name   string       `json:"name"`
	Params cardx.Params `json:"params,omitempty"`
	Value  []byte       `json:"value"`
}

// Text returns the value as a string.
func (r Record) Text() string {
	return string(r.Value)
}

type Store interface {
	Put(ctx context.Context, rec Record) error
}

var ErrValueTooLarge = errors.New("property value too large")

// Recorder is a cardx.Handler collecting the data events of each property
// into a Record, which is handed to the store when the value is complete.
type Recorder struct {
	store    Store
	docID    string
	maxValue int

	seq int
	rec *Record
}

// NewRecorder records into store under docID, an empty docID gets a new one.
// maxValue limits the size of a single value, zero means no limit.
func NewRecorder(store Store, docID string, maxValue int) *Recorder {
	if docID == "" {
		docID = NewDocumentID()
	}
	return &Recorder{store: store, docID: docID, maxValue: maxValue}
}

func (r *Recorder) DocID() string {
	return r.docID
}

// Count returns the number of records stored so far.
func (r *Recorder) Count() int {
	return r.seq
}

func (r *Recorder) Property(_ context.Context, name string, params cardx.Params) error {
	rec := &Record{DocID: r.docID, Seq: r.seq, Name: name, Params: params}
	if group, n, ok := strings.Cut(name, "."); ok {
		rec.Group, rec.Name = group, n
	}
	r.rec = rec
	return nil
}

func (r *Recorder) Data(ctx context.Context, data []byte) error {
	if r.rec == nil {
		return nil
	}
	if len(data) > 0 {
		if r.maxValue > 0 && len(r.rec.Value)+len(data) > r.maxValue {
			return ErrValueTooLarge
		}
		r.rec.Value = append(r.rec.Value, data...)
		return nil
	}
	rec := *r.rec
	r.rec = nil
	if rec.Value == nil {
		rec.Value = []byte{}
	}
	if err := r.store.Put(ctx, rec); err != nil {
		return err
	}
	r.seq++
	return nil
}

// MemoryStore keeps records in memory.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

func (m *MemoryStore) Put(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryStore) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

// JSONStore writes every record as one line of JSON.
type JSONStore struct {
	enc *json.Encoder
}

func NewJSONStore(w io.Writer) *JSONStore {
	return &JSONStore{enc: json.NewEncoder(w)}
}

func (s *JSONStore) Put(_ context.Context, rec Record) error {
	return s.enc.Encode(rec)
}
