// Package metrics counts parse events and outcomes in prometheus.
package metrics

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/modfin/cardx"
)

var (
	metricProperties = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardx_properties_total",
			Help: "Number of properties parsed, by property name and value encoding.",
		},
		[]string{
			"name",     // Upper case, all extension names are counted as "X-".
			"encoding", // "none", "quoted-printable", "base64", "8bit"
		},
	)
	metricBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardx_data_bytes_total",
			Help: "Number of decoded value bytes, by value encoding.",
		},
		[]string{
			"encoding",
		},
	)
	metricDocuments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardx_documents_total",
			Help: "Number of documents parsed, by result.",
		},
		[]string{
			"result", // "ok", "error"
		},
	)
	metricErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardx_parse_errors_total",
			Help: "Number of failed parses, by kind of error.",
		},
		[]string{
			"kind", // "structural", "decode", "line_too_long", "limit", "freed", "handler"
		},
	)
)

// Middleware counts properties and decoded bytes passing through the chain.
func Middleware() cardx.Middleware {
	return func(next cardx.Handler) cardx.Handler {
		return &counter{next: next}
	}
}

type counter struct {
	next     cardx.Handler
	encoding string
}

func (c *counter) Property(ctx context.Context, name string, params cardx.Params) error {
	c.encoding = params.Encoding().String()
	metricProperties.WithLabelValues(nameLabel(name), c.encoding).Inc()
	return c.next.Property(ctx, name, params)
}

func (c *counter) Data(ctx context.Context, data []byte) error {
	if len(data) > 0 {
		metricBytes.WithLabelValues(c.encoding).Add(float64(len(data)))
	}
	return c.next.Data(ctx, data)
}

// nameLabel keeps the label set bounded.
func nameLabel(name string) string {
	if _, n, ok := strings.Cut(name, "."); ok {
		name = n
	}
	name = strings.ToUpper(name)
	if strings.HasPrefix(name, "X-") {
		return "X-"
	}
	return name
}

// ObserveParse records the outcome of one document parse.
func ObserveParse(err error) {
	if err == nil {
		metricDocuments.WithLabelValues("ok").Inc()
		return
	}
	metricDocuments.WithLabelValues("error").Inc()
	metricErrors.WithLabelValues(ErrorKind(err)).Inc()
}

// ErrorKind maps a parse error to its label value.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, cardx.ErrStructural):
		return "structural"
	case errors.Is(err, cardx.ErrDecode):
		return "decode"
	case errors.Is(err, cardx.ErrLineTooLong):
		return "line_too_long"
	case errors.Is(err, cardx.LimitError):
		return "limit"
	case errors.Is(err, cardx.ErrFreed):
		return "freed"
	}
	return "handler"
}

// WriteText writes all cardx metrics from the default registry in the
// prometheus text format.
func WriteText(w io.Writer) error {
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range mfs {
		if !strings.HasPrefix(mf.GetName(), "cardx_") {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
