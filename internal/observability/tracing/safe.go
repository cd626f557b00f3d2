package tracing

import (
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Attributes that may end up on spans. Anything else (reference text,
// transcripts, secret names) is dropped.
var allowedAttributeKeys = map[attribute.Key]struct{}{
	"http.method":             {},
	"http.route":              {},
	"http.status_code":        {},
	"http.server_duration_ms": {},
	"request_id":              {},
	"assessment.tier":         {},
	"assessment.outcome":      {},
	"assessment.simulated":    {},
	"assessment.billed":       {},
	"provider.type":           {},
	"provider.name":           {},
	"code.type":               {},
}

func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedAttributeKeys[attr.Key]; ok {
			out = append(out, attr)
		}
	}
	return out
}

const maxErrorLength = 256

// SafeError shortens an error message before it is recorded on a span.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return nil
	}
	if len(msg) > maxErrorLength {
		msg = msg[:maxErrorLength]
	}
	return errors.New(msg)
}
