package log

import (
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

const (
	// ErrAttrKey is the field an error value is logged under.
	ErrAttrKey = "error"
)

// addError writes err and, when cockroachdb/errors captured one, its stack
// trace onto the event.
func addError(ev *zerolog.Event, err error) *zerolog.Event {
	ev = ev.Str(ErrAttrKey, err.Error())
	if obj, ok := unwrapMarshaler(err); ok {
		ev = ev.Object("error_detail", obj)
	}
	if st := extractStacktrace(err); st != "" {
		ev = ev.Str(StacktraceKey, st)
	}
	return ev
}

// unwrapMarshaler finds the first error in the chain that knows how to
// describe itself to zerolog (the typed errors in pkg/errors do).
func unwrapMarshaler(err error) (zerolog.LogObjectMarshaler, bool) {
	var m zerolog.LogObjectMarshaler
	if errors.As(err, &m) {
		return m, true
	}
	return nil, false
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
