package logging

import "log/slog"

// Common field names for consistent logging across the service.
const (
	FieldService  = "service"
	FieldEventID  = "event_id"
	FieldIndex    = "index"
	FieldIP       = "ip"
	FieldMethod   = "method"
	FieldPath     = "path"
	FieldStatus   = "status"
	FieldDuration = "duration_ms"
	FieldError    = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// EventID returns a slog attribute for an event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// Index returns a slog attribute for an index name.
func Index(name string) slog.Attr {
	return slog.String(FieldIndex, name)
}

// IP returns a slog attribute for the client IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
