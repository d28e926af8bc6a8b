package metrics

import (
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies why a request failed. The zero value means the request succeeded.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindTimeout           ErrorKind = "timeout"
	KindConnectionRefused ErrorKind = "connection_refused"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindHTTPErrorStatus   ErrorKind = "http_error_status"
)

// ErrorKinds lists every failure kind in display order.
var ErrorKinds = []ErrorKind{
	KindTimeout,
	KindConnectionRefused,
	KindMalformedResponse,
	KindHTTPErrorStatus,
}

var kindLabels = map[ErrorKind]string{
	KindTimeout:           "Timeout",
	KindConnectionRefused: "Connection refused",
	KindMalformedResponse: "Malformed response",
	KindHTTPErrorStatus:   "HTTP error status",
}

// Label returns a human-friendly name for the kind.
func (k ErrorKind) Label() string {
	if k == KindNone {
		return "Success"
	}
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return humanizeKind(string(k))
}

// ParseErrorKind maps a textual kind back to an ErrorKind.
func ParseErrorKind(s string) (ErrorKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	for _, k := range ErrorKinds {
		if string(k) == normalized {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown error kind %q", s)
}

// Outcome is the classified result of a single request.
// A zero Kind is the Success variant; any other Kind is the Error variant.
type Outcome struct {
	Kind       ErrorKind     `json:"kind,omitempty" yaml:"kind,omitempty"`
	StatusCode int           `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Latency    time.Duration `json:"latency" yaml:"latency"`
	Started    time.Time     `json:"started" yaml:"started"`
	Err        string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Success builds a success outcome.
func Success(status int, started time.Time, latency time.Duration) Outcome {
	return Outcome{StatusCode: status, Started: started, Latency: latency}
}

// Failure builds an error outcome. A nil cause leaves Err empty.
func Failure(kind ErrorKind, status int, started time.Time, latency time.Duration, cause error) Outcome {
	o := Outcome{Kind: kind, StatusCode: status, Started: started, Latency: latency}
	if cause != nil {
		o.Err = cause.Error()
	}
	return o
}

func (o Outcome) Success() bool {
	return o.Kind == KindNone
}

func (o Outcome) String() string {
	if o.Success() {
		return fmt.Sprintf("success status=%d latency=%s", o.StatusCode, o.Latency)
	}
	if o.StatusCode != 0 {
		return fmt.Sprintf("%s status=%d latency=%s", o.Kind, o.StatusCode, o.Latency)
	}
	return fmt.Sprintf("%s latency=%s", o.Kind, o.Latency)
}

func humanizeKind(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	if len(words) == 0 {
		return "Unknown error"
	}
	words[0] = capitalize(words[0])
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
