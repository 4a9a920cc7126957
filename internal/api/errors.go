package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Kind classifies a failed API call.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindValidation
	KindServerError
	KindNetworkFailure
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation"
	case KindServerError:
		return "server error"
	case KindNetworkFailure:
		return "network failure"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks against a kind.
var (
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrValidation     = &Error{Kind: KindValidation}
	ErrServerError    = &Error{Kind: KindServerError}
	ErrNetworkFailure = &Error{Kind: KindNetworkFailure}
	ErrTimeout        = &Error{Kind: KindTimeout}
)

// Error is the only error type returned by Client methods.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches kind sentinels: errors.Is(err, api.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" && t.Message == "" && t.Status == 0 && t.Err == nil {
		return e.Kind == t.Kind
	}
	return e == t
}

// KindOf reports the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// Detail returns the server-provided message of err when present, otherwise
// the full error text.
func Detail(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusRequestTimeout:
		return KindTimeout
	case status >= 500:
		return KindServerError
	case status >= 400:
		return KindValidation
	default:
		return KindServerError
	}
}

// maxBodyMessage caps how much of a raw error body becomes the message.
const maxBodyMessage = 200

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// statusError builds an Error from a non-2xx reply, preferring the server's
// detail field over the raw body.
func statusError(op string, status int, body []byte) *Error {
	msg := ""
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		msg = parseDetail(payload.Detail)
	}
	if msg == "" {
		msg = truncateUTF8(strings.TrimSpace(string(body)), maxBodyMessage)
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Kind: kindForStatus(status), Op: op, Status: status, Message: msg}
}

// parseDetail accepts a plain string or a validation list of {"msg": ...}.
func parseDetail(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return strings.TrimSpace(string(raw))
}
