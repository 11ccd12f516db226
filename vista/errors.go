package vista

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnauthorized marks 401/403 responses. Never retried, always surfaced.
var ErrUnauthorized = errors.New("vista: upstream rejected credentials")

// StatusError is a non-2xx upstream response after retries were exhausted or
// ruled out.
type StatusError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("vista %s: status %d: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("vista %s: status %d", e.Endpoint, e.Status)
}

func (e *StatusError) Unwrap() error {
	if e.Status == 401 || e.Status == 403 {
		return ErrUnauthorized
	}
	return nil
}

// UnsupportedFieldError is a 400 naming a field the tenant's schema does not
// carry. The registry blocks the field and the request is retried once
// without it.
type UnsupportedFieldError struct {
	Field   string
	Message string
}

func (e *UnsupportedFieldError) Error() string {
	return fmt.Sprintf("vista: unsupported field %q: %s", e.Field, e.Message)
}

// FieldErrorParser extracts the offending field name from an upstream error
// message. The upstream has no stable error code for this condition, so the
// default implementation matches known message wordings; keep it behind this
// interface so it can be swapped when the upstream changes phrasing.
type FieldErrorParser interface {
	Parse(message string) (field string, ok bool)
}

type regexFieldParser struct {
	patterns []*regexp.Regexp
}

// NewRegexFieldParser matches the Portuguese and English wordings observed in
// production ("O campo X não existe", "field X is not available").
func NewRegexFieldParser() FieldErrorParser {
	return &regexFieldParser{patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)campo\s+['"]?([\pL\d _-]+?)['"]?\s+n[ãa]o\s+(?:existe|est[áa]\s+dispon[íi]vel|dispon[íi]vel)`),
		regexp.MustCompile(`(?i)field\s+['"]?([\w _-]+?)['"]?\s+(?:is\s+not\s+available|does\s+not\s+exist)`),
	}}
}

func (p *regexFieldParser) Parse(message string) (string, bool) {
	for _, re := range p.patterns {
		if m := re.FindStringSubmatch(message); m != nil {
			field := strings.TrimSpace(m[1])
			if field != "" {
				return field, true
			}
		}
	}
	return "", false
}
