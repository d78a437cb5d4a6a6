package rewrite

import (
	"fmt"
	"unicode/utf8"
)

// Kind classifies why candidate generation failed.
type Kind string

const (
	KindInput     Kind = "input"
	KindTransport Kind = "transport"
	KindTimeout   Kind = "timeout"
	KindStatus    Kind = "status"
	KindDecode    Kind = "decode"
	KindContent   Kind = "content"
	KindEmpty     Kind = "empty"
)

const excerptLimit = 500

// GenerationError reports a failure to obtain candidates. Excerpt holds a
// truncated piece of the offending SQL or response body.
type GenerationError struct {
	Kind       Kind
	StatusCode int
	Excerpt    string
	Err        error
}

func (e *GenerationError) Error() string {
	msg := "rewrite: " + string(e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Excerpt != "" {
		msg += ": " + e.Excerpt
	}
	return msg
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ConfigError reports an unusable provider configuration. It is raised before
// any network call.
type ConfigError struct {
	Provider string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rewrite: provider %q: %s", e.Provider, e.Reason)
}

func excerpt(s string) string {
	if len(s) <= excerptLimit {
		return s
	}
	cut := excerptLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
