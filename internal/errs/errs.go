package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind names one of the failure classes a caller can branch on.
type Kind string

const (
	KindSetup         Kind = "setup"
	KindLookup        Kind = "lookup"
	KindFormat        Kind = "format"
	KindParseDegraded Kind = "parse_degraded"
	KindNetwork       Kind = "network"
)

// SetupError reports a missing or unusable prerequisite: credential file,
// configuration document, optional format support.
type SetupError struct {
	What   string
	Path   string
	Remedy string
	Err    error
}

func (e *SetupError) Error() string {
	var b strings.Builder
	b.WriteString("setup: ")
	b.WriteString(e.What)
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Remedy != "" {
		b.WriteString("\n")
		b.WriteString(e.Remedy)
	}
	return b.String()
}

func (e *SetupError) Unwrap() error { return e.Err }

// LookupError reports an unknown symbolic key or an unresolved file search.
type LookupError struct {
	Registry string
	Key      string
	Known    []string
}

func (e *LookupError) Error() string {
	known := append([]string(nil), e.Known...)
	sort.Strings(known)
	if len(known) == 0 {
		return fmt.Sprintf("%s: %q not found", e.Registry, e.Key)
	}
	return fmt.Sprintf("%s: %q not found (available: %s)", e.Registry, e.Key, strings.Join(known, ", "))
}

// FormatError reports an extension or format the loader cannot handle.
type FormatError struct {
	Op   string
	Ext  string
	Path string
}

func (e *FormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: unsupported format %q (%s)", e.Op, e.Ext, e.Path)
	}
	return fmt.Sprintf("%s: unsupported format %q", e.Op, e.Ext)
}

// ParseDegraded records that the permissive parsing tier was needed.
type ParseDegraded struct {
	Path        string
	Tier        string
	SkippedRows int
	Err         error
}

func (e *ParseDegraded) Error() string {
	msg := fmt.Sprintf("parse degraded: %s loaded with %s tier, %d row(s) skipped", e.Path, e.Tier, e.SkippedRows)
	if e.Err != nil {
		msg += fmt.Sprintf(" (strict parse: %v)", e.Err)
	}
	return msg
}

func (e *ParseDegraded) Unwrap() error { return e.Err }

// NetworkError reports a transport failure or a non-success response from the dataset API.
type NetworkError struct {
	Op         string
	URL        string
	StatusCode int
	Hint       string
	Err        error
}

func (e *NetworkError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " (%s)", e.Hint)
	}
	return b.String()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// KindOf classifies err, looking through wrapping. It returns "" for errors
// outside the closed set.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var (
		se *SetupError
		le *LookupError
		fe *FormatError
		pd *ParseDegraded
		ne *NetworkError
	)
	switch {
	case errors.As(err, &se):
		return KindSetup
	case errors.As(err, &le):
		return KindLookup
	case errors.As(err, &fe):
		return KindFormat
	case errors.As(err, &pd):
		return KindParseDegraded
	case errors.As(err, &ne):
		return KindNetwork
	}
	return ""
}
