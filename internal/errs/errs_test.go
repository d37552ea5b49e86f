package errs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gitlab.com/tozd/go/errors"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", fmt.Errorf("boom"), ""},
		{"setup", &SetupError{What: "credentials missing"}, KindSetup},
		{"lookup", &LookupError{Registry: "input_files", Key: "x"}, KindLookup},
		{"format", &FormatError{Op: "load", Ext: ".txtx"}, KindFormat},
		{"degraded", &ParseDegraded{Path: "a.csv", Tier: "robust"}, KindParseDegraded},
		{"network", &NetworkError{Op: "download", StatusCode: 500}, KindNetwork},
		{"wrapped", errors.Errorf("load registry: %w", &SetupError{What: "x"}), KindSetup},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestLookupErrorListsKnownKeys(t *testing.T) {
	err := &LookupError{Registry: "input_files", Key: "nope", Known: []string{"startups", "hospital"}}
	assert.Equal(t, `input_files: "nope" not found (available: hospital, startups)`, err.Error())
}

func TestSetupErrorIncludesRemedy(t *testing.T) {
	err := &SetupError{What: "credential file missing", Path: "/h/.kaggle/kaggle.json", Remedy: "1. create a token"}
	assert.Contains(t, err.Error(), "/h/.kaggle/kaggle.json")
	assert.Contains(t, err.Error(), "1. create a token")
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := &NetworkError{Op: "search", Err: cause}
	assert.ErrorIs(t, err, cause)
}
