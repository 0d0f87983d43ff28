package auth

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestGuardAuthorize(t *testing.T) {
	guard := NewGuard("S")

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{name: "valid", header: "Bearer S"},
		{name: "scheme is case-insensitive", header: "bearer S"},
		{name: "case-mismatched secret", header: "Bearer s", want: ErrInvalidCredential},
		{name: "wrong secret", header: "Bearer nope", want: ErrInvalidCredential},
		{name: "no header", header: "", want: ErrMissingCredential},
		{name: "basic scheme", header: "Basic S", want: ErrMissingCredential},
		{name: "bare token", header: "S", want: ErrMissingCredential},
		{name: "empty token", header: "Bearer  ", want: ErrMissingCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.Authorize(tt.header)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrAuthDenied)
		})
	}
}

func TestGuardFailsClosed(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("no secret denies every header", prop.ForAll(
		func(token string) bool {
			for _, guard := range []*Guard{nil, {}, NewGuard("")} {
				if !errors.Is(guard.Authorize("Bearer "+token), ErrAuthDenied) {
					return false
				}
				if !errors.Is(guard.Authorize(token), ErrAuthDenied) {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestGuardWithoutSecret(t *testing.T) {
	assert.ErrorIs(t, NewGuard("").Authorize("Bearer S"), ErrMisconfigured)
	assert.ErrorIs(t, NewGuard("").Authorize(""), ErrMissingCredential)
}

func TestGuardErrorsDoNotLeakSecret(t *testing.T) {
	guard := NewGuard("super-secret")
	err := guard.Authorize("Bearer wrong")
	assert.NotContains(t, err.Error(), "super-secret")
}
