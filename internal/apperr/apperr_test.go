package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfWalksChain(t *testing.T) {
	base := New(NotFound, "Company not found.", "Invalid company ID.")
	wrapped := fmt.Errorf("deleting company: %w", base)

	assert.Equal(t, NotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, NotFound))
	assert.False(t, Is(wrapped, Forbidden))

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "Invalid company ID.", e.Detail)
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, Internal))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("key too short")
	err := Wrap(Signing, "Access token generation failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "key too short", err.Detail)
	assert.Equal(t, "Access token generation failed: key too short", err.Error())
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"message only", New(Forbidden, "Insufficient permissions.", ""), "Insufficient permissions."},
		{"message and detail", New(NotFound, "Role not found.", "Invalid role ID."), "Role not found.: Invalid role ID."},
		{"wrapped without message", &Error{Kind: Internal, Err: errors.New("x")}, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "persistence", Persistence.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}
