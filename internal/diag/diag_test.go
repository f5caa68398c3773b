package diag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	err := Newf(ErrMissingAliasTarget, "Demo.Color.Purple", "no member with value %d", 9)
	require.EqualError(t, err, "Demo.Color.Purple: missing alias target: no member with value 9")
	require.ErrorIs(t, err, ErrMissingAliasTarget)
	require.NotErrorIs(t, err, ErrBinderNotFound)

	wrapped := fmt.Errorf("backend clang: %w", err)
	require.ErrorIs(t, wrapped, ErrMissingAliasTarget)
	subject, ok := SubjectOf(wrapped)
	require.True(t, ok)
	require.Equal(t, "Demo.Color.Purple", subject)

	joined := errors.Join(wrapped, Newf(ErrInvalidSignature, "Demo.Core.Sum", ""))
	require.ErrorIs(t, joined, ErrInvalidSignature)
	require.Contains(t, joined.Error(), "Demo.Core.Sum: invalid signature")
}
