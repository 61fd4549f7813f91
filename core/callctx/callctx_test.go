package callctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticResolvesCaller(t *testing.T) {
	operator := [20]byte{1}
	donor := [20]byte{2}
	id := NewStatic(operator)

	_, err := id.Caller(context.Background())
	require.ErrorIs(t, err, ErrNoCaller)

	got, err := id.Caller(WithCaller(context.Background(), donor))
	require.NoError(t, err)
	require.Equal(t, donor, got)
	require.Equal(t, operator, id.Operator())
}
