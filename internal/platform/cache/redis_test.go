package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), mr.Addr())
	require.NoError(t, err)
	require.NotNil(t, client)
	require.NoError(t, client.Close())
}

func TestNewUnreachableServerKeepsClient(t *testing.T) {
	client, err := New(context.Background(), "127.0.0.1:1")
	require.Error(t, err)
	require.NotNil(t, client)
	require.NoError(t, client.Close())
}
