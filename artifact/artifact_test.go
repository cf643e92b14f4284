package artifact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemPinnerRoundTrips(t *testing.T) {
	p := NewMemPinner()
	cid, err := p.Pin(context.Background(), []byte("model-weights"))
	require.NoError(t, err)

	got, err := p.Get(context.Background(), cid)
	require.NoError(t, err)
	require.Equal(t, []byte("model-weights"), got)
}

func TestMemPinnerGetUnknownCidErrors(t *testing.T) {
	p := NewMemPinner()
	_, err := p.Get(context.Background(), "deadbeef")
	require.Error(t, err)
}
