package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStore(t *testing.T) {
	s := NewBlobStore()

	uri, err := s.PutObject(context.Background(), "alpha/run-1/abc.html", "text/html", []byte("<html/>"))
	require.NoError(t, err)
	require.Equal(t, "memory://alpha/run-1/abc.html", uri)
	require.Equal(t, 1, s.Len())

	data, ok := s.Get("alpha/run-1/abc.html")
	require.True(t, ok)
	require.Equal(t, []byte("<html/>"), data)

	_, err = s.PutObject(context.Background(), "", "text/html", nil)
	require.Error(t, err)
}
