package artifact

import (
	"bytes"
	"io"
	"testing"

	"github.com/printmate/order-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStoreSaveOpenRelease(t *testing.T) {
	s, err := NewStore(t.TempDir(), logger.NewWithZap(zap.NewNop()))
	require.NoError(t, err)

	data := []byte("%PDF-1.4 test data")

	ref, err := s.Save(bytes.NewReader(data), "document.pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, ref)

	f, err := s.Open(ref)
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, data, got)

	require.NoError(t, s.Release(ref))

	_, err = s.Open(ref)
	assert.Error(t, err)

	// Second release is a no-op.
	require.NoError(t, s.Release(ref))
	// Empty ref is a no-op.
	require.NoError(t, s.Release(""))
}

func TestStoreRefsAreUnique(t *testing.T) {
	s, err := NewStore(t.TempDir(), logger.NewWithZap(zap.NewNop()))
	require.NoError(t, err)

	first, err := s.Save(bytes.NewReader([]byte("a")), "same.pdf")
	require.NoError(t, err)
	second, err := s.Save(bytes.NewReader([]byte("b")), "same.pdf")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
