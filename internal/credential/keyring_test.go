package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore("")

	tok, err := s.Token()
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, s.SetToken("abc"))
	tok, _ = s.Token()
	assert.Equal(t, "abc", tok)

	require.NoError(t, s.ClearToken())
	tok, _ = s.Token()
	assert.Empty(t, tok)
}

func TestOpen(t *testing.T) {
	s, err := Open("memory", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open("", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &KeyringStore{}, s)

	_, err = Open("vault", t.TempDir())
	assert.Error(t, err)
}
