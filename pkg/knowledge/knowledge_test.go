package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryMatchesKeywords(t *testing.T) {
	kb := NewBase(DefaultEntries, 3)

	results := kb.Query("what chains are supported?")
	require.NotEmpty(t, results)
	assert.Equal(t, "Supported chains", results[0].Title)

	assert.Empty(t, kb.Query("tell me a joke"))
}

func TestQueryCapsResults(t *testing.T) {
	kb := NewBase(DefaultEntries, 1)

	results := kb.Query("openocean kyberswap meson x402")
	assert.Len(t, results, 1)
}

func TestResolveProtocol(t *testing.T) {
	kb := NewBase(DefaultEntries, 3)

	assert.Equal(t, "kyberswap", kb.ResolveProtocol("kyber"))
	assert.Equal(t, "kyberswap", kb.ResolveProtocol("KyberSwap"))
	assert.Equal(t, "x402", kb.ResolveProtocol("x402"))
	assert.Empty(t, kb.ResolveProtocol("uniswap"))
	assert.Empty(t, kb.ResolveProtocol(""))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"title": "Test", "content": "Test content.", "keywords": ["testing"], "protocol": "testproto"}
	]`), 0o644))

	kb, err := Load(path, 3)
	require.NoError(t, err)
	assert.Equal(t, "testproto", kb.ResolveProtocol("testing"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"), 3)
	assert.Error(t, err)

	_, err = Load("", 3)
	assert.Error(t, err)
}
