package object_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/pkg/object"
)

func TestAllocateStringAndRead(t *testing.T) {
	pool := object.NewPool()
	hash := object.HashBytes([]byte("hello"))
	ref := pool.AllocateString([]byte("hello"), hash)

	assert.Equal(t, []byte("hello"), pool.StringBytes(ref))
	assert.Equal(t, hash, pool.StringHash(ref))
	assert.Equal(t, object.KindString, pool.Kind(ref))
	assert.Equal(t, "hello", pool.Display(ref))
}

func TestCountAndFreeAll(t *testing.T) {
	pool := object.NewPool()
	pool.AllocateString([]byte("a"), object.HashBytes([]byte("a")))
	pool.AllocateString([]byte("b"), object.HashBytes([]byte("b")))
	require.Equal(t, 2, pool.Count())

	pool.FreeAll()
	assert.Equal(t, 0, pool.Count())
}

func TestHashBytesMatchesFNV1a(t *testing.T) {
	// Known FNV-1a 32-bit digest for the empty string.
	assert.Equal(t, uint32(2166136261), object.HashBytes(nil))
}
