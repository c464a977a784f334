package table_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/pkg/object"
	"github.com/lumen-lang/lumen/pkg/table"
	"github.com/lumen-lang/lumen/pkg/value"
)

func TestSetGetDelete(t *testing.T) {
	pool := object.NewPool()
	tb := table.New(pool)

	isNew := tb.Set(value.Int(1), value.Float(1.5))
	require.True(t, isNew)

	v, ok := tb.Get(value.Int(1))
	require.True(t, ok)
	assert.Equal(t, 1.5, v.AsFloat())

	isNew = tb.Set(value.Int(1), value.Float(2.5))
	assert.False(t, isNew)

	require.True(t, tb.Delete(value.Int(1)))
	_, ok = tb.Get(value.Int(1))
	assert.False(t, ok)
}

func TestGrowthSurvivesManyInserts(t *testing.T) {
	pool := object.NewPool()
	tb := table.New(pool)

	for i := int64(0); i < 300; i++ {
		tb.Set(value.Int(i), value.Int(i*2))
	}
	require.Equal(t, 300, tb.Len())

	for i := int64(0); i < 300; i++ {
		v, ok := tb.Get(value.Int(i))
		require.True(t, ok)
		assert.Equal(t, i*2, v.AsInt())
	}
}

func TestTombstonesKeepProbeChainIntact(t *testing.T) {
	pool := object.NewPool()
	tb := table.New(pool)

	tb.Set(value.Int(1), value.Bool(true))
	tb.Set(value.Int(2), value.Bool(true))
	tb.Delete(value.Int(1))

	_, ok := tb.Get(value.Int(2))
	assert.True(t, ok, "deleting one key must not break lookups for others")
}

func TestInternReturnsSameRefForEqualContent(t *testing.T) {
	pool := object.NewPool()
	strings := table.New(pool)

	a := strings.Intern(pool, []byte("hello"))
	b := strings.Intern(pool, []byte("hello"))
	c := strings.Intern(pool, []byte("world"))

	assert.Equal(t, a.AsRef(), b.AsRef())
	assert.NotEqual(t, a.AsRef(), c.AsRef())
	// "hello" allocated once despite two Intern calls; "world" adds one more.
	assert.Equal(t, 2, pool.Count())
}

func TestAddAllCopiesLiveEntries(t *testing.T) {
	pool := object.NewPool()
	src := table.New(pool)
	dest := table.New(pool)

	src.Set(value.Int(1), value.Bool(true))
	src.Set(value.Int(2), value.Bool(false))
	src.AddAll(dest)

	assert.Equal(t, 2, dest.Len())
}
