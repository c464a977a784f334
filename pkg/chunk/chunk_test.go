package chunk_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/pkg/chunk"
	"github.com/lumen-lang/lumen/pkg/value"
)

func TestWriteExtendsLineMap(t *testing.T) {
	c := chunk.New(false, true)
	c.Write(byte(chunk.OpReturn), 1)
	c.Write(byte(chunk.OpReturn), 1)
	c.Write(byte(chunk.OpReturn), 3)

	assert.Equal(t, 1, c.GetLine(0))
	assert.Equal(t, 1, c.GetLine(1))
	assert.Equal(t, 3, c.GetLine(2))
	assert.Equal(t, len(c.Code), c.LineSum())
}

func TestWriteConstantUsesShortFormUnderCap(t *testing.T) {
	c := chunk.New(false, true)
	require.NoError(t, c.WriteConstant(value.Int(7), 1, ""))

	assert.Equal(t, byte(chunk.OpConstant), c.Code[0])
	assert.Equal(t, byte(0), c.Code[1])
}

func TestWriteConstantUpgradesToLongForm(t *testing.T) {
	c := chunk.New(false, true)
	for i := 0; i < 300; i++ {
		require.NoError(t, c.WriteConstant(value.Int(int64(i)), 1, ""))
	}

	require.Len(t, c.Constants, 300)

	var sawLong bool
	for offset := 0; offset < len(c.Code); {
		op := chunk.OpCode(c.Code[offset])
		if op == chunk.OpConstantLong {
			sawLong = true
			offset += 4
		} else {
			offset += 2
		}
	}
	assert.True(t, sawLong, "expected at least one OP_CONSTANT_LONG once the pool exceeds 255 entries")
}

func TestWriteConstantRejectsLongFormWhenDisabled(t *testing.T) {
	c := chunk.New(false, false)
	for i := 0; i < chunk.MaxShortConstants+1; i++ {
		require.NoError(t, c.WriteConstant(value.Int(int64(i)), 1, ""))
	}
	err := c.WriteConstant(value.Int(999), 1, "")
	assert.ErrorIs(t, err, chunk.ErrTooManyConstants)
}

func TestAddConstantDedupesByKey(t *testing.T) {
	c := chunk.New(true, true)
	idx1, err := c.AddConstant(value.Int(5), "int:5")
	require.NoError(t, err)
	idx2, err := c.AddConstant(value.Int(5), "int:5")
	require.NoError(t, err)

	assert.Equal(t, idx1, idx2)
	assert.Len(t, c.Constants, 1)
}

func TestDisassembleDoesNotPanic(t *testing.T) {
	c := chunk.New(false, true)
	require.NoError(t, c.WriteConstant(value.Int(1), 1, ""))
	c.Write(byte(chunk.OpReturn), 1)

	var buf strings.Builder
	c.Disassemble(&buf, "test")
	assert.Contains(t, buf.String(), "OP_CONSTANT")
	assert.Contains(t, buf.String(), "OP_RETURN")
}
