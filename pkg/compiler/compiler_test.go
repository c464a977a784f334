package compiler_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/internal/config"
	"github.com/lumen-lang/lumen/pkg/chunk"
	"github.com/lumen-lang/lumen/pkg/compiler"
	"github.com/lumen-lang/lumen/pkg/object"
	"github.com/lumen-lang/lumen/pkg/table"
)

func compile(t *testing.T, source string) (compiler.Result, bool) {
	t.Helper()
	pool := object.NewPool()
	strings := table.New(pool)
	c := compiler.New(source, pool, strings, config.Default(), nil)
	return c.Compile()
}

func TestCompileSimplePrintStatement(t *testing.T) {
	result, ok := compile(t, "print 1 + 2;")
	require.True(t, ok)
	assert.Equal(t, byte(chunk.OpConstant), result.Chunk.Code[0])
	assert.Equal(t, byte(chunk.OpPrint), result.Chunk.Code[len(result.Chunk.Code)-2])
	assert.Equal(t, byte(chunk.OpReturn), result.Chunk.Code[len(result.Chunk.Code)-1])
}

func TestCompileReportsSyntaxError(t *testing.T) {
	_, ok := compile(t, "print 1 +;")
	assert.False(t, ok)
}

func TestConstDeclarationRecordsGlobalConst(t *testing.T) {
	result, ok := compile(t, "const x = 1;")
	require.True(t, ok)
	assert.Len(t, result.GlobalConsts, 1)
}

func TestDisabledIntegersParsesWholeNumbersAsFloats(t *testing.T) {
	pool := object.NewPool()
	interned := table.New(pool)
	features := config.Default()
	features.Integers = false

	c := compiler.New("print 1;", pool, interned, features, nil)
	result, ok := c.Compile()
	require.True(t, ok)
	require.Len(t, result.Chunk.Constants, 1)
	assert.True(t, result.Chunk.Constants[0].IsFloat())
}

func TestWithStderrRedirectsSyntaxErrorText(t *testing.T) {
	pool := object.NewPool()
	interned := table.New(pool)

	var errOut strings.Builder
	c := compiler.New("print 1 +;", pool, interned, config.Default(), nil).WithStderr(&errOut)
	_, ok := c.Compile()

	assert.False(t, ok)
	assert.Contains(t, errOut.String(), "Error")
}
