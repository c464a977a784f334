package vm_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/internal/config"
	"github.com/lumen-lang/lumen/pkg/vm"
)

func run(t *testing.T, source string) (string, string, vm.InterpretResult) {
	t.Helper()
	machine := vm.New(config.Default())
	var stdout, stderr strings.Builder
	machine.WithOutput(&stdout, &stderr)
	result := machine.Interpret(source)
	return stdout.String(), stderr.String(), result
}

func TestArithmeticPrecedence(t *testing.T) {
	out, _, result := run(t, "print 1 + 2 * 3;")
	require.Equal(t, vm.InterpretOK, result)
	assert.Equal(t, "7\n", out)
}

func TestStringInterningSharesReference(t *testing.T) {
	out, _, result := run(t, `
		var a = "hi";
		var b = "hi";
		print a == b;
	`)
	require.Equal(t, vm.InterpretOK, result)
	assert.Equal(t, "true\n", out)
}

func TestBlockScopingShadowsAndRestores(t *testing.T) {
	out, _, result := run(t, `
		var x = 10;
		{
			var x = x + 1;
			print x;
		}
		print x;
	`)
	require.Equal(t, vm.InterpretOK, result)
	assert.Equal(t, "11\n10\n", out)
}

func TestConstReassignmentIsARuntimeError(t *testing.T) {
	_, errOut, result := run(t, `
		const x = 1;
		x = 2;
	`)
	assert.Equal(t, vm.InterpretRuntimeError, result)
	assert.Contains(t, errOut, "Cannot assign to const variable")
}

func TestIntegerDivisionByZeroIsARuntimeError(t *testing.T) {
	_, errOut, result := run(t, "print 1 / 0;")
	assert.Equal(t, vm.InterpretRuntimeError, result)
	assert.Contains(t, errOut, "Integer division by zero")
}

func TestUndefinedVariableIsARuntimeError(t *testing.T) {
	_, errOut, result := run(t, "print nope;")
	assert.Equal(t, vm.InterpretRuntimeError, result)
	assert.Contains(t, errOut, "Undefined variable")
}

func TestManyConstantsUpgradeToLongForm(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString("var v")
		b.WriteString(strconv.Itoa(i))
		b.WriteString(" = ")
		b.WriteString(strconv.Itoa(i))
		b.WriteString(";\n")
	}
	b.WriteString("print v299;\n")
	out, _, result := run(t, b.String())
	assert.Equal(t, vm.InterpretOK, result)
	assert.Equal(t, "299\n", out)
}

func TestIfElseAndWhileAndLogicalShortCircuit(t *testing.T) {
	out, _, result := run(t, `
		var i = 0;
		while (i < 3) {
			print i;
			i = i + 1;
		}
		if (true and false) {
			print "unreachable";
		} else {
			print "else";
		}
		print false or "fallback";
	`)
	require.Equal(t, vm.InterpretOK, result)
	assert.Equal(t, "0\n1\n2\nelse\nfallback\n", out)
}

func TestFloatAndIntPromotion(t *testing.T) {
	out, _, result := run(t, "print 1 + 2.5;")
	require.Equal(t, vm.InterpretOK, result)
	assert.Equal(t, "3.5\n", out)
}

func TestStringConcatenation(t *testing.T) {
	out, _, result := run(t, `print "foo" + "bar";`)
	require.Equal(t, vm.InterpretOK, result)
	assert.Equal(t, "foobar\n", out)
}

func TestForkSnapshotsGlobalsIndependently(t *testing.T) {
	machine := vm.New(config.Default())
	var stdout, stderr strings.Builder
	machine.WithOutput(&stdout, &stderr)
	require.Equal(t, vm.InterpretOK, machine.Interpret("var x = 1;"))

	forked := machine.Fork()
	var forkedOut strings.Builder
	forked.WithOutput(&forkedOut, &stderr)

	require.Equal(t, vm.InterpretOK, forked.Interpret("x = 2; print x;"))
	assert.Equal(t, "2\n", forkedOut.String())

	stdout.Reset()
	require.Equal(t, vm.InterpretOK, machine.Interpret("print x;"))
	assert.Equal(t, "1\n", stdout.String())
}

func TestCompileErrorReportsSyntaxProblem(t *testing.T) {
	_, errOut, result := run(t, "var = 1;")
	assert.Equal(t, vm.InterpretCompileError, result)
	assert.Contains(t, errOut, "Error")
}

func TestCloseFreesAllAllocatedObjects(t *testing.T) {
	machine := vm.New(config.Default())
	var stdout, stderr strings.Builder
	machine.WithOutput(&stdout, &stderr)

	require.Equal(t, vm.InterpretOK, machine.Interpret(`
		var a = "hello";
		var b = "world";
		print a + b;
	`))
	require.Greater(t, machine.ObjectCount(), 0, "interning strings should have allocated at least one object")

	machine.Close()
	assert.Equal(t, 0, machine.ObjectCount())
}
