// Package vm implements the stack-based bytecode virtual machine: a
// dispatch loop that fetches, decodes, and executes one instruction at
// a time from a compiled *chunk.Chunk.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/lumen-lang/lumen/internal/config"
	"github.com/lumen-lang/lumen/pkg/chunk"
	"github.com/lumen-lang/lumen/pkg/compiler"
	"github.com/lumen-lang/lumen/pkg/object"
	"github.com/lumen-lang/lumen/pkg/table"
	"github.com/lumen-lang/lumen/pkg/value"
)

// InterpretResult reports how an Interpret call finished.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

const stackMax = 256

// VM is one interpreter session: a constant object pool, a string
// intern table, a persistent globals table, and the per-call chunk/ip/
// stack state that Interpret resets on every call. Reusing one VM
// across several Interpret calls (as a REPL does) is what lets globals
// declared on one line stay visible to the next.
type VM struct {
	pool    *object.Pool
	strings *table.Table
	globals *table.Table

	globalConsts map[value.Ref]bool

	features config.Features
	logger   zerolog.Logger

	stdout io.Writer
	stderr io.Writer

	chunk *chunk.Chunk
	ip    int
	stack []value.Value
}

// New returns a VM with its own object pool, string-intern table, and
// empty globals table, configured by features. stdout is where OP_PRINT
// writes; stderr is where compile/runtime diagnostics are written —
// both default to os.Stdout/os.Stderr.
func New(features config.Features) *VM {
	pool := object.NewPool()
	return &VM{
		pool:         pool,
		strings:      table.New(pool),
		globals:      table.New(pool),
		globalConsts: make(map[value.Ref]bool),
		features:     features,
		logger:       zerolog.Nop(),
		stdout:       os.Stdout,
		stderr:       os.Stderr,
	}
}

// WithLogger attaches a logger used for host-level diagnostics: it is
// handed to the VM's object pool (allocation and teardown events), its
// string and globals tables (growth events), and the compiler on each
// Interpret call — never used for language-level output, which always
// goes through stdout/stderr exactly as configured.
func (vm *VM) WithLogger(logger zerolog.Logger) *VM {
	vm.logger = logger
	vm.pool.WithLogger(logger)
	vm.strings.WithLogger(logger)
	vm.globals.WithLogger(logger)
	return vm
}

// Fork returns a new VM sharing this one's object pool and string-intern
// table (so existing Refs stay valid) but with its own copy of the
// globals table and const-global bookkeeping, snapshotted via
// table.AddAll. Input run on the fork changes only the fork's globals,
// so a runtime error there leaves the original session's globals as
// they were.
func (vm *VM) Fork() *VM {
	forked := &VM{
		pool:         vm.pool,
		strings:      vm.strings,
		globals:      table.New(vm.pool),
		globalConsts: make(map[value.Ref]bool, len(vm.globalConsts)),
		features:     vm.features,
		logger:       vm.logger,
		stdout:       vm.stdout,
		stderr:       vm.stderr,
	}
	vm.globals.AddAll(forked.globals)
	for ref, isConst := range vm.globalConsts {
		forked.globalConsts[ref] = isConst
	}
	return forked
}

// WithOutput overrides the writers used for OP_PRINT output and
// diagnostic text, respectively. Mainly for tests, which capture both
// into buffers instead of the process's real stdout/stderr.
func (vm *VM) WithOutput(stdout, stderr io.Writer) *VM {
	vm.stdout = stdout
	vm.stderr = stderr
	return vm
}

// Close releases every object this VM's pool has allocated. Per §5, a
// VM's objects are destroyed exactly once, in one bulk pass, at the end
// of the VM's lifetime — never piecemeal as values go out of scope. A
// VM must not be used again after Close; doing so would hand out Refs
// that no longer resolve to anything in the (now-empty) pool.
func (vm *VM) Close() {
	vm.pool.FreeAll()
}

// ObjectCount reports the number of objects currently live in this VM's
// pool. Exposed for the "no object remains allocated after freeVM"
// property that §8 requires be testable.
func (vm *VM) ObjectCount() int {
	return vm.pool.Count()
}

// Interpret compiles and runs source against this VM's persistent
// globals and object pool.
func (vm *VM) Interpret(source string) InterpretResult {
	comp := compiler.New(source, vm.pool, vm.strings, vm.features, vm.globalConsts).
		WithLogger(vm.logger).
		WithStderr(vm.stderr)
	result, ok := comp.Compile()
	if !ok {
		return InterpretCompileError
	}

	vm.chunk = result.Chunk
	for ref, isConst := range result.GlobalConsts {
		if isConst {
			vm.globalConsts[ref] = true
		}
	}
	vm.ip = 0
	vm.stack = vm.stack[:0]

	return vm.run()
}

func (vm *VM) push(v value.Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() value.Value {
	last := len(vm.stack) - 1
	v := vm.stack[last]
	vm.stack = vm.stack[:last]
	return v
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[len(vm.stack)-1-distance]
}

func (vm *VM) resetStack() {
	vm.stack = vm.stack[:0]
}

func (vm *VM) readByte() byte {
	b := vm.chunk.Code[vm.ip]
	vm.ip++
	return b
}

func (vm *VM) readUint24() int {
	idx := chunk.ReadUint24(vm.chunk.Code, vm.ip)
	vm.ip += 3
	return idx
}

func (vm *VM) readConstant() value.Value {
	return vm.chunk.Constants[vm.readByte()]
}

func (vm *VM) readConstantLong() value.Value {
	return vm.chunk.Constants[vm.readUint24()]
}

func (vm *VM) runtimeError(format string, args ...interface{}) InterpretResult {
	fmt.Fprintf(vm.stderr, format+"\n", args...)

	line := 0
	if vm.ip > 0 && vm.ip <= len(vm.chunk.Code) {
		line = vm.chunk.GetLine(vm.ip - 1)
	}
	fmt.Fprintf(vm.stderr, "[line %d] in script\n", line)

	vm.resetStack()
	return InterpretRuntimeError
}

func (vm *VM) isString(v value.Value) bool {
	return v.IsObj() && vm.pool.Kind(v.AsRef()) == object.KindString
}

// run is the fetch-decode-execute loop. When config.Features.TraceExecution
// is set it disassembles each instruction and prints the live stack
// before executing it, mirroring the reference's DEBUG_TRACE_EXECUTION.
func (vm *VM) run() InterpretResult {
	for {
		if vm.features.TraceExecution {
			vm.traceStack()
			vm.chunk.DisassembleInstruction(vm.stderr, vm.ip)
		}

		op := chunk.OpCode(vm.readByte())
		switch op {
		case chunk.OpConstant:
			vm.push(vm.readConstant())
		case chunk.OpConstantLong:
			vm.push(vm.readConstantLong())

		case chunk.OpNil:
			vm.push(value.Nil())
		case chunk.OpTrue:
			vm.push(value.Bool(true))
		case chunk.OpFalse:
			vm.push(value.Bool(false))
		case chunk.OpPop:
			vm.pop()

		case chunk.OpDefineGlobal, chunk.OpDefineGlobalLong,
			chunk.OpDefineGlobalConst, chunk.OpDefineGlobalConstLong:
			if r := vm.defineGlobal(op); r != InterpretOK {
				return r
			}

		case chunk.OpGetGlobal, chunk.OpGetGlobalLong:
			if r := vm.getGlobal(op); r != InterpretOK {
				return r
			}
		case chunk.OpSetGlobal, chunk.OpSetGlobalLong:
			if r := vm.setGlobal(op); r != InterpretOK {
				return r
			}

		case chunk.OpGetLocal:
			vm.push(vm.stack[vm.readByte()])
		case chunk.OpGetLocalLong:
			vm.push(vm.stack[vm.readUint24()])
		case chunk.OpSetLocal:
			vm.stack[vm.readByte()] = vm.peek(0)
		case chunk.OpSetLocalLong:
			vm.stack[vm.readUint24()] = vm.peek(0)

		case chunk.OpJump:
			offset := vm.readJumpOffset()
			vm.ip += offset
		case chunk.OpJumpIfFalse:
			offset := vm.readJumpOffset()
			if !vm.peek(0).Truthy() {
				vm.ip += offset
			}
		case chunk.OpLoop:
			offset := vm.readJumpOffset()
			vm.ip -= offset

		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case chunk.OpGreater, chunk.OpLess:
			if r := vm.comparison(op); r != InterpretOK {
				return r
			}

		case chunk.OpAdd:
			if r := vm.add(); r != InterpretOK {
				return r
			}
		case chunk.OpSubtract, chunk.OpMultiply, chunk.OpDivide:
			if r := vm.arithmetic(op); r != InterpretOK {
				return r
			}

		case chunk.OpNot:
			vm.push(value.Bool(!vm.pop().Truthy()))
		case chunk.OpNegate:
			if r := vm.negate(); r != InterpretOK {
				return r
			}

		case chunk.OpPrint:
			fmt.Fprintln(vm.stdout, vm.display(vm.pop()))

		case chunk.OpReturn:
			return InterpretOK

		default:
			return vm.runtimeError("Unknown opcode %d.", op)
		}
	}
}

func (vm *VM) readJumpOffset() int {
	lo := vm.readByte()
	hi := vm.readByte()
	return int(hi)<<8 | int(lo)
}

func (vm *VM) display(v value.Value) string {
	if v.IsObj() {
		return vm.pool.Display(v.AsRef())
	}
	return v.String()
}

func (vm *VM) traceStack() {
	fmt.Fprint(vm.stderr, "          ")
	for _, v := range vm.stack {
		fmt.Fprintf(vm.stderr, "[ %s ]", vm.display(v))
	}
	fmt.Fprintln(vm.stderr)
}

func (vm *VM) globalNameRef(op chunk.OpCode) value.Ref {
	var name value.Value
	switch op {
	case chunk.OpDefineGlobal, chunk.OpGetGlobal, chunk.OpSetGlobal,
		chunk.OpDefineGlobalConst:
		name = vm.readConstant()
	default:
		name = vm.readConstantLong()
	}
	return name.AsRef()
}

func (vm *VM) defineGlobal(op chunk.OpCode) InterpretResult {
	ref := vm.globalNameRef(op)
	vm.globals.Set(value.Obj(ref), vm.peek(0))
	vm.pop()

	if op == chunk.OpDefineGlobalConst || op == chunk.OpDefineGlobalConstLong {
		vm.globalConsts[ref] = true
	}
	return InterpretOK
}

func (vm *VM) getGlobal(op chunk.OpCode) InterpretResult {
	ref := vm.globalNameRef(op)
	v, ok := vm.globals.Get(value.Obj(ref))
	if !ok {
		return vm.runtimeError("Undefined variable '%s'.", vm.pool.StringBytes(ref))
	}
	vm.push(v)
	return InterpretOK
}

// setGlobal implements assignment to an existing global. It follows the
// reference's "blind set, then undo on miss" approach: Set is called
// first (which is how a brand-new key would otherwise get created), and
// if it reports the key as new, that's actually an undefined-variable
// error, so the entry is deleted again before reporting it.
func (vm *VM) setGlobal(op chunk.OpCode) InterpretResult {
	ref := vm.globalNameRef(op)

	if vm.globalConsts[ref] {
		return vm.runtimeError("Cannot assign to const variable '%s'.", vm.pool.StringBytes(ref))
	}

	if vm.globals.Set(value.Obj(ref), vm.peek(0)) {
		vm.globals.Delete(value.Obj(ref))
		return vm.runtimeError("Undefined variable '%s'.", vm.pool.StringBytes(ref))
	}
	return InterpretOK
}

func (vm *VM) comparison(op chunk.OpCode) InterpretResult {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop()
	a := vm.pop()
	switch op {
	case chunk.OpGreater:
		vm.push(value.Bool(a.Number() > b.Number()))
	case chunk.OpLess:
		vm.push(value.Bool(a.Number() < b.Number()))
	}
	return InterpretOK
}

// add implements OP_ADD's two valid operand shapes: numeric addition
// (with int+int staying int, any float operand promoting to float) and
// string concatenation, interned like any other string value.
func (vm *VM) add() InterpretResult {
	switch {
	case vm.peek(0).IsNumber() && vm.peek(1).IsNumber():
		b := vm.pop()
		a := vm.pop()
		if a.IsInt() && b.IsInt() {
			vm.push(value.Int(a.AsInt() + b.AsInt()))
		} else {
			vm.push(value.Float(a.Number() + b.Number()))
		}
		return InterpretOK
	case vm.isString(vm.peek(0)) && vm.isString(vm.peek(1)):
		b := vm.pop()
		a := vm.pop()
		concatenated := append(append([]byte{}, vm.pool.StringBytes(a.AsRef())...), vm.pool.StringBytes(b.AsRef())...)
		vm.push(vm.strings.TakeString(vm.pool, concatenated))
		return InterpretOK
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
}

func (vm *VM) arithmetic(op chunk.OpCode) InterpretResult {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop()
	a := vm.pop()

	if op == chunk.OpDivide && a.IsInt() && b.IsInt() && b.AsInt() == 0 {
		return vm.runtimeError("Integer division by zero.")
	}

	if a.IsInt() && b.IsInt() {
		var r int64
		switch op {
		case chunk.OpSubtract:
			r = a.AsInt() - b.AsInt()
		case chunk.OpMultiply:
			r = a.AsInt() * b.AsInt()
		case chunk.OpDivide:
			r = a.AsInt() / b.AsInt()
		}
		vm.push(value.Int(r))
		return InterpretOK
	}

	var r float64
	switch op {
	case chunk.OpSubtract:
		r = a.Number() - b.Number()
	case chunk.OpMultiply:
		r = a.Number() * b.Number()
	case chunk.OpDivide:
		r = a.Number() / b.Number()
	}
	vm.push(value.Float(r))
	return InterpretOK
}

func (vm *VM) negate() InterpretResult {
	if !vm.peek(0).IsNumber() {
		return vm.runtimeError("Operand must be a number.")
	}
	v := vm.pop()
	if v.IsInt() {
		vm.push(value.Int(-v.AsInt()))
	} else {
		vm.push(value.Float(-v.Number()))
	}
	return InterpretOK
}
