// Package compiler implements the single-pass compiler: it walks the
// token stream exactly once, via a Pratt (precedence-climbing) parser,
// and emits bytecode directly into a *chunk.Chunk as it goes. There is
// no intermediate AST — a source program becomes a Chunk in one
// traversal, the way the reference compiler.c does it.
package compiler

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/lumen-lang/lumen/internal/config"
	"github.com/lumen-lang/lumen/pkg/chunk"
	"github.com/lumen-lang/lumen/pkg/lexer"
	"github.com/lumen-lang/lumen/pkg/object"
	"github.com/lumen-lang/lumen/pkg/table"
	"github.com/lumen-lang/lumen/pkg/value"
)

// local tracks one declared-but-possibly-not-yet-initialized local
// variable slot on the compiler's simulated stack.
type local struct {
	name    lexer.Token
	depth   int
	isConst bool
}

const uninitializedDepth = -1

// Compiler holds all single-pass compilation state: the scanner feeding
// it tokens, the chunk it emits into, the object pool and string-intern
// table it needs to build global/constant names, and the simulated
// local-variable stack used to resolve identifiers to stack slots at
// compile time instead of by name at run time.
type Compiler struct {
	scanner *lexer.Scanner
	chunk   *chunk.Chunk

	pool    *object.Pool
	strings *table.Table
	// globalConsts records, by interned-name Ref, which globals were
	// declared with `const` — consulted by the VM at OP_SET_GLOBAL time
	// since globals (unlike locals) can be defined across separately
	// compiled chunks (e.g. successive REPL lines), so the check can't
	// be fully resolved during a single compile.
	globalConsts map[value.Ref]bool

	features config.Features
	logger   zerolog.Logger
	stderr   io.Writer

	current  lexer.Token
	previous lexer.Token

	hadError  bool
	panicMode bool

	locals     []local
	scopeDepth int
}

// Result is what a successful compile hands the VM: the emitted chunk
// plus the set of global names declared const, so the VM can enforce
// const-reassignment across chunks (e.g. separate REPL lines sharing
// one globals table).
type Result struct {
	Chunk        *chunk.Chunk
	GlobalConsts map[value.Ref]bool
}

// New returns a Compiler ready to compile source into bytecode, using
// pool/strings for string allocation and interning (so identical string
// and identifier literals share a Ref) and globalConsts to carry
// const-global bookkeeping in from (and back out to) a persistent VM
// session.
func New(source string, pool *object.Pool, strings *table.Table, features config.Features, globalConsts map[value.Ref]bool) *Compiler {
	if globalConsts == nil {
		globalConsts = make(map[value.Ref]bool)
	}
	c := &Compiler{
		scanner:      lexer.New(source),
		chunk:        chunk.New(features.ConstantCache, features.LongConstants),
		pool:         pool,
		strings:      strings,
		globalConsts: globalConsts,
		features:     features,
		logger:       zerolog.Nop(),
		stderr:       os.Stderr,
	}
	return c
}

// WithLogger attaches a host-diagnostics logger. The compiler stores it
// but writes no log events of its own; syntax-error text goes to the
// stderr writer instead, as part of the language's own user-facing
// output, not host logging.
func (c *Compiler) WithLogger(logger zerolog.Logger) *Compiler {
	c.logger = logger
	return c
}

// WithStderr overrides the writer syntax-error text is written to,
// mirroring vm.VM.WithOutput's redirection of runtime-error text — both
// are language-level diagnostics, not host logging, and both must honor
// the same output-redirection contract.
func (c *Compiler) WithStderr(stderr io.Writer) *Compiler {
	c.stderr = stderr
	return c
}

// Compile runs the single-pass compile and returns the resulting chunk,
// or ok=false if any syntax error was reported.
func (c *Compiler) Compile() (Result, bool) {
	c.advance()
	for !c.match(lexer.TokenEOF) {
		c.declaration()
	}
	c.emitReturn()
	return Result{Chunk: c.chunk, GlobalConsts: c.globalConsts}, !c.hadError
}

// --- token stream plumbing ---

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.scanner.ScanToken()
		if c.current.Type != lexer.TokenError {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) check(t lexer.TokenType) bool {
	return c.current.Type == t
}

func (c *Compiler) match(t lexer.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t lexer.TokenType, message string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

// --- error reporting ---

func (c *Compiler) errorAtCurrent(message string) {
	c.errorAt(c.current, message)
}

func (c *Compiler) error(message string) {
	c.errorAt(c.previous, message)
}

func (c *Compiler) errorAt(tok lexer.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true

	fmt.Fprintf(c.stderr, "[line %d] Error", tok.Line)
	switch tok.Type {
	case lexer.TokenEOF:
		fmt.Fprint(c.stderr, " at end")
	case lexer.TokenError:
		// no location text
	default:
		fmt.Fprintf(c.stderr, " at '%s'", tok.Lexeme)
	}
	fmt.Fprintf(c.stderr, ": %s\n", message)

	c.hadError = true
}

// synchronize discards tokens until it reaches a plausible statement
// boundary, so one syntax error doesn't cascade into a wall of
// follow-on errors.
func (c *Compiler) synchronize() {
	c.panicMode = false

	for c.current.Type != lexer.TokenEOF {
		if c.previous.Type == lexer.TokenSemicolon {
			return
		}
		switch c.current.Type {
		case lexer.TokenClass, lexer.TokenFun, lexer.TokenVar, lexer.TokenConst,
			lexer.TokenFor, lexer.TokenIf, lexer.TokenWhile, lexer.TokenPrint,
			lexer.TokenReturn:
			return
		}
		c.advance()
	}
}

// --- emission helpers ---

func (c *Compiler) emitByte(b byte) {
	c.chunk.Write(b, c.previous.Line)
}

func (c *Compiler) emitBytes(b1, b2 byte) {
	c.emitByte(b1)
	c.emitByte(b2)
}

func (c *Compiler) emitReturn() {
	c.emitByte(byte(chunk.OpReturn))
}

func (c *Compiler) emitConstant(v value.Value, dedupeKey string) {
	if err := c.chunk.WriteConstant(v, c.previous.Line, dedupeKey); err != nil {
		c.error(err.Error())
	}
}

// emitJump emits a two-operand-byte jump instruction with a placeholder
// offset and returns the offset of the first operand byte, to be
// patched once the jump target is known.
func (c *Compiler) emitJump(op chunk.OpCode) int {
	c.emitByte(byte(op))
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk.Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := len(c.chunk.Code) - offset - 2
	if jump > 0xffff {
		c.error("Too much code to jump over.")
		return
	}
	c.chunk.Code[offset] = byte(jump)
	c.chunk.Code[offset+1] = byte(jump >> 8)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitByte(byte(chunk.OpLoop))
	offset := len(c.chunk.Code) - loopStart + 2
	if offset > 0xffff {
		c.error("Loop body too large.")
		return
	}
	c.emitByte(byte(offset))
	c.emitByte(byte(offset >> 8))
}

// --- declarations ---

func (c *Compiler) declaration() {
	switch {
	case c.match(lexer.TokenVar):
		c.varDeclaration(false)
	case c.match(lexer.TokenConst):
		c.constDeclaration()
	default:
		c.statement()
	}

	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) constDeclaration() {
	if !c.features.ConstKeyword {
		c.error("Const declarations are disabled.")
	}
	c.varDeclaration(true)
}

func (c *Compiler) varDeclaration(isConst bool) {
	global, nameRef := c.parseVariable("Expect variable name.", isConst)

	if c.match(lexer.TokenEqual) {
		c.expression()
	} else {
		c.emitByte(byte(chunk.OpNil))
	}
	c.consume(lexer.TokenSemicolon, "Expect ';' after variable declaration.")

	c.defineVariable(global, nameRef, isConst)
}

// parseVariable consumes an identifier token, declares it (as a local,
// if inside a scope), and — for globals only — returns the constant
// pool index of its interned name plus the name's Ref (needed to track
// const-globals across chunks).
func (c *Compiler) parseVariable(message string, isConst bool) (int, value.Ref) {
	c.consume(lexer.TokenIdentifier, message)

	c.declareVariable(isConst)
	if c.scopeDepth > 0 {
		return 0, 0
	}

	return c.identifierConstant(c.previous)
}

func (c *Compiler) identifierConstant(name lexer.Token) (int, value.Ref) {
	v := c.strings.Intern(c.pool, []byte(name.Lexeme))
	ref := v.AsRef()
	idx, err := c.chunk.AddConstant(v, "ident:"+name.Lexeme)
	if err != nil {
		c.error(err.Error())
	}
	return idx, ref
}

func (c *Compiler) declareVariable(isConst bool) {
	if c.scopeDepth == 0 {
		return
	}

	name := c.previous
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.depth != uninitializedDepth && l.depth < c.scopeDepth {
			break
		}
		if name.Lexeme == l.name.Lexeme {
			c.error("Already a variable with this name in this scope.")
		}
	}

	c.addLocal(name, isConst)
}

func (c *Compiler) addLocal(name lexer.Token, isConst bool) {
	c.locals = append(c.locals, local{name: name, depth: uninitializedDepth, isConst: isConst})
}

func (c *Compiler) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[len(c.locals)-1].depth = c.scopeDepth
}

func (c *Compiler) defineVariable(global int, nameRef value.Ref, isConst bool) {
	if c.scopeDepth > 0 {
		c.markInitialized()
		return
	}

	if isConst {
		c.globalConsts[nameRef] = true
		c.emitGlobalOp(chunk.OpDefineGlobalConst, chunk.OpDefineGlobalConstLong, global)
		return
	}
	c.emitGlobalOp(chunk.OpDefineGlobal, chunk.OpDefineGlobalLong, global)
}

func (c *Compiler) emitGlobalOp(short, long chunk.OpCode, idx int) {
	if idx <= chunk.MaxShortConstants {
		c.emitBytes(byte(short), byte(idx))
		return
	}
	if !c.features.LongConstants {
		c.error("Too many globals in one chunk.")
		return
	}
	c.emitByte(byte(long))
	c.emitByte(byte(idx))
	c.emitByte(byte(idx >> 8))
	c.emitByte(byte(idx >> 16))
}

// --- statements ---

func (c *Compiler) statement() {
	switch {
	case c.match(lexer.TokenPrint):
		c.printStatement()
	case c.match(lexer.TokenIf):
		c.ifStatement()
	case c.match(lexer.TokenWhile):
		c.whileStatement()
	case c.match(lexer.TokenLeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(lexer.TokenSemicolon, "Expect ';' after value.")
	c.emitByte(byte(chunk.OpPrint))
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(lexer.TokenSemicolon, "Expect ';' after expression.")
	c.emitByte(byte(chunk.OpPop))
}

func (c *Compiler) ifStatement() {
	c.consume(lexer.TokenLeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(lexer.TokenRightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitByte(byte(chunk.OpPop))
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitByte(byte(chunk.OpPop))

	if c.match(lexer.TokenElse) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.chunk.Code)
	c.consume(lexer.TokenLeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(lexer.TokenRightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitByte(byte(chunk.OpPop))
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitByte(byte(chunk.OpPop))
}

func (c *Compiler) beginScope() {
	c.scopeDepth++
}

func (c *Compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.emitByte(byte(chunk.OpPop))
		c.locals = c.locals[:len(c.locals)-1]
	}
}

func (c *Compiler) block() {
	for !c.check(lexer.TokenRightBrace) && !c.check(lexer.TokenEOF) {
		c.declaration()
	}
	c.consume(lexer.TokenRightBrace, "Expect '}' after block.")
}

// --- expressions ---

func (c *Compiler) expression() {
	c.parsePrecedence(precAssignment)
}

func (c *Compiler) parsePrecedence(prec precedence) {
	c.advance()
	rule := getRule(c.previous.Type)
	if rule.prefix == nil {
		c.error("Expect expression.")
		return
	}

	canAssign := prec <= precAssignment
	rule.prefix(c, canAssign)

	for prec <= getRule(c.current.Type).precedence {
		c.advance()
		infix := getRule(c.previous.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(lexer.TokenEqual) {
		c.error("Invalid assignment target.")
	}
}

func (c *Compiler) grouping(_ bool) {
	c.expression()
	c.consume(lexer.TokenRightParen, "Expect ')' after expression.")
}

// number parses either a NUMBER (always float) or INTEGER (float unless
// config.Features.Integers is enabled, per the compiler-level decision
// of where the int/float split is made, not the scanner).
func (c *Compiler) number(_ bool) {
	lexeme := c.previous.Lexeme

	if c.previous.Type == lexer.TokenInteger && c.features.Integers {
		i, err := strconv.ParseInt(lexeme, 10, 64)
		if err != nil {
			c.error("Invalid integer literal.")
			return
		}
		c.emitConstant(value.Int(i), "int:"+lexeme)
		return
	}

	f, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(value.Float(f), "float:"+lexeme)
}

func (c *Compiler) string(_ bool) {
	raw := c.previous.Lexeme
	contents := []byte(raw[1 : len(raw)-1])
	v := c.strings.Intern(c.pool, contents)
	c.emitConstant(v, "str:"+string(contents))
}

func (c *Compiler) literal(_ bool) {
	switch c.previous.Type {
	case lexer.TokenFalse:
		c.emitByte(byte(chunk.OpFalse))
	case lexer.TokenTrue:
		c.emitByte(byte(chunk.OpTrue))
	case lexer.TokenNil:
		c.emitByte(byte(chunk.OpNil))
	}
}

func (c *Compiler) unary(_ bool) {
	opType := c.previous.Type
	c.parsePrecedence(precUnary)

	switch opType {
	case lexer.TokenMinus:
		c.emitByte(byte(chunk.OpNegate))
	case lexer.TokenBang:
		c.emitByte(byte(chunk.OpNot))
	}
}

func (c *Compiler) binary(_ bool) {
	opType := c.previous.Type
	rule := getRule(opType)
	c.parsePrecedence(rule.precedence + 1)

	switch opType {
	case lexer.TokenBangEqual:
		c.emitBytes(byte(chunk.OpEqual), byte(chunk.OpNot))
	case lexer.TokenEqualEqual:
		c.emitByte(byte(chunk.OpEqual))
	case lexer.TokenGreater:
		c.emitByte(byte(chunk.OpGreater))
	case lexer.TokenGreaterEqual:
		c.emitBytes(byte(chunk.OpLess), byte(chunk.OpNot))
	case lexer.TokenLess:
		c.emitByte(byte(chunk.OpLess))
	case lexer.TokenLessEqual:
		c.emitBytes(byte(chunk.OpGreater), byte(chunk.OpNot))
	case lexer.TokenPlus:
		c.emitByte(byte(chunk.OpAdd))
	case lexer.TokenMinus:
		c.emitByte(byte(chunk.OpSubtract))
	case lexer.TokenStar:
		c.emitByte(byte(chunk.OpMultiply))
	case lexer.TokenSlash:
		c.emitByte(byte(chunk.OpDivide))
	}
}

func (c *Compiler) and_(_ bool) {
	endJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitByte(byte(chunk.OpPop))
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or_(_ bool) {
	elseJump := c.emitJump(chunk.OpJumpIfFalse)
	endJump := c.emitJump(chunk.OpJump)

	c.patchJump(elseJump)
	c.emitByte(byte(chunk.OpPop))

	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

func (c *Compiler) namedVariable(name lexer.Token, canAssign bool) {
	if idx, isConst, ok := c.resolveLocal(name); ok {
		if canAssign && c.match(lexer.TokenEqual) {
			if isConst {
				c.error("Cannot assign to const variable.")
			}
			c.expression()
			c.emitLocalOp(chunk.OpSetLocal, chunk.OpSetLocalLong, idx)
		} else {
			c.emitLocalOp(chunk.OpGetLocal, chunk.OpGetLocalLong, idx)
		}
		return
	}

	idx, _ := c.identifierConstant(name)
	if canAssign && c.match(lexer.TokenEqual) {
		c.expression()
		c.emitGlobalOp(chunk.OpSetGlobal, chunk.OpSetGlobalLong, idx)
		return
	}
	c.emitGlobalOp(chunk.OpGetGlobal, chunk.OpGetGlobalLong, idx)
}

func (c *Compiler) emitLocalOp(short, long chunk.OpCode, idx int) {
	if idx <= chunk.MaxShortConstants {
		c.emitBytes(byte(short), byte(idx))
		return
	}
	if !c.features.LongConstants {
		c.error("Too many locals in one chunk.")
		return
	}
	c.emitByte(byte(long))
	c.emitByte(byte(idx))
	c.emitByte(byte(idx >> 8))
	c.emitByte(byte(idx >> 16))
}

// resolveLocal searches the simulated local stack innermost-out for
// name, returning its slot index and const-ness. A local whose depth is
// still uninitializedDepth is mid-initializer (e.g. `var x = x;`) and is
// treated as not-yet-resolvable, matching the reference's shadowing
// guard.
func (c *Compiler) resolveLocal(name lexer.Token) (int, bool, bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.name.Lexeme == name.Lexeme {
			if l.depth == uninitializedDepth {
				c.error("Can't read local variable in its own initializer.")
			}
			return i, l.isConst, true
		}
	}
	return 0, false, false
}
