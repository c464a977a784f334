package compiler

import "github.com/lumen-lang/lumen/pkg/lexer"

// precedence orders binary operators from loosest to tightest binding,
// mirroring the reference's Precedence enum exactly.
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

// rules is the Pratt table: for each token type, the prefix parselet
// (if it can start an expression), the infix parselet (if it can
// continue one), and the infix's binding precedence. Grounded on the
// reference compiler.c's rules[] array.
var rules map[lexer.TokenType]parseRule

func init() {
	rules = map[lexer.TokenType]parseRule{
		lexer.TokenLeftParen:  {prefix: (*Compiler).grouping},
		lexer.TokenMinus:      {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: precTerm},
		lexer.TokenPlus:       {infix: (*Compiler).binary, precedence: precTerm},
		lexer.TokenSlash:      {infix: (*Compiler).binary, precedence: precFactor},
		lexer.TokenStar:       {infix: (*Compiler).binary, precedence: precFactor},
		lexer.TokenBang:       {prefix: (*Compiler).unary},
		lexer.TokenBangEqual:  {infix: (*Compiler).binary, precedence: precEquality},
		lexer.TokenEqualEqual: {infix: (*Compiler).binary, precedence: precEquality},
		lexer.TokenGreater:        {infix: (*Compiler).binary, precedence: precComparison},
		lexer.TokenGreaterEqual:   {infix: (*Compiler).binary, precedence: precComparison},
		lexer.TokenLess:           {infix: (*Compiler).binary, precedence: precComparison},
		lexer.TokenLessEqual:      {infix: (*Compiler).binary, precedence: precComparison},
		lexer.TokenIdentifier: {prefix: (*Compiler).variable},
		lexer.TokenString:     {prefix: (*Compiler).string},
		lexer.TokenNumber:     {prefix: (*Compiler).number},
		lexer.TokenInteger:    {prefix: (*Compiler).number},
		lexer.TokenAnd:        {infix: (*Compiler).and_, precedence: precAnd},
		lexer.TokenOr:         {infix: (*Compiler).or_, precedence: precOr},
		lexer.TokenFalse:      {prefix: (*Compiler).literal},
		lexer.TokenTrue:       {prefix: (*Compiler).literal},
		lexer.TokenNil:        {prefix: (*Compiler).literal},
	}
}

func getRule(t lexer.TokenType) parseRule {
	return rules[t]
}
