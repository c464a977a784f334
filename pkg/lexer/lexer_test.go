package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/pkg/lexer"
)

func scanAll(source string) []lexer.Token {
	s := lexer.New(source)
	var tokens []lexer.Token
	for {
		tok := s.ScanToken()
		tokens = append(tokens, tok)
		if tok.Type == lexer.TokenEOF {
			return tokens
		}
	}
}

func TestScansPunctuationAndOperators(t *testing.T) {
	tokens := scanAll("(){};,.+-*/ == != <= >= < > = !")
	types := make([]lexer.TokenType, 0, len(tokens))
	for _, tok := range tokens {
		types = append(types, tok.Type)
	}

	require.Equal(t, []lexer.TokenType{
		lexer.TokenLeftParen, lexer.TokenRightParen, lexer.TokenLeftBrace, lexer.TokenRightBrace,
		lexer.TokenSemicolon, lexer.TokenComma, lexer.TokenDot, lexer.TokenPlus, lexer.TokenMinus,
		lexer.TokenStar, lexer.TokenSlash,
		lexer.TokenEqualEqual, lexer.TokenBangEqual, lexer.TokenLessEqual, lexer.TokenGreaterEqual,
		lexer.TokenLess, lexer.TokenGreater, lexer.TokenEqual, lexer.TokenBang,
		lexer.TokenEOF,
	}, types)
}

func TestDistinguishesIntegerFromNumber(t *testing.T) {
	tokens := scanAll("42 3.14")
	require.Len(t, tokens, 3)
	assert.Equal(t, lexer.TokenInteger, tokens[0].Type)
	assert.Equal(t, "42", tokens[0].Lexeme)
	assert.Equal(t, lexer.TokenNumber, tokens[1].Type)
	assert.Equal(t, "3.14", tokens[1].Lexeme)
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	tokens := scanAll("var const print if else while and or true false nil notakeyword")
	expected := []lexer.TokenType{
		lexer.TokenVar, lexer.TokenConst, lexer.TokenPrint, lexer.TokenIf, lexer.TokenElse,
		lexer.TokenWhile, lexer.TokenAnd, lexer.TokenOr, lexer.TokenTrue, lexer.TokenFalse,
		lexer.TokenNil, lexer.TokenIdentifier, lexer.TokenEOF,
	}
	require.Len(t, tokens, len(expected))
	for i, tok := range tokens {
		assert.Equal(t, expected[i], tok.Type, "token %d", i)
	}
}

func TestStringLiteralSpansNewlinesAndTracksLine(t *testing.T) {
	tokens := scanAll("\"a\nb\" true")
	require.Len(t, tokens, 3)
	assert.Equal(t, lexer.TokenString, tokens[0].Type)
	assert.Equal(t, "\"a\nb\"", tokens[0].Lexeme)
	assert.Equal(t, 2, tokens[1].Line)
}

func TestUnterminatedStringIsAnErrorToken(t *testing.T) {
	tokens := scanAll("\"unterminated")
	require.Len(t, tokens, 2)
	assert.Equal(t, lexer.TokenError, tokens[0].Type)
	assert.Equal(t, "Unterminated string.", tokens[0].Lexeme)
}

func TestSkipsLineComments(t *testing.T) {
	tokens := scanAll("1 // comment\n2")
	require.Len(t, tokens, 3)
	assert.Equal(t, "1", tokens[0].Lexeme)
	assert.Equal(t, "2", tokens[1].Lexeme)
}

func TestUnexpectedCharacterIsAnErrorToken(t *testing.T) {
	tokens := scanAll("@")
	require.Len(t, tokens, 2)
	assert.Equal(t, lexer.TokenError, tokens[0].Type)
	assert.Equal(t, "Unexpected character.", tokens[0].Lexeme)
}
