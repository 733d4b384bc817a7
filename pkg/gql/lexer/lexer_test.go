package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []Token {
	t.Helper()
	l := New(src)
	var toks []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		if tok.Kind == EOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func TestScanIdentifiersAndKeywordsCaseInsensitive(t *testing.T) {
	toks := scanAll(t, "match (n:Person) RETURN n")
	require.Len(t, toks, 8)
	assert.Equal(t, Keyword, toks[0].Kind)
	assert.Equal(t, "MATCH", toks[0].Text, "keyword text is normalized to upper case regardless of source casing")
	assert.Equal(t, Ident, toks[2].Kind)
	assert.Equal(t, "n", toks[2].Text, "identifier text preserves source casing")
	assert.Equal(t, Keyword, toks[6].Kind)
	assert.Equal(t, "RETURN", toks[6].Text)
}

func TestScanBacktickIdentifierAllowsReservedWords(t *testing.T) {
	toks := scanAll(t, "`match`")
	require.Len(t, toks, 1)
	assert.Equal(t, Ident, toks[0].Kind, "a backtick-delimited identifier is never classified as a keyword")
	assert.Equal(t, "match", toks[0].Text)
}

func TestScanUnterminatedBacktickIdentifierErrors(t *testing.T) {
	l := New("`unterminated")
	_, err := l.Next()
	assert.Error(t, err)
}

func TestScanStringLiteralWithEscapes(t *testing.T) {
	toks := scanAll(t, `'hello\nworld\''`)
	require.Len(t, toks, 1)
	assert.Equal(t, String, toks[0].Kind)
	assert.Equal(t, "hello\nworld'", toks[0].Text)
}

func TestScanUnterminatedStringErrors(t *testing.T) {
	l := New("'abc")
	_, err := l.Next()
	assert.Error(t, err)
}

func TestScanIntAndFloatLiterals(t *testing.T) {
	toks := scanAll(t, "42 3.14 2.5e10 1e-3")
	require.Len(t, toks, 4)
	assert.Equal(t, Int, toks[0].Kind)
	assert.Equal(t, Float, toks[1].Kind)
	assert.Equal(t, Float, toks[2].Kind)
	assert.Equal(t, Float, toks[3].Kind)
	assert.Equal(t, "1e-3", toks[3].Text)
}

func TestScanParameterToken(t *testing.T) {
	toks := scanAll(t, "$name")
	require.Len(t, toks, 1)
	assert.Equal(t, Param, toks[0].Kind)
	assert.Equal(t, "name", toks[0].Text)
}

func TestScanParameterWithoutNameErrors(t *testing.T) {
	l := New("$ ")
	_, err := l.Next()
	assert.Error(t, err)
}

func TestScanMultiCharPunctGreedyMatch(t *testing.T) {
	toks := scanAll(t, "<> <= >= -> <- =~ .. ::")
	want := []string{"<>", "<=", ">=", "->", "<-", "=~", "..", "::"}
	require.Len(t, toks, len(want))
	for i, w := range want {
		assert.Equal(t, Punct, toks[i].Kind)
		assert.Equal(t, w, toks[i].Text)
	}
}

func TestScanSingleCharPunctFallback(t *testing.T) {
	toks := scanAll(t, "(){}[],.:=")
	require.Len(t, toks, 10)
	for _, tok := range toks {
		assert.Equal(t, Punct, tok.Kind)
	}
}

func TestLineCommentIsSkipped(t *testing.T) {
	toks := scanAll(t, "MATCH -- this is a comment\nRETURN")
	require.Len(t, toks, 2)
	assert.Equal(t, "MATCH", toks[0].Text)
	assert.Equal(t, "RETURN", toks[1].Text)
}

func TestLineAndColumnTracking(t *testing.T) {
	toks := scanAll(t, "MATCH\nRETURN")
	require.Len(t, toks, 2)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 1, toks[0].Column)
	assert.Equal(t, 2, toks[1].Line)
	assert.Equal(t, 1, toks[1].Column)
}

func TestPeekDoesNotConsume(t *testing.T) {
	l := New("MATCH RETURN")
	p1, err := l.Peek()
	require.NoError(t, err)
	p2, err := l.Peek()
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	n1, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, p1, n1)

	n2, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, "RETURN", n2.Text)
}

func TestIsKeywordRecognizesReservedWordsOnly(t *testing.T) {
	assert.True(t, IsKeyword("MATCH"))
	assert.True(t, IsKeyword("RETURN"))
	assert.False(t, IsKeyword("PERSON"))
	assert.False(t, IsKeyword("match"), "IsKeyword expects an already-uppercased string")
}

func TestEmptySourceYieldsImmediateEOF(t *testing.T) {
	l := New("")
	tok, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, EOF, tok.Kind)
}
