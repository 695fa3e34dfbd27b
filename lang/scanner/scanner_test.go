package scanner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duskvm/duskvm/lang/token"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	fset := token.NewFileSet()
	file := fset.AddFile("test", -1, len(src))
	var errs []string
	sc := New(file, src, func(pos token.Position, msg string) {
		errs = append(errs, msg)
	})
	var toks []token.Token
	for {
		var val token.Value
		tok := sc.ScanNonComment(&val)
		toks = append(toks, tok)
		if tok == token.EOF {
			break
		}
	}
	require.Empty(t, errs)
	return toks
}

func TestScanIdentAndPunctuation(t *testing.T) {
	toks := scanAll(t, "var x = 1;")
	require.Equal(t, []token.Token{
		token.VAR, token.IDENT, token.EQ, token.INT, token.SEMI, token.EOF,
	}, toks)
}

func TestScanSkipsLineComments(t *testing.T) {
	toks := scanAll(t, "x // a comment\ny")
	require.Equal(t, []token.Token{token.IDENT, token.IDENT, token.EOF}, toks)
}

func TestScanMultiCharOperators(t *testing.T) {
	toks := scanAll(t, "a ?? b ?. c === d")
	require.Equal(t, []token.Token{
		token.IDENT, token.QUESTIONQUESTION, token.IDENT, token.QUESTIONDOT,
		token.IDENT, token.EQEQEQ, token.IDENT, token.EOF,
	}, toks)
}

func TestScanStringLiteralDecodesEscapes(t *testing.T) {
	fset := token.NewFileSet()
	src := `"a\nb"`
	file := fset.AddFile("test", -1, len(src))
	sc := New(file, src, func(token.Position, string) { t.Fatal("unexpected scan error") })
	var val token.Value
	tok := sc.ScanNonComment(&val)
	require.Equal(t, token.STRING, tok)
	require.Equal(t, "a\nb", val.String)
}

func TestScanIllegalCharacterReportsError(t *testing.T) {
	fset := token.NewFileSet()
	src := "x @ y"
	file := fset.AddFile("test", -1, len(src))
	var errs []string
	sc := New(file, src, func(pos token.Position, msg string) {
		errs = append(errs, msg)
	})
	for {
		var val token.Value
		tok := sc.ScanNonComment(&val)
		if tok == token.EOF {
			break
		}
	}
	require.NotEmpty(t, errs)
}
