package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenString(t *testing.T) {
	for tok := Token(0); tok < maxToken; tok++ {
		require.NotEqual(t, "", tok.String(), "token %d missing a string representation", tok)
	}
}

func TestTokenStringOutOfRangeIsIllegal(t *testing.T) {
	require.Equal(t, "illegal token", maxToken.String())
	require.Equal(t, "illegal token", Token(-1).String())
}

func TestLookupKwRecognisesEveryKeyword(t *testing.T) {
	for tok := VAR; tok < maxToken; tok++ {
		require.Equal(t, tok, LookupKw(tok.String()), "keyword %q did not round-trip", tok)
	}
}

func TestLookupKwNonKeywordIsIdent(t *testing.T) {
	require.Equal(t, IDENT, LookupKw("notAKeyword"))
	require.Equal(t, IDENT, LookupKw(""))
	require.Equal(t, IDENT, LookupKw("+")) // punctuation text is never a keyword
}

func TestNoPosIsZeroValue(t *testing.T) {
	var p Pos
	require.Equal(t, NoPos, p)
}
