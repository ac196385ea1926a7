package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWERExactMatchIsZero(t *testing.T) {
	res := WER("the quick brown fox", "the quick brown fox")
	require.Equal(t, 0.0, res.WER)
}

func TestWERSingleSubstitution(t *testing.T) {
	res := WER("the quick brown fox", "the quick brown dog")
	require.Equal(t, 1, res.Substitutions)
	require.Equal(t, 0, res.Insertions)
	require.Equal(t, 0, res.Deletions)
	require.InDelta(t, 0.25, res.WER, 1e-9)
}

func TestWERMixedAlignment(t *testing.T) {
	res := WER("the quick fox", "the very quick")
	require.Equal(t, 2, res.Substitutions)
	require.Equal(t, 0, res.Insertions)
	require.Equal(t, 0, res.Deletions)
	require.InDelta(t, 2.0/3.0, res.WER, 1e-9)
}

func TestWERStripsPunctuationAndLowercases(t *testing.T) {
	res := WER("Hello, world!", "hello world")
	require.Equal(t, 0.0, res.WER)
}

func TestWEREmptyReferenceWithHypothesisIsFullError(t *testing.T) {
	res := WER("", "extra words")
	require.Equal(t, 1.0, res.WER)
}

func TestWEREmptyBothIsZero(t *testing.T) {
	res := WER("", "")
	require.Equal(t, 0.0, res.WER)
}

func TestCERCountsCharacterEdits(t *testing.T) {
	res := CER("cat", "cats")
	require.Equal(t, 1, res.Insertions)
	require.InDelta(t, 1.0/3.0, res.CER, 1e-9)
}

func TestCEROperatesOnUnicodeScalars(t *testing.T) {
	res := CER("café", "cafe")
	require.Equal(t, 1, res.Substitutions)
	require.InDelta(t, 0.25, res.CER, 1e-9)
}
