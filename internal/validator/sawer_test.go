package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func words(speaker string, texts ...string) []Word {
	out := make([]Word, len(texts))
	for i, text := range texts {
		out[i] = Word{Text: text, Start: float64(i), End: float64(i) + 0.5, SpeakerID: speaker}
	}
	return out
}

func TestSAWERPerfectMatchIsZero(t *testing.T) {
	ref := append(words("speaker_1", "hello", "there"), words("speaker_2", "hi", "you")...)
	hyp := append(words("speaker_1", "hello", "there"), words("speaker_2", "hi", "you")...)

	res := SAWER(ref, hyp)
	require.Equal(t, 0.0, res.SAWER)
	require.Equal(t, 0.0, res.PerSpeakerWER["speaker_1"])
	require.Equal(t, 0.0, res.PerSpeakerWER["speaker_2"])
}

func TestSAWERWeightsBySpeakerWordCount(t *testing.T) {
	ref := append(words("speaker_1", "a", "b", "c", "d"), words("speaker_2", "x", "y")...)
	// speaker_1: hypothesis drops "d" (1 deletion / 4 ref words = 0.25 WER)
	// speaker_2: hypothesis is an exact match (0 WER)
	hyp := append(words("speaker_1", "a", "b", "c"), words("speaker_2", "x", "y")...)

	res := SAWER(ref, hyp)
	require.InDelta(t, 0.25, res.PerSpeakerWER["speaker_1"], 1e-9)
	require.InDelta(t, 0.0, res.PerSpeakerWER["speaker_2"], 1e-9)
	// weighted mean: (0.25*4 + 0*2) / 6
	require.InDelta(t, 1.0/6.0, res.SAWER, 1e-9)
}

func TestAttributionAccuracyMatchesOverlappingWords(t *testing.T) {
	ref := []Word{{Text: "hi", Start: 0, End: 0.5, SpeakerID: "speaker_1"}}
	hypCorrect := []Word{{Text: "hi", Start: 0.1, End: 0.6, SpeakerID: "speaker_1"}}
	hypWrong := []Word{{Text: "hi", Start: 0.1, End: 0.6, SpeakerID: "speaker_2"}}

	resCorrect := SAWER(ref, hypCorrect)
	require.Equal(t, 1, resCorrect.AttributedWords)
	require.Equal(t, 1, resCorrect.CorrectAttributions)
	require.Equal(t, 1.0, resCorrect.AttributionAccuracy)

	resWrong := SAWER(ref, hypWrong)
	require.Equal(t, 1, resWrong.AttributedWords)
	require.Equal(t, 0, resWrong.CorrectAttributions)
	require.Equal(t, 0.0, resWrong.AttributionAccuracy)
}

func TestAttributionSkipsWordsBelowOverlapThreshold(t *testing.T) {
	ref := []Word{{Text: "hi", Start: 0, End: 0.5, SpeakerID: "speaker_1"}}
	hyp := []Word{{Text: "hi", Start: 0.48, End: 0.98, SpeakerID: "speaker_1"}} // 20ms overlap, below 100ms

	res := SAWER(ref, hyp)
	require.Equal(t, 0, res.AttributedWords)
	require.Equal(t, 0.0, res.AttributionAccuracy)
}
