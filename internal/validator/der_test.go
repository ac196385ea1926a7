package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDERPerfectMatchIsZero(t *testing.T) {
	ref := []SpeakerSegment{{SpeakerID: "speaker_1", Start: 0, End: 1}}
	pred := []SpeakerSegment{{SpeakerID: "speaker_1", Start: 0, End: 1}}

	res := DER(ref, pred, 1.0)
	require.Equal(t, 0, res.FalseAlarmCells)
	require.Equal(t, 0, res.MissCells)
	require.Equal(t, 0, res.SpeakerErrorCells)
	require.Equal(t, 0.0, res.DER)
}

func TestDERCountsMissAndFalseAlarm(t *testing.T) {
	// reference speaks [0, 0.5), predicted speaks [0.5, 1.0) over a 1s window:
	// entirely missed reference speech, entirely false-alarmed predicted speech.
	ref := []SpeakerSegment{{SpeakerID: "speaker_1", Start: 0, End: 0.5}}
	pred := []SpeakerSegment{{SpeakerID: "speaker_1", Start: 0.5, End: 1.0}}

	res := DER(ref, pred, 1.0)
	require.Equal(t, 50, res.MissCells)       // 0.5s / 10ms
	require.Equal(t, 50, res.FalseAlarmCells) // 0.5s / 10ms
	require.Equal(t, 50, res.ReferenceSpeechCells)
	require.Equal(t, 2.0, res.DER) // (miss 50 + FA 50) / 50 reference-speech cells
}

func TestDERCountsSpeakerError(t *testing.T) {
	ref := []SpeakerSegment{{SpeakerID: "speaker_1", Start: 0, End: 1.0}}
	pred := []SpeakerSegment{{SpeakerID: "speaker_2", Start: 0, End: 1.0}}

	res := DER(ref, pred, 1.0)
	require.Equal(t, 100, res.SpeakerErrorCells)
	require.Equal(t, 0, res.MissCells)
	require.Equal(t, 0, res.FalseAlarmCells)
	require.Equal(t, 1.0, res.DER)
}

func TestOverlapAccuracyDetectsMatchingOverlap(t *testing.T) {
	ref := []SpeakerSegment{
		{SpeakerID: "speaker_1", Start: 0, End: 1.0},
		{SpeakerID: "speaker_2", Start: 0.3, End: 0.7}, // reference overlap [0.3, 0.7)
	}
	pred := []SpeakerSegment{
		{SpeakerID: "speaker_1", Start: 0, End: 1.0},
		{SpeakerID: "speaker_2", Start: 0.3, End: 0.7},
	}

	acc := OverlapAccuracy(ref, pred, 1.0, 0.01)
	require.Equal(t, 1.0, acc)
}

func TestOverlapAccuracyZeroWhenPredictedHasNoOverlap(t *testing.T) {
	ref := []SpeakerSegment{
		{SpeakerID: "speaker_1", Start: 0, End: 1.0},
		{SpeakerID: "speaker_2", Start: 0.3, End: 0.7},
	}
	pred := []SpeakerSegment{
		{SpeakerID: "speaker_1", Start: 0, End: 1.0},
	}

	acc := OverlapAccuracy(ref, pred, 1.0, 0.01)
	require.Equal(t, 0.0, acc)
}

func TestClassifyThresholds(t *testing.T) {
	require.Equal(t, LevelExcellent, Classify(0.04, 0.09))
	require.Equal(t, LevelGood, Classify(0.10, 0.15))
	require.Equal(t, LevelFair, Classify(0.20, 0.25))
	require.Equal(t, LevelPoor, Classify(0.30, 0.35))
}
