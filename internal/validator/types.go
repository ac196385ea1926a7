// Package validator scores a predicted transcript against ground truth:
// WER/CER on word and character tokens, SA-WER and attribution accuracy
// per speaker, time-aligned DER, and overlapping-speech accuracy, per
// spec §4.7. It runs entirely offline against recorded transcripts — it
// is never on the live capture/ASR/speaker path.
package validator

// Word is one predicted or reference transcript word, time-stamped in
// seconds and optionally attributed to a speaker.
type Word struct {
	Text      string
	Start     float64
	End       float64
	SpeakerID string // empty for reference words with no diarization
}

// Transcript is a flat, time-ordered word list plus the raw (untokenized)
// text CER compares over.
type Transcript struct {
	Text  string
	Words []Word
}

// SpeakerSegment is one contiguous span of a single speaker talking,
// the DER grid's unit of ground truth and prediction alike.
type SpeakerSegment struct {
	SpeakerID string
	Start     float64
	End       float64
}
