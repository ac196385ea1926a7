package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"transcore/internal/asr"
	"transcore/internal/audiotype"
	"transcore/internal/transport"
)

type fakeEmitter struct {
	speakers    []transport.SpeakerDetected
	transcripts []transport.TranscriptEvent
	warnings    []transport.WarningEvent
}

func (f *fakeEmitter) EmitSpeakerDetected(sessionID string, ev transport.SpeakerDetected) {
	f.speakers = append(f.speakers, ev)
}

func (f *fakeEmitter) EmitTranscript(sessionID string, ev transport.TranscriptEvent) {
	f.transcripts = append(f.transcripts, ev)
}

func (f *fakeEmitter) EmitWarning(sessionID string, ev transport.WarningEvent) {
	f.warnings = append(f.warnings, ev)
}

func newTestOrchestrator() (*orchestrator, *fakeEmitter) {
	emit := &fakeEmitter{}
	o := newOrchestrator("sess-1", nil, nil, nil, nil, newMetrics(), emit)
	return o, emit
}

func TestAttachSpeakerStampsEveryWord(t *testing.T) {
	words := []asr.Word{{Text: "hi", Start: 0, End: 200, Confidence: 0.9}}
	out := attachSpeaker(words, "speaker_1", 10.0)
	require.Len(t, out, 1)
	require.Equal(t, "speaker_1", out[0].SpeakerID)
	require.Equal(t, "hi", out[0].Text)
	require.InDelta(t, 10.0, out[0].StartTime, 1e-9)
	require.InDelta(t, 10.2, out[0].EndTime, 1e-9)
}

func TestToTransportWordsConvertsMillisecondTimes(t *testing.T) {
	words := []audiotype.Word{{Text: "hi", StartTime: 0.1, EndTime: 0.3, Confidence: 0.8}}
	out := toTransportWords(words)
	require.Equal(t, int64(100), out[0].Start)
	require.Equal(t, int64(300), out[0].End)
}

func TestOverlapBufferForEmptyBeforeFirstSegment(t *testing.T) {
	o, _ := newTestOrchestrator()
	seg := audiotype.Segment{SegmentID: 1, StartTime: 0, EndTime: 1}
	require.Equal(t, "", o.overlapBufferFor(seg))
}

func TestOverlapBufferForReturnsTrailingWordsWithinGap(t *testing.T) {
	o, _ := newTestOrchestrator()
	first := audiotype.Segment{SegmentID: 1, StartTime: 0, EndTime: 1.0}
	o.recordOverlapState(first, []audiotype.Word{{Text: "the"}, {Text: "quick"}, {Text: "fox"}})

	second := audiotype.Segment{SegmentID: 2, StartTime: 1.05, EndTime: 2.0} // 50ms gap
	require.Equal(t, "the quick fox", o.overlapBufferFor(second))
}

func TestOverlapBufferForEmptyBeyondGap(t *testing.T) {
	o, _ := newTestOrchestrator()
	first := audiotype.Segment{SegmentID: 1, StartTime: 0, EndTime: 1.0}
	o.recordOverlapState(first, []audiotype.Word{{Text: "the"}})

	second := audiotype.Segment{SegmentID: 2, StartTime: 1.5, EndTime: 2.0} // 500ms gap
	require.Equal(t, "", o.overlapBufferFor(second))
}

func TestRecordOverlapStateCapsTrailingWords(t *testing.T) {
	o, _ := newTestOrchestrator()
	words := make([]audiotype.Word, overlapBufferWords+10)
	for i := range words {
		words[i] = audiotype.Word{Text: "w"}
	}
	o.recordOverlapState(audiotype.Segment{EndTime: 1.0}, words)
	require.Len(t, o.lastWords, overlapBufferWords)
}

func TestAttributeSpeakerReusesLastWhenNoEncoder(t *testing.T) {
	o, _ := newTestOrchestrator()
	require.Equal(t, "unknown", o.attributeSpeaker(audiotype.Segment{}, 2.0))

	o.lastSpeakerID = "speaker_3"
	require.Equal(t, "speaker_3", o.attributeSpeaker(audiotype.Segment{}, 2.0))
}
