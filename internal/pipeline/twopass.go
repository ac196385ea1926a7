package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"transcore/internal/asr"
	"transcore/internal/audiotype"
	"transcore/internal/modeltier"
	"transcore/internal/speaker"
	"transcore/internal/transport"
)

// chunkBoundaryGap is spec §4.6's threshold: consecutive segments within
// this wall-time gap are treated as continuations for overlap-buffer
// dedup purposes.
const chunkBoundaryGap = 100 * time.Millisecond

// overlapBufferWords is how many trailing words of a segment's text are
// carried forward as the next segment's overlap_buffer.
const overlapBufferWords = 30

// pass2HardBudgetMultiplier is spec §5's Pass 2 hard timeout: 10x the
// segment's own duration.
const pass2HardBudgetMultiplier = 10

// eventEmitter is the subset of transport.Hub's API twopass needs; a fake
// implementation backs the unit tests.
type eventEmitter interface {
	EmitSpeakerDetected(sessionID string, ev transport.SpeakerDetected)
	EmitTranscript(sessionID string, ev transport.TranscriptEvent)
	EmitWarning(sessionID string, ev transport.WarningEvent)
}

// orchestrator drives one session's two-pass ASR + speaker attribution over
// a stream of VAD segments, per spec §4.6.
type orchestrator struct {
	sessionID string
	asrMgr    *asr.Manager
	modelMgr  *modeltier.Manager
	cluster   *speaker.Cluster
	encoder   *speaker.Encoder // nil disables embedding extraction (speaker_id stays "unknown")
	metrics   *Metrics
	emit      eventEmitter

	mu             sync.Mutex
	lastSegmentEnd float64
	haveLast       bool
	lastWords      []string
	lastSpeakerID  string
	knownSpeakers  map[string]bool

	pass2Sem chan struct{} // bounds concurrent Pass 2 inference work
	wg       sync.WaitGroup
}

func newOrchestrator(sessionID string, asrMgr *asr.Manager, modelMgr *modeltier.Manager, cluster *speaker.Cluster, encoder *speaker.Encoder, metrics *Metrics, emit eventEmitter) *orchestrator {
	return &orchestrator{
		sessionID:     sessionID,
		asrMgr:        asrMgr,
		modelMgr:      modelMgr,
		cluster:       cluster,
		encoder:       encoder,
		metrics:       metrics,
		emit:          emit,
		knownSpeakers: make(map[string]bool),
		pass2Sem:      make(chan struct{}, 4),
	}
}

// Process runs Pass 1 synchronously (so its ordering guarantee — Pass 1
// always emitted before Pass 2, and in segment start-time order — falls out
// of the caller driving segments one at a time) and schedules Pass 2
// asynchronously, which is explicitly permitted to complete out of order.
func (o *orchestrator) Process(seg audiotype.Segment) error {
	overlapBuffer := o.overlapBufferFor(seg)
	segDuration := seg.EndTime - seg.StartTime

	pass1Start := time.Now()
	pass1Tier, pass2Tier := o.modelMgr.PassTiers()
	result, err := o.asrMgr.Transcribe(pass1Tier, seg.Samples, overlapBuffer)
	if err != nil {
		return fmt.Errorf("pipeline: pass1 transcribe segment=%d: %w", seg.SegmentID, err)
	}
	pass1Latency := time.Since(pass1Start)

	speakerID := o.attributeSpeaker(seg, segDuration)
	words := attachSpeaker(result.Words, speakerID, seg.StartTime)

	o.metrics.recordPass1(pass1Latency, segDuration)
	o.emit.EmitTranscript(o.sessionID, transport.TranscriptEvent{
		SegmentID: fmt.Sprintf("%d", seg.SegmentID),
		Pass:      int(audiotype.PassImmediate),
		Words:     toTransportWords(words),
		SpeakerID: speakerID,
	})

	o.recordOverlapState(seg, words)

	o.wg.Add(1)
	go o.runPass2(seg, pass2Tier, overlapBuffer, speakerID, segDuration)

	return nil
}

func (o *orchestrator) runPass2(seg audiotype.Segment, tier modeltier.Tier, overlapBuffer, speakerID string, segDuration float64) {
	defer o.wg.Done()

	o.pass2Sem <- struct{}{}
	defer func() { <-o.pass2Sem }()

	budget := time.Duration(float64(pass2HardBudgetMultiplier) * segDuration * float64(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	done := make(chan struct {
		result asr.Result
		err    error
	}, 1)

	pass2Start := time.Now()
	go func() {
		result, err := o.asrMgr.Transcribe(tier, seg.Samples, overlapBuffer)
		done <- struct {
			result asr.Result
			err    error
		}{result, err}
	}()

	select {
	case <-ctx.Done():
		o.emit.EmitWarning(o.sessionID, transport.WarningEvent{
			Code:   "pass2_timeout",
			Detail: fmt.Sprintf("segment %d: pass2 exceeded %s hard budget, keeping pass1 result", seg.SegmentID, budget),
		})
		return
	case r := <-done:
		if r.err != nil {
			o.emit.EmitWarning(o.sessionID, transport.WarningEvent{
				Code:   "pass2_failed",
				Detail: fmt.Sprintf("segment %d: %v, keeping pass1 result", seg.SegmentID, r.err),
			})
			return
		}
		o.metrics.recordPass2(time.Since(pass2Start))
		words := attachSpeaker(r.result.Words, speakerID, seg.StartTime)
		o.emit.EmitTranscript(o.sessionID, transport.TranscriptEvent{
			SegmentID: fmt.Sprintf("%d", seg.SegmentID),
			Pass:      int(audiotype.PassRefined),
			Words:     toTransportWords(words),
			SpeakerID: speakerID,
		})
	}
}

// Wait blocks until every in-flight Pass 2 goroutine has finished, for
// Finalizing's drain-in-flight-segments requirement.
func (o *orchestrator) Wait() {
	o.wg.Wait()
}

// overlapBufferFor returns the trailing text to hand the ASR as
// overlap_buffer when seg starts within chunkBoundaryGap of the previous
// segment's end, per spec §4.6.
func (o *orchestrator) overlapBufferFor(seg audiotype.Segment) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.haveLast {
		return ""
	}
	gap := time.Duration((seg.StartTime - o.lastSegmentEnd) * float64(time.Second))
	if gap < 0 {
		gap = 0
	}
	if gap > chunkBoundaryGap {
		return ""
	}
	return strings.Join(o.lastWords, " ")
}

func (o *orchestrator) recordOverlapState(seg audiotype.Segment, words []audiotype.Word) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastSegmentEnd = seg.EndTime
	o.haveLast = true

	tokens := make([]string, len(words))
	for i, w := range words {
		tokens[i] = w.Text
	}
	if len(tokens) > overlapBufferWords {
		tokens = tokens[len(tokens)-overlapBufferWords:]
	}
	o.lastWords = tokens
}

// attributeSpeaker assigns a speaker_id to seg, extracting a fresh embedding
// for segments at or above speaker.MinEncodeDuration and reusing the prior
// segment's identity for shorter ones (continuity assumption, spec §4.5).
// A nil encoder reuses the prior identity the same way (which stays
// "unknown" until a speaker has been assigned); an extraction failure emits
// a Warning and yields "unknown" without failing the segment, per spec
// §4.5's non-fatal failure mode.
func (o *orchestrator) attributeSpeaker(seg audiotype.Segment, durationSeconds float64) string {
	if o.encoder == nil {
		return o.reuseOrUnknown()
	}
	if durationSeconds < speaker.MinEncodeDuration {
		return o.reuseOrUnknown()
	}

	emb, err := o.encoder.Encode(seg.Samples)
	if err != nil {
		o.emit.EmitWarning(o.sessionID, transport.WarningEvent{
			Code:   "embedding_extraction_failed",
			Detail: fmt.Sprintf("segment %d: %v", seg.SegmentID, err),
		})
		return "unknown"
	}

	quality := float32(math.Min(1.0, durationSeconds/3.0))
	assignment := o.cluster.Assign(emb, quality)

	o.mu.Lock()
	o.lastSpeakerID = assignment.SpeakerID
	isNew := !o.knownSpeakers[assignment.SpeakerID]
	o.knownSpeakers[assignment.SpeakerID] = true
	o.mu.Unlock()

	if isNew {
		o.emit.EmitSpeakerDetected(o.sessionID, transport.SpeakerDetected{
			SpeakerID:   assignment.SpeakerID,
			FirstSeenMs: int64(seg.StartTime * 1000),
		})
	}
	return assignment.SpeakerID
}

func (o *orchestrator) reuseOrUnknown() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastSpeakerID != "" {
		return o.lastSpeakerID
	}
	return "unknown"
}

// attachSpeaker converts asr.Word's segment-relative millisecond offsets
// into audiotype.Word's seconds-from-session-start convention (spec §3) by
// adding segStartTime, and stamps every word with speakerID.
func attachSpeaker(words []asr.Word, speakerID string, segStartTime float64) []audiotype.Word {
	out := make([]audiotype.Word, len(words))
	for i, w := range words {
		out[i] = audiotype.Word{
			Text:       w.Text,
			StartTime:  segStartTime + float64(w.Start)/1000,
			EndTime:    segStartTime + float64(w.End)/1000,
			Confidence: w.Confidence,
			SpeakerID:  speakerID,
		}
	}
	return out
}

func toTransportWords(words []audiotype.Word) []transport.Word {
	out := make([]transport.Word, len(words))
	for i, w := range words {
		out[i] = transport.Word{
			Start:      int64(w.StartTime * 1000),
			End:        int64(w.EndTime * 1000),
			Text:       w.Text,
			Confidence: w.Confidence,
		}
	}
	return out
}
