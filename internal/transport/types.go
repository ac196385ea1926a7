// Package transport carries the session control surface (spec §6) over
// WebSocket and gRPC, using the same wire shape on both so a single
// Controller implementation serves either front end.
package transport

// ControlEnvelope is the single message type exchanged on both the
// WebSocket and gRPC streams. SessionID accompanies requests, replies and
// events alike; apart from it, only one of the Request/Event field groups is
// populated on any given envelope, and Type discriminates which.
type ControlEnvelope struct {
	Type string `json:"type"`

	// Request fields (client -> server).
	SessionID     string         `json:"session_id,omitempty"`
	StartConfig   *SessionConfig `json:"start_config,omitempty"`
	AudioFrame    *AudioFrame    `json:"audio_frame,omitempty"`

	// Response/event fields (server -> client).
	Error           string           `json:"error,omitempty"`
	SpeakerDetected *SpeakerDetected `json:"speaker_detected,omitempty"`
	Transcript      *TranscriptEvent `json:"transcript,omitempty"`
	Progress        *ProgressEvent   `json:"progress,omitempty"`
	Warning         *WarningEvent    `json:"warning,omitempty"`
	Fatal           *FatalEvent      `json:"fatal,omitempty"`
	Metrics         *MetricsSnapshot `json:"metrics,omitempty"`
}

// Envelope type tags, one per spec §6 operation plus one per event kind.
const (
	TypeStartSession = "start_session"
	TypePause        = "pause"
	TypeResume       = "resume"
	TypeStop         = "stop"
	TypePushAudio    = "push_audio"
	TypeSubscribe    = "subscribe"
	TypeGetMetrics   = "get_metrics"

	TypeSessionStarted    = "session_started"
	TypeSpeakerDetected   = "speaker_detected"
	TypeTranscriptEmitted = "transcript_emitted"
	TypeProcessingProgress = "processing_progress"
	TypeWarning           = "warning"
	TypeFatal             = "fatal"
	TypeMetrics           = "metrics"
)

// SessionConfig is the start_session request payload: device/file source,
// model tier paths, and the optional inputs spec §6 names.
type SessionConfig struct {
	DeviceID         string   `json:"device_id,omitempty"`
	ReplayFilePath   string   `json:"replay_file_path,omitempty"`
	ExternalCapture  bool     `json:"external_capture,omitempty"`
	LanguageHint     string   `json:"language_hint,omitempty"`
	CustomVocabulary []string `json:"custom_vocabulary,omitempty"`
	ProfileStoreDir  string   `json:"profile_store_dir,omitempty"`
}

// AudioFrame carries one push_audio payload: PCM samples for file-replay or
// external-capture sources.
type AudioFrame struct {
	Samples    []float32 `json:"samples"`
	SampleRate int       `json:"sample_rate"`
}

type SpeakerDetected struct {
	SpeakerID    string `json:"speaker_id"`
	FirstSeenMs  int64  `json:"first_seen_ms"`
}

type TranscriptEvent struct {
	SegmentID string `json:"segment_id"`
	Pass      int    `json:"pass"`
	Words     []Word `json:"words"`
	SpeakerID string `json:"speaker_id,omitempty"`
}

type Word struct {
	Start      int64   `json:"start_ms"`
	End        int64   `json:"end_ms"`
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
}

type ProgressEvent struct {
	ProcessedSeconds float64 `json:"processed_seconds"`
	WallSeconds      float64 `json:"wall_seconds"`
}

type WarningEvent struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

type FatalEvent struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// MetricsSnapshot answers get_metrics. Field set mirrors the pipeline's
// internal Metrics struct but is transport's own copy so wire shape doesn't
// move every time an internal counter is added.
type MetricsSnapshot struct {
	FramesDropped  int64   `json:"frames_dropped"`
	QueueDepth     int     `json:"queue_depth"`
	Pass1LatencyMs float64 `json:"pass1_latency_ms"`
	Pass2LatencyMs float64 `json:"pass2_latency_ms"`
	RTF            float64 `json:"rtf"`
}
