// Package config parses process-level flags into the settings every other
// package needs at startup: data/model locations, tuning thresholds, and
// transport listen addresses.
package config

import (
	"flag"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Config is the fully resolved set of settings a cmd/transcore process
// needs to wire together a Manager, a modeltier.Registry, a
// profilestore.Store, and a transport.Hub.
type Config struct {
	DataDir   string // session/profile-store persistence root
	ModelsDir string // parent directory holding one subdirectory per tier

	HTTPPort string // WebSocket listen port
	GRPCAddr string // gRPC control-plane address (tcp, unix:, or npipe:)

	// Capture / resampler.
	DeviceID string

	// VAD tuning, defaults per spec §4.3.
	VADThreshold       float64
	VADHangoverWindows int
	VADPreRollMs       int
	VADHeartbeatMs     int

	// ASR tuning, defaults per spec §4.4.
	LanguageHint     string
	CustomVocabulary []string

	// Speaker clustering tuning, defaults per spec §4.5.
	SimilarityThreshold float32
	MaxSpeakers         int
	MaxEmbeddingsPerProfile int

	// Pass-tier assignment, per spec §4.6.
	Pass1Tier string
	Pass2Tier string
}

// Load parses process flags into a Config, resolving every directory and
// address default the same way the teacher's flag set does.
func Load() *Config {
	dataDir := flag.String("data", "data/sessions", "Directory for session and speaker-profile data")
	modelsDir := flag.String("models", "", "Directory holding one subdirectory per ASR tier (default: dataDir/../models)")
	httpPort := flag.String("port", "8080", "WebSocket listen port")
	grpcAddr := flag.String("grpc-addr", defaultGRPCAddress(), "gRPC control-plane address (unix:/path/to.sock, npipe:////./pipe/transcore, or host:port)")
	deviceID := flag.String("device", "", "Capture device identifier (empty selects the host default input device)")

	vadThreshold := flag.Float64("vad-threshold", 0.5, "VAD speech-probability threshold")
	vadHangover := flag.Int("vad-hangover-windows", 20, "Consecutive non-speech 30ms windows before a segment ends")
	vadPreRollMs := flag.Int("vad-preroll-ms", 200, "Audio preceding the first speech window to include in a segment")
	vadHeartbeatMs := flag.Int("vad-heartbeat-ms", 2000, "Partial-segment heartbeat interval in streaming mode")

	languageHint := flag.String("language", "", "Language hint; empty lets the ASR engine auto-detect")
	customVocabulary := flag.String("custom-vocabulary", "", "Comma-separated custom vocabulary list")

	similarityThreshold := flag.Float64("speaker-similarity-threshold", 0.7, "Cosine similarity floor for assigning an existing speaker profile")
	maxSpeakers := flag.Int("max-speakers", 16, "Maximum distinct speakers tracked per session")
	maxEmbeddings := flag.Int("max-embeddings-per-profile", 16, "Maximum embeddings retained per speaker profile before evicting the lowest-quality one")

	pass1Tier := flag.String("pass1-tier", "turbo", "Model tier used for Pass 1 (Immediate)")
	pass2Tier := flag.String("pass2-tier", "high_accuracy", "Model tier used for Pass 2 (Refined)")

	flag.Parse()

	finalModelsDir := *modelsDir
	if finalModelsDir == "" {
		finalModelsDir = filepath.Join(filepath.Dir(*dataDir), "models")
	}

	var vocab []string
	if strings.TrimSpace(*customVocabulary) != "" {
		for _, w := range strings.Split(*customVocabulary, ",") {
			if w = strings.TrimSpace(w); w != "" {
				vocab = append(vocab, w)
			}
		}
	}

	return &Config{
		DataDir:                 *dataDir,
		ModelsDir:               finalModelsDir,
		HTTPPort:                *httpPort,
		GRPCAddr:                *grpcAddr,
		DeviceID:                *deviceID,
		VADThreshold:            *vadThreshold,
		VADHangoverWindows:      *vadHangover,
		VADPreRollMs:            *vadPreRollMs,
		VADHeartbeatMs:          *vadHeartbeatMs,
		LanguageHint:            *languageHint,
		CustomVocabulary:        vocab,
		SimilarityThreshold:     float32(*similarityThreshold),
		MaxSpeakers:             *maxSpeakers,
		MaxEmbeddingsPerProfile: *maxEmbeddings,
		Pass1Tier:               *pass1Tier,
		Pass2Tier:               *pass2Tier,
	}
}

// TierModelPaths returns the per-tier model directory map modeltier.NewRegistry
// expects, one subdirectory of ModelsDir per tier name.
func (c *Config) TierModelPaths(tierNames []string) map[string]string {
	paths := make(map[string]string, len(tierNames))
	for _, name := range tierNames {
		paths[name] = filepath.Join(c.ModelsDir, name)
	}
	return paths
}

// Validate checks the invariants a malformed Config would otherwise violate
// silently at runtime, surfacing them as a single startup error per spec
// §7's ConfigInvalid / "fail fast" policy.
func (c *Config) Validate() error {
	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		return fmt.Errorf("config: vad-threshold %.2f outside [0,1]", c.VADThreshold)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("config: speaker-similarity-threshold %.2f outside [0,1]", c.SimilarityThreshold)
	}
	if c.MaxSpeakers <= 0 {
		return fmt.Errorf("config: max-speakers must be positive, got %d", c.MaxSpeakers)
	}
	if c.MaxEmbeddingsPerProfile <= 0 {
		return fmt.Errorf("config: max-embeddings-per-profile must be positive, got %d", c.MaxEmbeddingsPerProfile)
	}
	if c.Pass1Tier == "" || c.Pass2Tier == "" {
		return fmt.Errorf("config: pass1-tier and pass2-tier must both be set")
	}
	return nil
}

func defaultGRPCAddress() string {
	if runtime.GOOS == "windows" {
		return "npipe:\\\\.\\pipe\\transcore-grpc"
	}
	return "unix:/tmp/transcore-grpc.sock"
}
