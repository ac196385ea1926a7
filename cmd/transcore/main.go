package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"

	"transcore/internal/config"
	"transcore/internal/modeltier"
	"transcore/internal/pipeline"
	"transcore/internal/profilestore"
	"transcore/internal/speaker"
	"transcore/internal/transport"
	"transcore/internal/vad"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal("failed to create data directory: ", err)
	}
	if err := os.MkdirAll(cfg.ModelsDir, 0o755); err != nil {
		log.Fatal("failed to create models directory: ", err)
	}

	tierNames := []string{string(modeltier.Turbo), string(modeltier.Standard), string(modeltier.HighAccuracy)}
	tierPaths := cfg.TierModelPaths(tierNames)
	registry, err := modeltier.NewRegistry(map[modeltier.Tier]string{
		modeltier.Turbo:        tierPaths[string(modeltier.Turbo)],
		modeltier.Standard:     tierPaths[string(modeltier.Standard)],
		modeltier.HighAccuracy: tierPaths[string(modeltier.HighAccuracy)],
	})
	if err != nil {
		log.Fatal("failed to build model tier registry: ", err)
	}

	modelMgr := modeltier.NewManager(registry)
	if err := modelMgr.SetPassTiers(modeltier.Tier(cfg.Pass1Tier), modeltier.Tier(cfg.Pass2Tier)); err != nil {
		log.Fatal("invalid pass tier configuration: ", err)
	}
	if err := modelMgr.Verify(); err != nil {
		log.Printf("warning: %v (sessions using an unready tier will fail at first use)", err)
	}

	profileStore, err := profilestore.Open(cfg.DataDir)
	if err != nil {
		log.Fatal("failed to open profile store: ", err)
	}

	var encoder *speaker.Encoder
	speakerModelPath := filepath.Join(cfg.ModelsDir, "speaker", "embedding.onnx")
	if _, statErr := os.Stat(speakerModelPath); statErr == nil {
		encoder, err = speaker.NewEncoder(speaker.DefaultEncoderConfig(speakerModelPath))
		if err != nil {
			log.Printf("warning: speaker encoder unavailable: %v (segments will carry speaker_id=unknown)", err)
		} else {
			defer encoder.Close()
		}
	} else {
		log.Printf("no speaker embedding model at %s: speaker attribution disabled", speakerModelPath)
	}

	mgr := pipeline.NewManager(pipeline.Deps{
		ModelRegistry:  registry,
		ModelManager:   modelMgr,
		ProfileStore:   profileStore,
		SpeakerEncoder: encoder,
		ClusterConfig: speaker.ClusterConfig{
			SimilarityThreshold:     cfg.SimilarityThreshold,
			MaxSpeakers:             cfg.MaxSpeakers,
			MaxEmbeddingsPerProfile: cfg.MaxEmbeddingsPerProfile,
			OverlapMargin:           0.05,
		},
		VADConfig: vadConfig(cfg),
	})

	hub := transport.NewHub(mgr)
	mgr.SetHub(hub)

	http.HandleFunc("/ws", hub.HandleWebSocket)
	go func() {
		if err := hub.ServeGRPC(cfg.GRPCAddr); err != nil {
			log.Printf("gRPC control server stopped: %v", err)
		}
	}()

	log.Printf("transcore listening on HTTP :%s and gRPC %s", cfg.HTTPPort, cfg.GRPCAddr)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, nil); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

func vadConfig(cfg *config.Config) vad.Config {
	v := vad.DefaultConfig()
	v.Threshold = float32(cfg.VADThreshold)
	v.HangoverWindows = cfg.VADHangoverWindows
	v.PreRollMs = cfg.VADPreRollMs
	return v
}
