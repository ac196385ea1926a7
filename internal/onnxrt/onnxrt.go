// Package onnxrt wraps the process-wide ONNX Runtime environment
// initialization shared by every neural component (VAD, speaker embedding,
// ASR) so each only has to call Init once before building a session.
package onnxrt

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	mu          sync.Mutex
	initialized bool
)

// defaultSearchPaths are checked when libPath is empty and
// ONNXRUNTIME_SHARED_LIBRARY_PATH isn't set, covering the common local dev
// and bundled-app layouts.
var defaultSearchPaths = []string{
	"./libonnxruntime.so",
	"./libonnxruntime.dylib",
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
}

// Init loads the ONNX Runtime shared library and initializes its
// environment. It is idempotent: subsequent calls after a successful Init
// are no-ops, since ort's environment is process-global.
func Init(libPath string) error {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return nil
	}

	if libPath == "" {
		libPath = os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
	}
	if libPath == "" {
		for _, p := range defaultSearchPaths {
			if _, err := os.Stat(p); err == nil {
				libPath = p
				break
			}
		}
	}
	if libPath == "" {
		return fmt.Errorf("onnxrt: shared library not found, set ONNXRUNTIME_SHARED_LIBRARY_PATH")
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnxrt: initialize environment: %w", err)
	}
	initialized = true
	return nil
}
