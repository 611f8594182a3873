package ai

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	onnxInitMu      sync.Mutex
	onnxInitialized bool
)

// onnxLibraryNames имена разделяемой библиотеки ONNX Runtime по платформам
func onnxLibraryNames() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"libonnxruntime.dylib", "libonnxruntime.1.22.0.dylib"}
	case "windows":
		return []string{"onnxruntime.dll"}
	default:
		return []string{"libonnxruntime.so", "libonnxruntime.so.1.22.0"}
	}
}

// initONNXRuntime инициализирует окружение ONNX Runtime один раз на процесс
func initONNXRuntime() error {
	onnxInitMu.Lock()
	defer onnxInitMu.Unlock()

	if onnxInitialized {
		return nil
	}

	// Проверяем переменную окружения для пути к библиотеке
	libPath := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")

	if libPath == "" {
		var searchDirs []string
		if exe, err := os.Executable(); err == nil {
			searchDirs = append(searchDirs, filepath.Dir(exe), filepath.Join(filepath.Dir(exe), "..", "lib"))
		}
		searchDirs = append(searchDirs, ".", "/usr/local/lib", "/usr/lib", "/opt/homebrew/lib")

		for _, dir := range searchDirs {
			for _, name := range onnxLibraryNames() {
				path := filepath.Join(dir, name)
				if _, err := os.Stat(path); err == nil {
					libPath = path
					break
				}
			}
			if libPath != "" {
				break
			}
		}
	}

	if libPath == "" {
		return fmt.Errorf("ONNX Runtime library not found")
	}

	log.Info().Str("path", libPath).Msg("using ONNX Runtime library")
	ort.SetSharedLibraryPath(libPath)

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime environment: %w", err)
	}

	onnxInitialized = true
	return nil
}
