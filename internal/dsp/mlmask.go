package dsp

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Mask model contract: "audio" [1, 2048] float32 analysis frame and "sr"
// [1] int64 sample rate in, "mask" [1, 1025] float32 per-bin speech
// probability out.
const (
	maskModelFrameSize = wolaWinSize
	maskModelBins      = wolaWinSize/2 + 1
)

// ortEnvOnce guards one-time ONNX Runtime environment setup. The error is
// kept at package scope so every later construction attempt reports the same
// failure instead of running against a dead environment.
var (
	ortEnvOnce sync.Once
	ortEnvErr  error
)

// ONNXMaskAdvisor runs the spectral mask model through ONNX Runtime. The
// session and tensors are prepared lazily on the first EstimateMask call so
// constructing the advisor never touches the runtime library.
type ONNXMaskAdvisor struct {
	modelPath string

	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	srTensor     *ort.Tensor[int64]
	outputTensor *ort.Tensor[float32]

	prepared bool
}

// NewONNXMaskAdvisor points the advisor at a mask model file. The file is not
// opened until first use.
func NewONNXMaskAdvisor(modelPath string) *ONNXMaskAdvisor {
	return &ONNXMaskAdvisor{modelPath: modelPath}
}

// EstimateMask fills mask with per-bin speech probabilities for the frame.
// The frame must be maskModelFrameSize samples and mask maskModelBins long.
func (a *ONNXMaskAdvisor) EstimateMask(frame []float64, sampleRate float64, mask []float64) error {
	if len(frame) != maskModelFrameSize {
		return fmt.Errorf("mask advisor: frame size %d, want %d", len(frame), maskModelFrameSize)
	}
	if len(mask) != maskModelBins {
		return fmt.Errorf("mask advisor: mask size %d, want %d", len(mask), maskModelBins)
	}
	if !a.prepared {
		if err := a.prepare(); err != nil {
			return err
		}
	}

	in := a.inputTensor.GetData()
	for i, v := range frame {
		in[i] = float32(v)
	}
	a.srTensor.GetData()[0] = int64(sampleRate)

	if err := a.session.Run(); err != nil {
		return fmt.Errorf("mask advisor: inference: %w", err)
	}

	out := a.outputTensor.GetData()
	for i := range mask {
		mask[i] = clamp01(float64(out[i]))
	}
	return nil
}

func (a *ONNXMaskAdvisor) prepare() error {
	modelData, err := os.ReadFile(a.modelPath)
	if err != nil {
		return fmt.Errorf("mask advisor: read model: %w", err)
	}

	ortEnvOnce.Do(func() {
		libPath, err := resolveORTLibPath()
		if err != nil {
			ortEnvErr = err
			return
		}
		ort.SetSharedLibraryPath(libPath)
		ortEnvErr = ort.InitializeEnvironment()
	})
	if ortEnvErr != nil {
		return fmt.Errorf("mask advisor: %w", ortEnvErr)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, maskModelFrameSize))
	if err != nil {
		return fmt.Errorf("mask advisor: create input tensor: %w", err)
	}
	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{0})
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("mask advisor: create sr tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, maskModelBins))
	if err != nil {
		inputTensor.Destroy()
		srTensor.Destroy()
		return fmt.Errorf("mask advisor: create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSessionWithONNXData(
		modelData,
		[]string{"audio", "sr"},
		[]string{"mask"},
		[]ort.Value{inputTensor, srTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		return fmt.Errorf("mask advisor: create session: %w", err)
	}

	a.inputTensor = inputTensor
	a.srTensor = srTensor
	a.outputTensor = outputTensor
	a.session = session
	a.prepared = true
	return nil
}

// Close releases runtime resources. Safe to call before first use and more
// than once.
func (a *ONNXMaskAdvisor) Close() error {
	if a.session != nil {
		a.session.Destroy()
		a.session = nil
	}
	if a.inputTensor != nil {
		a.inputTensor.Destroy()
		a.inputTensor = nil
	}
	if a.srTensor != nil {
		a.srTensor.Destroy()
		a.srTensor = nil
	}
	if a.outputTensor != nil {
		a.outputTensor.Destroy()
		a.outputTensor = nil
	}
	a.prepared = false
	return nil
}

// resolveORTLibPath locates the ONNX Runtime shared library. An explicit
// VOICEMEND_ORT_LIB environment variable wins; otherwise the loader looks in
// lib/<goos>-<goarch>/ beside and above the executable.
func resolveORTLibPath() (string, error) {
	if envPath := os.Getenv("VOICEMEND_ORT_LIB"); envPath != "" {
		info, err := os.Stat(envPath)
		if err != nil {
			return "", fmt.Errorf("ort: VOICEMEND_ORT_LIB=%q does not exist", envPath)
		}
		if info.IsDir() {
			return "", fmt.Errorf("ort: VOICEMEND_ORT_LIB=%q is a directory, expected a file", envPath)
		}
		return envPath, nil
	}

	filename := ortLibFilename()
	libRel := filepath.Join("lib", runtime.GOOS+"-"+runtime.GOARCH, filename)
	libRelParent := filepath.Join("..", "lib", runtime.GOOS+"-"+runtime.GOARCH, filename)

	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		for _, rel := range []string{libRel, libRelParent} {
			path := filepath.Join(exeDir, rel)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	return "", fmt.Errorf("ort: shared library not found; searched lib/<os>-<arch>/%s relative to executable (set VOICEMEND_ORT_LIB to override)", filename)
}

func ortLibFilename() string {
	switch runtime.GOOS {
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}
