//go:build windows

package main

import (
	"fmt"
	"log/slog"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/webgpu"
)

func trainGPU(o options, logger *slog.Logger) error {
	if !webgpu.IsAvailable() {
		return fmt.Errorf("webgpu backend is not available on this machine")
	}
	gpu, err := webgpu.New()
	if err != nil {
		return fmt.Errorf("webgpu: %w", err)
	}
	defer gpu.Release()
	return train(autodiff.New(gpu), o, logger)
}
