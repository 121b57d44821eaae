//go:build !windows

package main

import (
	"errors"
	"log/slog"
)

func trainGPU(options, *slog.Logger) error {
	return errors.New("webgpu backend is only available on windows builds")
}
