package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/braillekit/detect"
	"github.com/braillekit/detect/internal/config"
	"github.com/braillekit/detect/providers/staticinv"
)

// envLimitDrivers restricts detection to a comma-separated driver list.
const envLimitDrivers = "DETECT_LIMIT_DRIVERS"

// buildEngine wires a matching engine from the CLI flags: static inventory,
// built-in driver tables, plus an optional registration file.
func buildEngine() (*detect.Engine, error) {
	if rootInventory == "" {
		return nil, errors.New("--inventory is required")
	}
	registry := detect.NewRegistry()
	if err := detect.RegisterBuiltinDrivers(registry); err != nil {
		return nil, err
	}
	if rootRegistry != "" {
		if err := detect.LoadRegistrations(registry, rootRegistry); err != nil {
			return nil, err
		}
	}
	return detect.NewEngine(detect.EngineConfig{
		Inventory: staticinv.New(rootInventory),
		Registry:  registry,
	})
}

// envCatalog derives the default driver filter from the environment.
type envCatalog struct{}

func (envCatalog) EnabledAutoDetectDrivers() []string {
	return config.Strings(envLimitDrivers, nil)
}

// recorderFunc adapts a function to detect.ScanRecorder.
type recorderFunc func(ctx context.Context, rec *detect.ScanCycleRecord) error

func (f recorderFunc) RecordCycle(ctx context.Context, rec *detect.ScanCycleRecord) error {
	return f(ctx, rec)
}

// multiRecorder fans one cycle record out to several sinks, returning the
// first error.
type multiRecorder []detect.ScanRecorder

func (m multiRecorder) RecordCycle(ctx context.Context, rec *detect.ScanCycleRecord) error {
	var firstErr error
	for _, r := range m {
		if err := r.RecordCycle(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
