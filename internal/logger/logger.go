// Package logger wraps zap with the two build modes used by the service.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ProductionMode  = "production"
	DevelopmentMode = "development"
)

var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// New builds a zap logger. Production mode writes JSON with ISO8601 timestamps,
// everything else gets the colourised console encoder.
func New(mode string) (*zap.Logger, error) {
	var config zap.Config
	if mode == ProductionMode {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return config.Build()
}

// SetGlobalLogger replaces the process logger returned by L.
func SetGlobalLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	global = l
	mu.Unlock()
}

// L returns the process logger. It is a no-op logger until SetGlobalLogger is called.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Named is shorthand for L().Named(component).
func Named(component string) *zap.Logger {
	return L().Named(component)
}
