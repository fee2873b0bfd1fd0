// Package logger builds the zap loggers shared by the API server and the
// annoctl CLI, plus sanitization helpers for values that reach the logs.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewProductionLogger creates the server's JSON logger. Sampling is disabled:
// traffic is one local frontend, and a sampled-away warning about a failed
// silent save would hide real data loss.
func NewProductionLogger(debugMode bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if debugMode {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	config.Sampling = nil
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeDuration = zapcore.SecondsDurationEncoder
	return config.Build(zap.Fields(zap.String("service", "annoview")))
}

// NewDevelopmentLogger creates the console logger used by annoctl.
func NewDevelopmentLogger(debugMode bool) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	if debugMode {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}
