package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapLogger builds the zap logger handed to the mail transport and the
// PDF printer. It honors the same level, format and output as NewLogger.
func NewZapLogger(config *Config) (*zap.Logger, error) {
	if config == nil {
		return zap.NewNop(), nil
	}

	level, err := zap.ParseAtomicLevel(strings.ToLower(config.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.MessageKey = "message"
	zc.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	switch strings.ToLower(config.Format) {
	case "json":
		zc.Encoding = "json"
	case "text":
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, fmt.Errorf("unsupported log format: %s", config.Format)
	}

	output := config.Output
	if output == "" {
		output = "stderr"
	}
	zc.OutputPaths = []string{output}
	zc.ErrorOutputPaths = []string{"stderr"}

	service := config.ServiceName
	if service == "" {
		service = "vanguard"
	}
	zc.InitialFields = map[string]interface{}{"service": service}
	if config.Version != "" {
		zc.InitialFields["version"] = config.Version
	}

	return zc.Build()
}
