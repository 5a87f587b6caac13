package articledrafter

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	loggingFormatJSON    = "json"
	loggingFormatConsole = "console"
)

// newLogger builds the command logger from common.logging. Logs go to the
// command's error stream so stdout stays reserved for the document.
func newLogger(level string, format string, sink io.Writer) (*zap.Logger, error) {
	parsedLevel := zapcore.InfoLevel
	if trimmed := strings.TrimSpace(level); trimmed != "" {
		if err := parsedLevel.UnmarshalText([]byte(strings.ToLower(trimmed))); err != nil {
			return nil, fmt.Errorf("invalid logging level %q: %w", level, err)
		}
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(format)) {
	case loggingFormatJSON:
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case "", loggingFormatConsole, "text":
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	default:
		return nil, fmt.Errorf("invalid logging format %q (want console or json)", format)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(sink), parsedLevel)
	return zap.New(core), nil
}
