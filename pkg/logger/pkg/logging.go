package logging

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

var (
	_logger           = NewTmpLogger()
	_xRequestIDHeader = "x_request_id"
)

type Config struct {
	Pretty bool
	Level  string
}

func NewLogger(cfg *Config) (*zap.Logger, error) {
	var c zap.Config
	var opts []zap.Option
	if cfg.Pretty {
		c = zap.NewDevelopmentConfig()
		opts = append(opts, zap.AddStacktrace(zap.ErrorLevel))
	} else {
		c = zap.NewProductionConfig()
	}

	level := zap.NewAtomicLevel()

	levelName := "INFO"
	if cfg.Level != "" {
		levelName = cfg.Level
	}

	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, fmt.Errorf("could not parse log level %s", cfg.Level)
	}
	c.Level = level

	return c.Build(opts...)
}

func InitLogger(cfg *Config) (err error) {
	_logger, err = NewLogger(cfg)
	return err
}

func NewTmpLogger() *zap.Logger {
	c := zap.NewProductionConfig()
	c.DisableStacktrace = true
	l, err := c.Build()
	if err != nil {
		panic(err)
	}
	return l
}

// Logger Return new logger with context value
// ctx:  nillable
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil || ctx == context.TODO() {
		return _logger
	}
	return injectXRequestID(_logger, ctx)
}

func SetXRequestIDHeader(headerName string) {
	_xRequestIDHeader = headerName
}

func injectXRequestID(logger *zap.Logger, ctx context.Context) *zap.Logger {
	requestID := middleware.GetReqID(ctx)
	if requestID == "" {
		return logger
	}
	return logger.With(zap.String(_xRequestIDHeader, requestID))
}
