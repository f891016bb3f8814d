package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log = zap.NewNop()

// New construye un logger JSON de producción con el nivel dado ("debug",
// "info"...). Un nivel desconocido se trata como "info".
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"            // Logs estructurados en JSON
	cfg.EncoderConfig.TimeKey = "ts" // timestamp
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = lvl

	return cfg.Build()
}

// Init inicializa el logger global
func Init(level string) {
	l, err := New(level)
	if err != nil {
		panic(err)
	}
	log = l
}

// Logger retorna el logger estructurado. Antes de Init es un no-op.
func Logger() *zap.Logger {
	return log
}
