package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New constrói o logger padrão dos serviços: produção em JSON, dev legível.
// serviço e env entram como campos fixos em toda linha de log
func New(serviceName string, env string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build(
		zap.Fields(
			zap.String("service", serviceName),
			zap.String("env", env),
		),
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}
