package logger

import (
	"classboard-service/config"

	"go.uber.org/zap"
)

// New builds the service-wide sugared logger. LOG_MODE=development switches
// to the human-readable encoder.
func New() (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if config.Config("LOG_MODE") == "development" {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
