package cmd

import (
	"context"
	"net/http"
	"time"

	"voice-banking/internal/audio/capture"
	"voice-banking/internal/audio/mic"
	"voice-banking/internal/config"
	"voice-banking/internal/infra/logger"
	"voice-banking/internal/infra/provider"
)

type app struct {
	cfg        *config.Config
	logger     *logger.Logger
	httpClient *http.Client
	bank       provider.INessieProvider
	speech     provider.ISpeechProvider
	openSource func(opts capture.Options) (capture.Source, error)
	now        func() time.Time
}

func wireApp() *app {
	config.LoadEnv()
	cfg := config.Load()

	log := logger.NewLogger(context.Background(), cfg.LogLevel, false)
	httpClient := &http.Client{}

	return &app{
		cfg:        cfg,
		logger:     log,
		httpClient: httpClient,
		bank:       provider.NewNessieProvider(log, httpClient, cfg.Nessie),
		speech:     provider.NewElevenLabsProvider(log, httpClient, cfg.ElevenLabs),
		openSource: openMicrophone,
		now:        time.Now,
	}
}

func openMicrophone(opts capture.Options) (capture.Source, error) {
	return mic.Open(opts.SampleRate, opts.BlockSize)
}
