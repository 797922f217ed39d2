package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rajeshceg3/AmbientSounds/internal/catalog"
	"github.com/rajeshceg3/AmbientSounds/internal/config"
	"github.com/rajeshceg3/AmbientSounds/internal/cycler"
	"github.com/rajeshceg3/AmbientSounds/internal/engine"
	"github.com/rajeshceg3/AmbientSounds/internal/server"
	"github.com/rajeshceg3/AmbientSounds/internal/settings"
	"github.com/rajeshceg3/AmbientSounds/internal/speaker"
	"github.com/rajeshceg3/AmbientSounds/internal/stream"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "Path to config YAML")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil && !os.IsNotExist(err) {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Logging
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level, err := zerolog.ParseLevel(cfg.Player.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Logger = logger

	// Context / shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Sound catalog
	var cat *catalog.Catalog
	if cfg.Audio.CatalogFile != "" {
		cat, err = catalog.Load(cfg.Audio.CatalogFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Audio.CatalogFile).Msg("failed to load catalog")
		}
	} else {
		cat = catalog.Default()
	}
	log.Info().Int("sounds", cat.Len()).Msg("catalog loaded")

	// Persistent user settings
	store := settings.Open(cfg.Player.SettingsFile, logger)
	store.IncrementSession()
	prefs := store.Snapshot()

	// Broadcaster: fan-out PCM frames to browser streams and the speaker
	broadcaster := stream.NewBroadcaster(logger)

	// The engine opens its output lazily, on the first play request. The
	// broadcaster itself always works; the local speaker is the part that
	// can genuinely fail. The speaker runs on the process signal context,
	// not the request-scoped one the opener is handed.
	openOutput := func(context.Context) (engine.Output, error) {
		if cfg.Audio.Speaker {
			spk, err := speaker.Open(broadcaster, logger)
			if err != nil {
				return nil, err
			}
			go spk.Run(ctx)
		}
		return broadcaster, nil
	}

	eng, err := engine.New(engine.Config{
		Catalog:      cat,
		OpenOutput:   openOutput,
		FetchTimeout: cfg.Audio.FetchTimeout.ToDuration(),
		Volume:       prefs.Volume,
		Preload:      cfg.Audio.Preload,
	}, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build audio engine")
	}
	defer eng.Close()

	// Background color cycler pushes repaints to browsers through the
	// server's event feed. The server does not exist yet, so the paint
	// callback goes through a late-bound pointer.
	var srv *server.Server
	cyc := cycler.New(cfg.Visual.Palette, cfg.Visual.CycleInterval.ToDuration(), func(e cycler.Entry) {
		if srv != nil {
			srv.BroadcastColor(e)
		}
	}, logger)

	srv = server.New(server.Config{
		Bind:              cfg.Server.Bind,
		Port:              cfg.Server.Port,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.ToDuration(),
		AutoHide:          cfg.UI.AutoHide.ToDuration(),
		BannerDismiss:     cfg.UI.BannerDismiss.ToDuration(),
	}, cat, eng, cyc, store, broadcaster, logger)

	// Restore visual preferences from the last session.
	cyc.SetReducedMotion(prefs.ReducedMotion)
	if prefs.VisualEnabled {
		cyc.Start()
	}
	defer cyc.Stop()

	log.Info().Str("addr", srv.Addr()).Msg("ambient player ready")
	if err := srv.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("shutdown complete")
}
