package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/ulugbekdev/savetube/async"
	"github.com/ulugbekdev/savetube/bot"
	"github.com/ulugbekdev/savetube/cleanup"
	"github.com/ulugbekdev/savetube/config"
	"github.com/ulugbekdev/savetube/engine"
	"github.com/ulugbekdev/savetube/identity"
	"github.com/ulugbekdev/savetube/internal/pool"
	"github.com/ulugbekdev/savetube/normalize"
	"github.com/ulugbekdev/savetube/probe"
	"github.com/ulugbekdev/savetube/recognize"
	"github.com/ulugbekdev/savetube/tube"
	"github.com/ulugbekdev/savetube/ytdlp"
)

func main() {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := logConfig.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := &cli.App{
		Name:  "savetube",
		Usage: "Telegram bot that fetches YouTube media",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "load configuration from `FILE`",
			},
		},
		Action: func(c *cli.Context) error {
			return run(ctx, c.String("config"))
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.Run(os.Args) })

	select {
	case err = <-result:
	case <-ctx.Done():
		stop()
		err = <-result
	}
	if err != nil {
		logger.Fatal(err.Error())
	}
}

func run(ctx context.Context, configPath string) error {
	logger := zap.S()
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var health *identity.Health
	var identities identity.Source
	if cfg.CookieDir != "" {
		health, err = identity.OpenHealth(cfg.HealthDBPath)
		if err != nil {
			return err
		}
		defer health.Close()
		identities = identity.OrderedSource{
			Source: identity.DirSource{Root: cfg.CookieDir},
			Health: health,
		}
	}

	workers := pool.New(cfg.PoolSize)
	defer workers.Close()

	prober := probe.FFProbe{Bin: cfg.FFprobeBin}
	normalizer := normalize.New(normalize.ExecRunner{Bin: cfg.FFmpegBin}, prober)

	eng, err := engine.New(engine.Config{
		WorkDir:         cfg.WorkDir,
		MediaTimeout:    cfg.MediaTimeout,
		FallbackTimeout: cfg.FallbackTimeout,
		Primary:         ytdlp.NewExec(cfg.YTDLPBin),
		Fallback:        tube.NewClient(),
		Identities:      identities,
		Health:          health,
		Prober:          prober,
		Normalizer:      normalizer,
		Pool:            workers,
	})
	if err != nil {
		return err
	}

	var recognizer recognize.Recognizer
	if cfg.RecognizerURL != "" && cfg.RecognizerToken != "" {
		recognizer = &recognize.HTTPRecognizer{URL: cfg.RecognizerURL, Token: cfg.RecognizerToken}
	}

	b, err := bot.New(cfg.BotToken, eng, normalizer, recognizer)
	if err != nil {
		return err
	}

	sweeper := cleanup.NewSweeper(cfg.WorkDir)
	sweeper.MaxAge = cfg.MaxFileAge
	sweeper.Interval = cfg.SweepInterval

	logger.Infow("daemon starting", "work_dir", cfg.WorkDir, "pool_size", cfg.PoolSize)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(ctx) })
	g.Go(func() error { return sweeper.Run(ctx) })
	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	logger.Info("daemon stopped")
	return nil
}
