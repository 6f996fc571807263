// savetube-fetch is a one-shot command line front end to the acquisition
// engine, mainly for trying out cookies, selectors and backends without a
// bot in the loop.
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ulugbekdev/savetube"
	"github.com/ulugbekdev/savetube/async"
	"github.com/ulugbekdev/savetube/engine"
	"github.com/ulugbekdev/savetube/identity"
	"github.com/ulugbekdev/savetube/internal/pool"
	"github.com/ulugbekdev/savetube/normalize"
	"github.com/ulugbekdev/savetube/probe"
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
		Name:      "savetube-fetch",
		Usage:     "fetch a single video or song",
		ArgsUsage: "URL_OR_QUERY",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "target",
				Value: ".",
				Usage: "save downloaded media to `DIR`",
			},
			&cli.StringFlag{
				Name:  "cookies",
				Usage: "read identity cookie jars from `DIR`",
			},
			&cli.IntFlag{
				Name:  "quality",
				Usage: "preferred video height (takes a video `ID` argument instead of a URL)",
			},
			&cli.BoolFlag{
				Name:  "audio",
				Usage: "treat the argument as a music search query",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one URL, id or query", 1)
			}
			return fetch(ctx, c)
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

func fetch(ctx context.Context, c *cli.Context) error {
	logger := zap.S()
	target := c.String("target")

	fallback := tube.NewClient()
	fallback.NewProgress = func(total int64) io.Writer {
		return progressbar.DefaultBytes(total, "downloading")
	}

	var identities identity.Source
	if dir := c.String("cookies"); dir != "" {
		identities = identity.DirSource{Root: dir}
	}

	workers := pool.New(1)
	defer workers.Close()

	prober := probe.FFProbe{}
	eng, err := engine.New(engine.Config{
		WorkDir:    target,
		Primary:    ytdlp.NewExec(""),
		Fallback:   fallback,
		Identities: identities,
		Prober:     prober,
		Normalizer: normalize.New(normalize.ExecRunner{}, prober),
		Pool:       workers,
	})
	if err != nil {
		return err
	}

	arg := c.Args().First()
	var media savetube.Media
	switch {
	case c.Bool("audio"):
		media, err = eng.FetchAudioByQuery(ctx, arg)
	case c.Int("quality") > 0:
		media, err = eng.FetchVideoByID(ctx, arg, c.Int("quality"))
	default:
		media, err = eng.FetchVideoByURL(ctx, arg)
	}
	if err != nil {
		return err
	}
	logger.Infof("Saved %s (%d bytes, %s, via %s)", media.Path, media.Size, media.Duration, media.Backend)
	return nil
}
