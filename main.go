package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/lepinkainen/wildlifetagger/cmd"
	"github.com/lepinkainen/wildlifetagger/settings"
	"github.com/lepinkainen/wildlifetagger/types"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = types.DefaultVersion

type CLI struct {
	Config  string           `name:"settings" help:"Settings file" default:"${settings_path}" type:"path"`
	Version kong.VersionFlag `name:"version" help:"Print version and exit"`

	Detect   cmd.DetectCmd   `cmd:"" help:"Detect wildlife in a folder of images and videos"`
	Models   cmd.ModelsCmd   `cmd:"" help:"List the models in the registry"`
	Settings cmd.SettingsCmd `cmd:"" help:"Create or show the settings file"`
	Check    cmd.CheckCmd    `cmd:"" help:"Check ffmpeg, ffprobe and the selected model"`
}

func cliOptions() []kong.Option {
	return []kong.Option{
		kong.Name("wildlifetagger"),
		kong.Description("Batch object detection for camera-trap images and videos."),
		kong.UsageOnError(),
		kong.Vars{
			"version":       Version,
			"settings_path": settings.DefaultPath,
		},
	}
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}

func main() {
	var cli CLI
	parser := kong.Must(&cli, cliOptions()...)
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	appCtx := &types.AppContext{
		Version:      Version,
		Log:          newLogger(),
		SettingsPath: cli.Config,
	}
	kctx.BindTo(ctx, (*context.Context)(nil))

	err = kctx.Run(appCtx)
	stop()
	kctx.FatalIfErrorf(err)
}
