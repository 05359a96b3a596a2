// csvita - CSV cleanup and reformat tool
//
// Reads a delimited file, quotes every field according to the chosen policy,
// and writes the result with a possibly different delimiter.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/afero"

	"github.com/saikuru0/csvita/internal/app"
	"github.com/saikuru0/csvita/internal/cli"
)

// Exit codes.
const (
	exitOK    = 0
	exitErr   = 1
	exitUsage = 2
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))
	cli.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Stdout, os.Stderr, os.Args[1:], afero.NewOsFs())
	stop()
	os.Exit(code)
}

// run encapsulates the main application logic and returns the exit code.
func run(ctx context.Context, outW, errW io.Writer, args []string, fsys afero.Fs) int {
	err := execute(ctx, outW, errW, args, fsys)
	if err == nil {
		return exitOK
	}

	errorColor := color.New(color.FgRed, color.Bold)
	_, _ = errorColor.Fprintf(errW, "Error: %v\n", err)

	var usageErr *cli.UsageError
	if errors.As(err, &usageErr) {
		return exitUsage
	}
	return exitErr
}

func execute(ctx context.Context, outW, errW io.Writer, args []string, fsys afero.Fs) error {
	config, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	_, err = app.NewApp(errW, config, fsys).Run(ctx)
	return err
}
