package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/specialistvlad/taskgrid/internal/app"
	"github.com/specialistvlad/taskgrid/internal/cli"
)

// publishOnce guards expvar registration, whose names are process-global.
var publishOnce sync.Once

// main is the entrypoint for the taskgrid application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The real main function handles errors and exit codes.
	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		stop()
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling. The report goes to outW; logs and usage go to errW.
func run(ctx context.Context, outW, errW io.Writer, args []string) (err error) {
	appConfig, shouldExit, err := cli.Parse(args, errW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	loader, err := app.LoaderFor(appConfig.GridPath)
	if err != nil {
		return &cli.ExitError{Code: 2, Message: err.Error()}
	}

	taskgrid, err := app.NewApp(ctx, outW, errW, appConfig, loader)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer func() {
		err = errors.Join(err, taskgrid.Close())
	}()
	publishOnce.Do(taskgrid.PublishMetrics)

	return taskgrid.Run(ctx)
}
