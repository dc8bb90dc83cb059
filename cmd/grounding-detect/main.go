package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/ironsheep/grounding-detect/internal/config"
	"github.com/ironsheep/grounding-detect/internal/logging"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Getenv("GDINO_LOG_LEVEL")).WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCmd(cfg)
	if err := cmd.ExecuteContext(ctx); err != nil {
		// Run failures have already been reported on stdout.
		if !errors.Is(err, errDetectionFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "Run '%s --help' for usage.\n", cmd.Name())
		}
		stop()
		os.Exit(1)
	}
}
