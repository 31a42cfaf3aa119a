package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/leadops-io/leadops/internal/config"
	"github.com/leadops-io/leadops/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		var exitErr *supervisor.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// childPath finds a sibling binary next to the supervisor, falling back to
// PATH lookup.
func childPath(name string) (string, error) {
	self, err := os.Executable()
	if err == nil {
		sibling := filepath.Join(filepath.Dir(self), name)
		if _, statErr := os.Stat(sibling); statErr == nil {
			return sibling, nil
		}
	}
	return exec.LookPath(name)
}

func run() error {
	logger := config.NewLogger(os.Getenv("ENV"), "supervisor")
	slog.SetDefault(logger)

	apiPath, err := childPath("leadops-api")
	if err != nil {
		return fmt.Errorf("locate api binary: %w", err)
	}
	workerPath, err := childPath("leadops-worker")
	if err != nil {
		return fmt.Errorf("locate worker binary: %w", err)
	}

	sup := supervisor.New([]supervisor.ChildSpec{
		{Name: "api", Path: apiPath},
		{Name: "worker", Path: workerPath},
	}, logger)

	return sup.Run(context.Background())
}
