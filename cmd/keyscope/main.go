package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/keyscope/keyscope/internal/adapters/inbound/cli"
	"github.com/keyscope/keyscope/internal/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()

	if err != nil && !errors.Is(err, domain.ErrViolations) {
		fmt.Fprintln(os.Stderr, "keyscope:", err)
	}
	os.Exit(cli.ExitCode(err))
}
