package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/xai-blockchain/xai-sub002/config"
	"github.com/xai-blockchain/xai-sub002/logger"
	"github.com/xai-blockchain/xai-sub002/node"
	"github.com/xai-blockchain/xai-sub002/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.NODE)

func main() {
	defer panics.HandlePanic(log, nil)

	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing command-line arguments: %s\n", err)
		os.Exit(1)
	}

	n, err := node.New(cfg)
	if err != nil {
		log.Criticalf("failed to initialize node: %s", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := n.Start(ctx); err != nil {
		log.Criticalf("failed to start node: %s", err)
		os.Exit(1)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	cancel()
	if err := n.Stop(); err != nil {
		log.Errorf("error during shutdown: %s", err)
	}
}
