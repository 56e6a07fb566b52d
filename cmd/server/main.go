// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/valpere/FeedHarvester/internal/config"
	"github.com/valpere/FeedHarvester/internal/errors"
	"github.com/valpere/FeedHarvester/pkg/api"
)

var version = "dev"

// loadConfig reads path, or falls back to defaults when path is empty
func loadConfig(path, addr string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if addr != "" {
		cfg.Server.Address = addr
	}
	return cfg, nil
}

func run(configPath, addr string, watch bool) error {
	cfg, err := loadConfig(configPath, addr)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	api.Version = version
	svc, err := api.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	if watch && configPath != "" {
		if err := svc.Watch(configPath); err != nil {
			return fmt.Errorf("failed to watch configuration: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return svc.Serve(ctx)
}

func main() {
	configPath := flag.String("config", os.Getenv("FEEDHARVESTER_CONFIG"), "path to the YAML configuration")
	addr := flag.String("addr", "", "listen address, overrides server.address")
	watch := flag.Bool("watch", false, "reload harvest tuning when the configuration changes")
	flag.Parse()

	if err := run(*configPath, *addr, *watch); err != nil {
		svc := errors.NewService()
		fmt.Fprint(os.Stderr, svc.FormatErrorForCLI(err))
		os.Exit(svc.GetExitCode(err))
	}
}
