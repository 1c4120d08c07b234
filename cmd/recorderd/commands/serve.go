package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiwatt/recorderd/am"
	"github.com/kiwatt/recorderd/errors"
	"github.com/kiwatt/recorderd/logger"
	"github.com/kiwatt/recorderd/recorder"
	"github.com/kiwatt/recorderd/server"
)

// ServeCmd starts the recorder API daemon
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the recorder API daemon",
	Long:    `Start the HTTP API, the job scheduler, and the capture process supervisor. Runs until interrupted; SIGINT/SIGTERM stop the scheduler, terminate live captures, and drain HTTP.`,
	RunE:    runServe,
}

var serveConfigPath string

func init() {
	ServeCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to config file (default: ./recorderd.toml, /etc/recorderd/recorderd.toml)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	log := logger.Logger

	store := recorder.NewStore(cfg.Recorder.MaxJobSlots, cfg.Recorder.MaxLogLines)
	supervisor := recorder.NewSupervisor(store, cfg.Recorder, log)
	scheduler := recorder.NewScheduler(store, supervisor, cfg.Scheduler, log)
	srv := server.New(cfg, store, scheduler, log)

	log.Infow("Starting recorderd",
		"version", Version,
		"port", cfg.Server.Port,
		"kiwi", cfg.Recorder.KiwiHost,
		"max_job_slots", cfg.Recorder.MaxJobSlots)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infow("Signal received", "signal", sig)
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func loadConfig() (*am.Config, error) {
	if serveConfigPath != "" {
		return am.LoadFromFile(serveConfigPath)
	}
	return am.Load()
}
