package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ArkLabsHQ/liquid-swap/internal/config"
	"github.com/ArkLabsHQ/liquid-swap/internal/core/application"
	"github.com/ArkLabsHQ/liquid-swap/internal/infrastructure/db"
	scheduler "github.com/ArkLabsHQ/liquid-swap/internal/infrastructure/scheduler/gocron"
	service_interface "github.com/ArkLabsHQ/liquid-swap/internal/interface"
	"github.com/ArkLabsHQ/liquid-swap/internal/interface/web"
	"github.com/ArkLabsHQ/liquid-swap/pkg/boltz"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "liquid-swap",
		Short:        "Claim and refund Liquid swaps",
		Version:      version,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			serve()
		},
	}
	rootCmd.AddCommand(
		serveCmd(),
		decodeCmd(),
		claimCmd(),
		refundCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the swap daemon",
		Run: func(cmd *cobra.Command, args []string) {
			serve()
		},
	}
}

func serve() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	log.Infof("starting liquid-swap on %s...", cfg.Network)

	dbSvc, err := db.NewService(db.ServiceConfig{
		DbType:   "badger",
		DbConfig: []any{log.New()},
	})
	if err != nil {
		log.WithError(err).Fatal("failed to open db")
	}

	buildInfo := application.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	schedulerSvc := scheduler.NewScheduler(cfg.LedgerService(), cfg.RefundPollInterval)

	var boltzApi *boltz.Api
	if len(cfg.BoltzURL) > 0 {
		boltzApi = &boltz.Api{URL: cfg.BoltzURL, WSURL: cfg.BoltzWSURL}
	}
	if cfg.SigningKeyService() == nil {
		log.Warn("no signing key configured, swaps can only be tracked")
	}

	appSvc, err := application.NewService(
		buildInfo, cfg.Chain(), cfg.LedgerService(), dbSvc, schedulerSvc,
		cfg.SigningKeyService(), cfg.DefaultFee, boltzApi,
	)
	if err != nil {
		log.WithError(err).Fatal(err)
	}

	svc, err := service_interface.NewService(web.Config{HTTPPort: cfg.HTTPPort}, appSvc)
	if err != nil {
		log.Fatal(err)
	}

	log.RegisterExitHandler(svc.Stop)
	log.RegisterExitHandler(dbSvc.Close)

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		log.Fatal(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
}
