package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evcraddock/mela/internal/auth"
	"github.com/evcraddock/mela/internal/brand"
	"github.com/evcraddock/mela/internal/classifier"
	"github.com/evcraddock/mela/internal/config"
	"github.com/evcraddock/mela/internal/listing"
	"github.com/evcraddock/mela/internal/logging"
	"github.com/evcraddock/mela/internal/matcher"
	"github.com/evcraddock/mela/internal/metrics"
	"github.com/evcraddock/mela/internal/notification"
	"github.com/evcraddock/mela/internal/push"
	"github.com/evcraddock/mela/internal/wanted"
	"github.com/evcraddock/mela/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		port       int
		configPath string
		dev        bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the HTTP API server together with the background brand matcher.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if dev {
				cfg.Server.DevMode = true
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on (overrides config)")
	cmd.Flags().StringVar(&configPath, "config", "", "server config file (default: ~/.config/mela/server.yaml)")
	cmd.Flags().BoolVar(&dev, "dev", false, "development mode: console logs, magic links logged instead of emailed")

	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	log, err := logging.Setup(cfg.Server.DevMode)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	database, err := openDB(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer closeDB(database)

	admin, err := auth.NewUserStore(database, cfg.Auth.AdminEmail).EnsureAdmin(ctx)
	if err != nil {
		return fmt.Errorf("ensuring admin account: %w", err)
	}
	if admin != nil {
		log.Info("admin account ready", zap.String("email", admin.Email))
	}

	m := metrics.New()

	detector, closeDetector, err := classifier.New(ctx, cfg.Classifier, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("building brand detector: %w", err)
	}
	defer func() {
		if err := closeDetector(); err != nil {
			log.Warn("closing detector", zap.Error(err))
		}
	}()

	sender, err := newPushSender(ctx, cfg.Push, log)
	if err != nil {
		return err
	}

	match := matcher.New(matcher.Deps{
		Listings:      listing.NewRepository(database),
		WantedAds:     wanted.NewRepository(database),
		Preferences:   brand.NewStore(database),
		Notifications: notification.NewRepository(database),
		Detector:      detector,
		Pusher:        push.NewNotifier(push.NewStore(database), sender, log),
		Metrics:       m,
		Log:           log,
		PushWorkers:   cfg.Matcher.PushWorkers,
	})
	dispatcher := matcher.NewDispatcher(match, matcher.DispatcherConfig{
		Workers:   cfg.Matcher.Workers,
		QueueSize: cfg.Matcher.QueueSize,
	}, log, m)
	// Runs before closeDB so queued matches finish against an open database.
	defer dispatcher.Close()

	srv, err := web.NewServer(web.Deps{
		DB:         database,
		Config:     cfg,
		Matcher:    match,
		Dispatcher: dispatcher,
		Metrics:    m,
		Log:        log,
	})
	if err != nil {
		return err
	}

	log.Info("starting mela",
		zap.String("version", Version),
		zap.String("classifier", cfg.Classifier.Provider),
		zap.Bool("push", cfg.Push.Enabled),
		zap.Bool("dev_mode", cfg.Server.DevMode),
	)
	return srv.Run(ctx, cfg.Server.Port)
}

// newPushSender returns the FCM sender when push is enabled and a
// logging sender otherwise.
func newPushSender(ctx context.Context, cfg config.PushConfig, log *zap.Logger) (push.Sender, error) {
	if !cfg.Enabled {
		return push.NewLogSender(log), nil
	}
	s, err := push.NewFCMSender(ctx, cfg.CredentialsFile, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("setting up push: %w", err)
	}
	return s, nil
}
