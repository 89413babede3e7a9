// Package cmd defines and implements the CLI commands for the trending-digest executable.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/trending-digest/internal/app"
	internalconfig "github.com/JakeFAU/trending-digest/internal/config"
	"github.com/JakeFAU/trending-digest/internal/logging"
	"github.com/JakeFAU/trending-digest/internal/notify"
	"github.com/JakeFAU/trending-digest/internal/report"
	"github.com/JakeFAU/trending-digest/internal/trending"
	"github.com/JakeFAU/trending-digest/pkg/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Crawl(ctx context.Context) (trending.RunResult, report.Artifacts, error)
	Notify(ctx context.Context, recipient string) (notify.Result, error)
	Summary(ctx context.Context) (trending.Summary, error)
	ReportHTML(ctx context.Context) ([]byte, error)
	Config() internalconfig.Config
	Logger() *zap.Logger
	Close()
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context) (App, error) {
	cfg, err := internalconfig.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if cfg.Logging.Development {
		if logger, lerr := logging.New(true); lerr == nil {
			logging.L = logger
		}
	}
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trending-digest",
		Short: "Crawls GitHub trending and publishes a daily digest.",
		Long: `trending-digest scrapes the GitHub trending page, enriches each
repository with its star and fork totals and a README preview, and writes a
JSON and HTML report that can be served over HTTP or e-mailed.`,
		SilenceUsage: true,

		// This hook runs AFTER config is loaded but BEFORE the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cobra.OnInitialize(config.InitConfig)

	cmd.PersistentFlags().String("config", "", "config file (default is ./config.yaml)")
	_ = viper.BindPFlag(config.ConfigFileKey, cmd.PersistentFlags().Lookup("config"))

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newNotifyCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	logging.InitLogger()

	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}
