package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/user/missoula-scraper/internal/app"
	"github.com/user/missoula-scraper/pkg/config"
	"github.com/user/missoula-scraper/pkg/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Dependencies are the process level inputs of the commands.
type Dependencies struct {
	Viper  *viper.Viper
	Stdout io.Writer
	Stderr io.Writer
	Now    func() time.Time
}

func (d *Dependencies) defaults() {
	if d.Viper == nil {
		d.Viper = viper.New()
	}
	if d.Stdout == nil {
		d.Stdout = os.Stdout
	}
	if d.Stderr == nil {
		d.Stderr = os.Stderr
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	deps.defaults()

	rootCmd := &cobra.Command{
		Use:           "scraper",
		Short:         "Collect Missoula city meeting recordings",
		Long:          "Scrapes the Missoula eScribe meeting calendar for meetings in a date window and emits one ingestion event per recorded session.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(deps.Stdout)
	rootCmd.SetErr(deps.Stderr)

	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	flags.String("backend", "", "browser backend (chromedp or static); overrides BROWSER_BACKEND")
	_ = deps.Viper.BindPFlag("LOG_LEVEL", flags.Lookup("log-level"))
	_ = deps.Viper.BindPFlag("BROWSER_BACKEND", flags.Lookup("backend"))

	rootCmd.AddCommand(NewEventsCmd(deps))
	rootCmd.AddCommand(NewServeCmd(deps))

	return rootCmd
}

// loadConfig reads the configuration after flags have been parsed.
func loadConfig(deps *Dependencies) (*config.Config, error) {
	cfg, err := config.Load(deps.Viper)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// stderrLogger keeps stdout free for command output.
func stderrLogger(deps *Dependencies, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	return logger.NewWithCore(zapcore.AddSync(deps.Stderr), lvl), nil
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app.App, error) {
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}
