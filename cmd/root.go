// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepilot/internal/config"
	"github.com/xkilldash9x/coursepilot/internal/observability"
)

// NewRootCommand builds a fresh command tree bound to app. The shell builds
// one per line so flags never leak between commands.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "coursepilot",
		Short:         "Coursepilot works through course pages in a real browser session.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load()
		},
	}
	rootCmd.SetOut(app.out)
	rootCmd.SetErr(app.out)
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.PersistentFlags().StringVarP(&app.cfgFile, "config", "c", app.cfgFile, "config file (default is ./config.yaml)")

	rootCmd.AddCommand(
		newProcessCmd(app),
		newQuestionsCmd(app),
		newNavigateCmd(app),
		newOpenCmd(app),
		newRestartCmd(app),
		newStatusCmd(app),
		newReviewCmd(app),
		newConfigCmd(app),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs one command line against app.
func Execute(ctx context.Context, app *App, args []string) error {
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		app.Logger().Info("Command cancelled.")
		return err
	}
	app.Logger().Error("Command execution failed.", zap.Error(err))
	fmt.Fprintf(app.out, "Error: %v\n", err)
	return err
}

// load reads the configuration and sets up logging once per process.
func (a *App) load() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cfg == nil {
		cfg, err := loadConfig(a.cfgFile)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.logger == nil {
		observability.InitializeLogger(a.cfg.Logger())
		a.logger = observability.GetLogger()
		a.logger.Info("Starting coursepilot.", zap.String("version", Version))
	}
	return nil
}

// loadConfig reads config.yaml (or cfgFile) and COURSEPILOT_* variables over
// the defaults.
func loadConfig(cfgFile string) (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("COURSEPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return config.NewConfigFromViper(v)
}
