package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reciperag/config"
	"reciperag/internal/logging"
)

var (
	cfgFile  string
	rootDir  string
	logLevel string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "reciperag",
	Short: "Recipe retrieval and grounded recipe generation",
	Long: `reciperag embeds the recipes and ingredients of a catalog, retrieves the
recipes most relevant to a request (backfilling through matching
ingredients when too few recipes match), and grounds recipe generation
in them.

Example usage:
  reciperag seed ./corpus                    # Load YAML recipes into the catalog
  reciperag rebuild                          # Embed every ingredient and recipe
  reciperag search -q "creamy tomato pasta"  # Nearest recipes
  reciperag generate -q "quick dinner" --diet vegetarian --allergen nuts`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			if err := config.LoadDotEnv(".env"); err != nil {
				return fmt.Errorf("failed to load .env: %w", err)
			}
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		cfg.Resolve(rootDir)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./reciperag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "project directory holding config and data (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func GetConfig() *config.Config {
	return cfg
}

func GetLogger() *zap.Logger {
	return logging.OrNop(logger)
}
