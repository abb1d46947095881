package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"quiz-poll-bot/internal/config"
	"quiz-poll-bot/internal/infra/csvfile"
	"quiz-poll-bot/internal/infra/postgres"
)

// NewImportCmd loads the CSV quiz directory into Postgres.
func NewImportCmd(configPath *string) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import CSV subjects into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log.Level)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if dir == "" {
				dir = cfg.Quiz.Dir
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg, logger); err != nil {
				return err
			}

			db := postgres.OpenBun(cfg.Postgres.URL)
			defer db.Close()

			n, err := postgres.NewImporter(db, logger).Import(cmd.Context(), csvfile.NewSource(dir, logger))
			if err != nil {
				return err
			}
			logger.Info("questions imported", zap.String("dir", dir), zap.Int("questions", n))
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d questions from %s\n", n, dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "CSV directory (defaults to quiz.dir)")
	return cmd
}
