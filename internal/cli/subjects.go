package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"quiz-poll-bot/internal/config"
)

// NewSubjectsCmd prints the subjects the bot would offer with their question counts.
func NewSubjectsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "subjects",
		Short: "List available subjects",
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

			source, closeSource, err := openSource(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeSource()

			subjects, err := source.ListSubjects(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range subjects {
				questions, err := source.LoadQuestions(cmd.Context(), s)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%d\n", s, len(questions))
			}
			if len(subjects) == 0 {
				fmt.Fprintln(out, "no subjects found")
			}
			return nil
		},
	}
}
