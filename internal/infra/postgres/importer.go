package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"quiz-poll-bot/internal/app"
	"quiz-poll-bot/internal/domain"
)

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	Subject       string `bun:"subject,pk"`
	Position      int    `bun:"position,pk"`
	Prompt        string `bun:"prompt,notnull"`
	OptionA       string `bun:"option_a,notnull"`
	OptionB       string `bun:"option_b,notnull"`
	OptionC       string `bun:"option_c,notnull"`
	OptionD       string `bun:"option_d,notnull"`
	CorrectOption int    `bun:"correct_option,notnull"`
}

func toRow(subject string, position int, q domain.Question) questionRow {
	return questionRow{
		Subject:       subject,
		Position:      position,
		Prompt:        q.Prompt,
		OptionA:       q.Options[0],
		OptionB:       q.Options[1],
		OptionC:       q.Options[2],
		OptionD:       q.Options[3],
		CorrectOption: q.CorrectOption,
	}
}

// Importer copies every subject of a source into Postgres, replacing
// whatever was stored for that subject before.
type Importer struct {
	db     *bun.DB
	logger *zap.Logger
}

func NewImporter(db *bun.DB, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{db: db, logger: logger}
}

// Import returns the number of questions written.
func (i *Importer) Import(ctx context.Context, source app.QuestionSource) (int, error) {
	subjects, err := source.ListSubjects(ctx)
	if err != nil {
		return 0, fmt.Errorf("list subjects: %w", err)
	}
	total := 0
	for _, subject := range subjects {
		questions, err := source.LoadQuestions(ctx, subject)
		if err != nil {
			return total, fmt.Errorf("load subject %q: %w", subject, err)
		}
		rows := make([]questionRow, 0, len(questions))
		for pos, q := range questions {
			if !q.Valid() {
				i.logger.Warn("skipping invalid question", zap.String("subject", subject), zap.Int("position", pos))
				continue
			}
			rows = append(rows, toRow(subject, pos, q))
		}

		err = i.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.NewDelete().Model((*questionRow)(nil)).Where("subject = ?", subject).Exec(ctx); err != nil {
				return err
			}
			if len(rows) == 0 {
				return nil
			}
			_, err := tx.NewInsert().Model(&rows).Exec(ctx)
			return err
		})
		if err != nil {
			return total, fmt.Errorf("import subject %q: %w", subject, err)
		}
		total += len(rows)
		i.logger.Info("imported subject", zap.String("subject", subject), zap.Int("questions", len(rows)))
	}
	return total, nil
}
