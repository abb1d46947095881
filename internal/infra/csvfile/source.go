// Package csvfile reads subjects from a directory of CSV files. Each file is
// one subject named after its path relative to the directory, without the
// extension, e.g. "science/physics". Files carry the header
// Question, Option A, Option B, Option C, Option D, Answer.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"quiz-poll-bot/internal/domain"
)

var columns = []string{"Question", "Option A", "Option B", "Option C", "Option D", "Answer"}

// Source implements app.QuestionSource over a directory tree.
type Source struct {
	dir    string
	logger *zap.Logger
}

func NewSource(dir string, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{dir: dir, logger: logger}
}

// ListSubjects walks the directory and returns the sorted subject names.
// A missing directory is created so operators can drop files in later.
func (s *Source) ListSubjects(ctx context.Context) ([]string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create quiz dir: %w", err)
	}
	var subjects []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		subjects = append(subjects, filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel))))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk quiz dir: %w", err)
	}
	sort.Strings(subjects)
	return subjects, nil
}

// LoadQuestions parses the subject's file. An unknown subject yields no questions.
func (s *Source) LoadQuestions(_ context.Context, subject string) ([]domain.Question, error) {
	path, err := s.path(subject)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open subject %q: %w", subject, err)
	}
	defer f.Close()

	questions, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse subject %q: %w", subject, err)
	}
	s.logger.Debug("loaded subject", zap.String("subject", subject), zap.Int("questions", len(questions)))
	return questions, nil
}

func (s *Source) path(subject string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(subject))
	if subject == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", domain.ErrSubjectNotFound, subject)
	}
	return filepath.Join(s.dir, clean+".csv"), nil
}

// Parse reads question rows from CSV. Columns are matched by header name;
// an answer letter outside A-D falls back to option A.
func Parse(r io.Reader) ([]domain.Question, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var questions []domain.Question
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		q := domain.Question{
			Prompt:        field(row, columns[0]),
			CorrectOption: answerIndex(field(row, columns[5])),
		}
		for i := 0; i < domain.OptionCount; i++ {
			q.Options[i] = field(row, columns[i+1])
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func answerIndex(letter string) int {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if len(letter) == 1 && letter[0] >= 'A' && letter[0] <= 'D' {
		return int(letter[0] - 'A')
	}
	return 0
}
