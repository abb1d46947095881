package memory

import (
	"context"
	"sort"

	"quiz-poll-bot/internal/domain"
)

// StaticSource is a question source backed by an in-memory map (useful for tests/demos).
type StaticSource struct {
	subjects map[string][]domain.Question
}

func NewStaticSource(subjects map[string][]domain.Question) *StaticSource {
	return &StaticSource{subjects: subjects}
}

func (s *StaticSource) ListSubjects(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(s.subjects))
	for name := range s.subjects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *StaticSource) LoadQuestions(_ context.Context, subject string) ([]domain.Question, error) {
	return s.subjects[subject], nil
}
