package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"quiz-poll-bot/internal/app"
	"quiz-poll-bot/internal/domain"
	"quiz-poll-bot/internal/infra/memory"
	"quiz-poll-bot/internal/infra/postgres"
	infraredis "quiz-poll-bot/internal/infra/redis"
)

const chatID int64 = -4004

type recordingSender struct {
	mu    sync.Mutex
	polls []domain.PollDescriptor
}

func (s *recordingSender) SendPoll(_ context.Context, _ int64, poll domain.PollDescriptor) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls = append(s.polls, poll)
	return fmt.Sprintf("tg-%d", len(s.polls)), nil
}

type nopNotifier struct{}

func (nopNotifier) SessionStarted(context.Context, domain.SessionReport)  {}
func (nopNotifier) SessionFinished(context.Context, domain.SessionReport) {}

func TestSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestions(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	source := infraredis.NewQuestionCache(redisClient, postgres.NewSource(pool), 5*time.Minute, nil)
	guard := infraredis.NewSessionGuard(redisClient, 5*time.Minute, nil)
	engine := app.NewEngine(app.WithDefaultSettings(domain.ChatSettings{NegativeMarking: true}))
	sender := &recordingSender{}
	orch := app.NewOrchestrator(engine, source, sender, nopNotifier{}, guard, app.OrchestratorConfig{})

	subjects, err := orch.Subjects(ctx)
	if err != nil {
		t.Fatalf("subjects: %v", err)
	}
	if strings.Join(subjects, ",") != "math,physics" {
		t.Fatalf("unexpected subjects %v", subjects)
	}

	report, err := orch.RunSubject(ctx, chatID, "math")
	if err != nil {
		t.Fatalf("run subject: %v", err)
	}
	if report.Dispatched != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if sender.polls[1].CorrectOption != 2 {
		t.Fatalf("expected second question answer C, got %d", sender.polls[1].CorrectOption)
	}

	engine.RecordAnswer(domain.AnswerEvent{PollID: "tg-1", ParticipantID: 1, DisplayName: "Alice", OptionIDs: []int{1}})
	engine.RecordAnswer(domain.AnswerEvent{PollID: "tg-2", ParticipantID: 1, DisplayName: "Alice", OptionIDs: []int{0}})
	engine.RecordAnswer(domain.AnswerEvent{PollID: "tg-1", ParticipantID: 2, DisplayName: "Bob", OptionIDs: []int{1}})
	engine.RecordAnswer(domain.AnswerEvent{PollID: "tg-2", ParticipantID: 2, DisplayName: "Bob", OptionIDs: []int{2}})

	rows := engine.SubjectSummary("math", chatID)
	if len(rows) != 2 || rows[0].Name != "Bob" || rows[0].Score != 2 || rows[1].Score != 0.75 {
		t.Fatalf("expected bob leading, got %+v", rows)
	}

	// The guard is released once the session returns.
	token, acquired, err := guard.Acquire(ctx, chatID)
	if err != nil || !acquired {
		t.Fatalf("expected guard free after session, acquired=%v err=%v", acquired, err)
	}
	guard.Release(ctx, chatID, token)
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

// seedQuestions migrates the schema and imports two subjects through the bun importer.
func seedQuestions(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	db := postgres.OpenBun(dsn)
	defer db.Close()

	if _, err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	n, err := postgres.NewImporter(db, nil).Import(ctx, memory.NewStaticSource(sampleSubjects()))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 imported questions, got %d", n)
	}
}

func sampleSubjects() map[string][]domain.Question {
	return map[string][]domain.Question{
		"math": {
			{Prompt: "What is 2 + 2?", Options: [domain.OptionCount]string{"3", "4", "5", "6"}, CorrectOption: 1},
			{Prompt: "What is 3 * 3?", Options: [domain.OptionCount]string{"6", "8", "9", "12"}, CorrectOption: 2},
		},
		"physics": {
			{Prompt: "Unit of force?", Options: [domain.OptionCount]string{"Newton", "Joule", "Watt", "Pascal"}, CorrectOption: 0},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
