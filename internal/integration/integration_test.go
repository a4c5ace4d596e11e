package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"answerlab/internal/app"
	"answerlab/internal/domain"
	pgslot "answerlab/internal/infra/postgres"
	pgmigrations "answerlab/internal/infra/postgres/migrations"
	redisslot "answerlab/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestSheetsSurvivePostgresRestart(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	exerciseRestart(t, ctx, pgslot.NewKeyValueStore(pool))
}

func TestSheetsSurviveRedisRestart(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	client, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer client.Close()

	exerciseRestart(t, ctx, redisslot.NewKeyValueStore(client, "answerlab:", time.Hour))
}

// exerciseRestart fills a sheet through one store and reads it back and
// scores it through a second store on the same slot.
func exerciseRestart(t *testing.T, ctx context.Context, kv app.KeyValueStore) {
	t.Helper()
	store := app.NewSheetStore(ctx, kv)
	sheet, err := store.Create(ctx, domain.SheetPayload{Name: "Midterm", QuestionCount: 3, ChoiceCount: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i, key := range []int{1, 2, 3} {
		store.SetAnswer(ctx, sheet.ID, i, domain.RoleKey, domain.Choice(key))
	}
	store.SetAnswer(ctx, sheet.ID, 0, domain.RoleUser, domain.Choice(1))
	store.SetAnswer(ctx, sheet.ID, 1, domain.RoleUser, domain.Choice(4))

	reloaded := app.NewSheetStore(ctx, kv)
	got, ok := reloaded.Get(sheet.ID)
	if !ok {
		t.Fatalf("expected sheet %s after reload", sheet.ID)
	}
	if got.Name != "Midterm" || len(got.Answers) != 3 {
		t.Fatalf("unexpected reloaded sheet %+v", got)
	}

	summary, err := app.Evaluate(got)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	want := domain.ResultSummary{Correct: 1, Incorrect: 1, NoAnswer: 1, Total: 3}
	if summary != want {
		t.Fatalf("expected %+v, got %+v", want, summary)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "answerlab", "POSTGRES_PASSWORD": "answerlab", "POSTGRES_DB": "answerlab"},
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
	dsn := fmt.Sprintf("postgres://answerlab:answerlab@%s:%s/answerlab?sslmode=disable", host, port.Port())
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

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
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
