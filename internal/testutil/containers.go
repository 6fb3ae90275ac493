package testutil

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloo-solutions/askdoc/internal/database"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgvectorImage = "pgvector/pgvector:0.8.1-pg18"
	rustfsImage   = "rustfs/rustfs:latest"

	pgCredential = "askdoc"

	// RustFSAccessKey and RustFSSecretKey are the credentials the archive
	// container is started with.
	RustFSAccessKey = "rustfsadmin"
	RustFSSecretKey = "rustfsadmin"
)

// appTables lists the tables TruncateAll empties.
var appTables = []string{"document_chunks"}

type started struct {
	container testcontainers.Container
	host      string
	port      string
}

func start(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest, port nat.Port) started {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("%s host: %v", req.Image, err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("%s port %s: %v", req.Image, port, err)
	}

	return started{container: container, host: host, port: mapped.Port()}
}

// PostgresContainer is a throwaway pgvector database.
type PostgresContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

// NewPostgresContainer starts pgvector and waits until it accepts connections.
func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	s := start(ctx, t, testcontainers.ContainerRequest{
		Image:        pgvectorImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgCredential,
			"POSTGRES_PASSWORD": pgCredential,
			"POSTGRES_DB":       pgCredential,
		},
		// postgres logs readiness once for the init server and once for the real one
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(60 * time.Second),
	}, "5432")

	return &PostgresContainer{Container: s.container, Host: s.host, Port: s.port}
}

// ConnectionString returns a DSN for the container database.
func (pc *PostgresContainer) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(pgCredential, pgCredential),
		Host:     pc.Host + ":" + pc.Port,
		Path:     "/" + pgCredential,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func (pc *PostgresContainer) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(pc.Container)
}

// RustFSContainer is a throwaway S3-compatible archive.
type RustFSContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

// NewRustFSContainer starts RustFS with RustFSAccessKey/RustFSSecretKey.
func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	s := start(ctx, t, testcontainers.ContainerRequest{
		Image:        rustfsImage,
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": RustFSAccessKey,
			"RUSTFS_SECRET_KEY": RustFSSecretKey,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}, "9000")

	return &RustFSContainer{Container: s.container, Host: s.host, Port: s.port}
}

// Endpoint returns the S3 endpoint URL.
func (rc *RustFSContainer) Endpoint() string {
	return "http://" + rc.Host + ":" + rc.Port
}

func (rc *RustFSContainer) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(rc.Container)
}

// NewTestPool migrates the container database with the migrations in
// migrationsDir and returns a pool connected to it.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer, migrationsDir string) *pgxpool.Pool {
	t.Helper()

	dsn := pc.ConnectionString()
	var (
		pool *pgxpool.Pool
		err  error
	)
	// the port can be open a moment before postgres accepts sessions
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = database.NewPool(ctx, database.Config{URL: dsn, MaxConns: 4})
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}

	if err := RunMigrations(dsn, migrationsDir); err != nil {
		pool.Close()
		t.Fatalf("migrate test database: %v", err)
	}
	return pool
}

// RunMigrations applies the up migrations in dir through golang-migrate,
// the same path askdocd serve takes.
func RunMigrations(databaseURL, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve migrations dir: %w", err)
	}
	if _, err := database.Migrate(databaseURL, "file://"+filepath.ToSlash(abs), nil); err != nil {
		return err
	}
	return nil
}

// TruncateAll empties every application table.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range appTables {
		if _, err := pool.Exec(ctx, "TRUNCATE TABLE "+table); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}
