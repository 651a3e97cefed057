package helper

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	_ "github.com/lib/pq"
)

// DatabaseConfiguration holds the PostgreSQL connection settings
type DatabaseConfiguration struct {
	Host         string
	Port         string
	Database     string
	Username     string
	Password     string
	Schema       string
	SSLMode      string
	EmbeddingDim int
}

// NewDatabaseConfiguration reads the database configuration from the environment
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	config := &DatabaseConfiguration{
		Host:         GetEnvString("DB_HOST", ""),
		Port:         GetEnvString("DB_PORT", "5432"),
		Database:     GetEnvString("DB_DATABASE", ""),
		Username:     GetEnvString("DB_USERNAME", ""),
		Password:     GetEnvString("DB_PASSWORD", ""),
		Schema:       GetEnvString("DB_SCHEMA", "public"),
		SSLMode:      GetEnvString("DB_SSLMODE", "disable"),
		EmbeddingDim: GetEnvInt("DB_EMBEDDING_DIM", 4096),
	}

	if config.Host == "" || config.Database == "" || config.Username == "" {
		return nil, NewError("database configuration", fmt.Errorf("DB_HOST, DB_DATABASE and DB_USERNAME must be set"))
	}
	if config.EmbeddingDim <= 0 {
		return nil, NewError("database configuration", fmt.Errorf("embedding dimension must be > 0, got %d", config.EmbeddingDim))
	}

	return config, nil
}

// DatabaseEnabled reports whether a database host is configured in the environment
func DatabaseEnabled() bool {
	return GetEnvString("DB_HOST", "") != ""
}

// ConnectionString builds the lib/pq connection URL
func (c *DatabaseConfiguration) ConnectionString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   fmt.Sprintf("%s:%s", c.Host, c.Port),
		Path:   c.Database,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	if c.Schema != "" {
		q.Set("search_path", c.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Database bundles the connection pool with its logger
type Database struct {
	Name     string
	Instance *sql.DB
	Logger   *slog.Logger
}

// NewDatabase opens and pings a PostgreSQL connection.
// The ping is retried a few times while the server starts up.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) (*Database, error) {
	if config == nil {
		return nil, NewError("database configuration validation", fmt.Errorf("database configuration is nil"))
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, NewError("open database", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			break
		}
		if attempt == 5 {
			_ = db.Close()
			return nil, NewError("ping database", err)
		}
		logger.Warn("Database not ready, retrying", slog.Int("attempt", attempt), slog.String("error", err.Error()))
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}

	logger.Info("Connected to database", slog.String("name", name), slog.String("host", config.Host), slog.String("database", config.Database))

	return &Database{
		Name:     name,
		Instance: db,
		Logger:   logger,
	}, nil
}

// Close closes the connection pool
func (d *Database) Close() error {
	if d == nil || d.Instance == nil {
		return nil
	}
	return d.Instance.Close()
}
