package db

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DB wraps the catalog database connection
type DB struct {
	*sqlx.DB
	log logrus.FieldLogger
}

// New opens and pings a Postgres connection from the provided connection string
func New(connectionString string, log logrus.FieldLogger) (*DB, error) {
	if connectionString == "" {
		return nil, errors.New("database connection string is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	sqlDB, err := sqlx.Open("postgres", connectionString)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := sqlDB.Ping(); err != nil {
		// Local Postgres usually runs without TLS; retry once when sslmode was not given.
		if !strings.Contains(strings.ToLower(connectionString), "sslmode") {
			log.Warn("retrying database connection with SSL disabled")
			sqlDB.Close()
			sqlDB, err = sqlx.Open("postgres", withSSLDisabled(connectionString))
			if err != nil {
				return nil, errors.Wrap(err, "failed to open database")
			}
		}
		if err := sqlDB.Ping(); err != nil {
			sqlDB.Close()
			return nil, errors.Wrap(err, "failed to ping database")
		}
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return Wrap(sqlDB, log), nil
}

// Wrap adopts an existing connection, e.g. one backed by sqlmock in tests.
func Wrap(conn *sqlx.DB, log logrus.FieldLogger) *DB {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &DB{DB: conn, log: log}
}

func withSSLDisabled(connectionString string) string {
	if strings.Contains(connectionString, "?") {
		return connectionString + "&sslmode=disable"
	}
	return connectionString + "?sslmode=disable"
}

// HealthCheck verifies the database connection is healthy
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// RunMigrations executes all SQL migration files in migrationsDir that have not been applied yet
func (db *DB) RunMigrations(ctx context.Context, migrationsDir string) error {
	migrations, err := readMigrations(migrationsDir)
	if err != nil {
		return errors.Wrap(err, "failed to read migrations")
	}

	if len(migrations) == 0 {
		db.log.Info("no migrations found")
		return nil
	}

	if err := db.createMigrationTable(ctx); err != nil {
		return errors.Wrap(err, "failed to create migration table")
	}

	for _, m := range migrations {
		applied, err := db.isMigrationApplied(ctx, m.Number)
		if err != nil {
			return errors.Wrap(err, "failed to check migration status")
		}
		if applied {
			db.log.WithField("migration", m.Number).Debug("migration already applied, skipping")
			continue
		}

		db.log.WithFields(logrus.Fields{"migration": m.Number, "name": m.Name}).Info("applying migration")
		if err := db.apply(ctx, m); err != nil {
			return err
		}
	}

	return nil
}

func (db *DB) apply(ctx context.Context, m Migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "failed to execute migration %d", m.Number)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
		m.Number,
		m.Name,
	); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to record migration")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit migration")
	}
	return nil
}

// Migration represents a single migration file
type Migration struct {
	Number int
	Name   string
	SQL    string
}

// readMigrations reads NNN_name.sql files from dir, ordered by number
func readMigrations(dir string) ([]Migration, error) {
	var migrations []Migration

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}

		filename := d.Name()
		prefix, rest, ok := strings.Cut(filename, "_")
		if !ok {
			return nil
		}
		number, err := strconv.Atoi(prefix)
		if err != nil {
			return nil
		}

		sqlBytes, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read migration file %s", filename)
		}

		migrations = append(migrations, Migration{
			Number: number,
			Name:   strings.TrimSuffix(rest, ".sql"),
			SQL:    string(sqlBytes),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Number < migrations[j].Number
	})
	return migrations, nil
}

func (db *DB) createMigrationTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT NOW()
		)
	`)
	return err
}

func (db *DB) isMigrationApplied(ctx context.Context, number int) (bool, error) {
	var count int
	err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM schema_migrations WHERE version = $1", number)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
