// Package catalog provides a SQLite-backed catalog of radar and satellite
// subjects.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/i474232898/weather-imagery/internal/imagery"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists the subject catalog in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite catalog and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: catalog path is required", imagery.ErrConfiguration)
	}
	dsn := "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// RadarSubjects lists known radars ordered by id.
func (s *Store) RadarSubjects(ctx context.Context) ([]imagery.Subject, error) {
	return s.list(ctx, imagery.KindRadar)
}

// SatelliteSubjects lists known satellite products ordered by id.
func (s *Store) SatelliteSubjects(ctx context.Context) ([]imagery.Subject, error) {
	return s.list(ctx, imagery.KindSatellite)
}

// Lookup returns one subject. Unknown ids match imagery.ErrUnknownSubject.
func (s *Store) Lookup(ctx context.Context, kind imagery.Kind, id string) (imagery.Subject, error) {
	table, column := tableFor(kind)
	var name string
	err := s.sqlDB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT name FROM %s WHERE %s = ?`, table, column), id,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return imagery.Subject{}, fmt.Errorf("%w: %s %s", imagery.ErrUnknownSubject, kind, id)
	}
	if err != nil {
		return imagery.Subject{}, fmt.Errorf("lookup %s %s: %w", kind, id, err)
	}
	return imagery.Subject{ID: id, Name: name, Kind: kind}, nil
}

// Seed upserts subjects of kind from an id to name map, in id order. Existing
// ids are renamed.
func (s *Store) Seed(ctx context.Context, kind imagery.Kind, subjects map[string]string) error {
	ids := make([]string, 0, len(subjects))
	for id := range subjects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := s.upsert(ctx, imagery.Subject{ID: id, Name: subjects[id], Kind: kind}); err != nil {
			return err
		}
	}
	return nil
}

// upsert inserts or renames a subject.
func (s *Store) upsert(ctx context.Context, subject imagery.Subject) error {
	id := strings.TrimSpace(subject.ID)
	name := strings.TrimSpace(subject.Name)
	if id == "" || name == "" {
		return fmt.Errorf("subject id and name are required")
	}
	table, column := tableFor(subject.Kind)
	_, err := s.sqlDB.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %[1]s (%[2]s, name) VALUES (?, ?)
		 ON CONFLICT(%[2]s) DO UPDATE SET name = excluded.name`, table, column),
		id, name,
	)
	if err != nil {
		return fmt.Errorf("upsert %s %s: %w", subject.Kind, id, err)
	}
	return nil
}

func (s *Store) list(ctx context.Context, kind imagery.Kind) ([]imagery.Subject, error) {
	table, column := tableFor(kind)
	rows, err := s.sqlDB.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s, name FROM %s ORDER BY %s`, column, table, column),
	)
	if err != nil {
		return nil, fmt.Errorf("list %s subjects: %w", kind, err)
	}
	defer rows.Close()

	var subjects []imagery.Subject
	for rows.Next() {
		sub := imagery.Subject{Kind: kind}
		if err := rows.Scan(&sub.ID, &sub.Name); err != nil {
			return nil, fmt.Errorf("scan %s subject: %w", kind, err)
		}
		subjects = append(subjects, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s subjects: %w", kind, err)
	}
	return subjects, nil
}

func tableFor(kind imagery.Kind) (table, column string) {
	if kind == imagery.KindSatellite {
		return "satellites", "bom_satellite_id"
	}
	return "locations", "bom_radar_id"
}

// applyMigrations executes each embedded migration at most once.
func applyMigrations(sqlDB *sql.DB) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var count int
		if err := sqlDB.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, file).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if count > 0 {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, file, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}
