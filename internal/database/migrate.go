package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"readly/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationsFS embed.FS

// Direction selects which migration files run.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// RunMigrations applies the embedded migrations for db's dialect. For Down,
// all reverts every migration; otherwise only the latest one is reverted.
func RunMigrations(ctx context.Context, db *sqlx.DB, dir Direction, all bool) error {
	if db.DriverName() == "pgx" {
		return runGolangMigrate(db, dir, all)
	}
	return runStatementMigrations(ctx, db, migrationsFS, "migrations/oracle", dir, all)
}

func runGolangMigrate(db *sqlx.DB, dir Direction, all bool) error {
	src, err := iofs.New(migrationsFS, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("could not open migration source: %w", err)
	}
	driver, err := pgxmigrate.WithInstance(db.DB, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("could not create migrator: %w", err)
	}

	switch {
	case dir == Up:
		err = m.Up()
	case all:
		err = m.Down()
	default:
		err = m.Steps(-1)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration %s failed: %w", dir, err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("could not read migration version: %w", verr)
	}
	logger.Get().Info("Migrations completed", zap.String("direction", string(dir)),
		zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// runStatementMigrations executes each *.up.sql (or *.down.sql, newest
// first) file under root, one statement at a time.
func runStatementMigrations(ctx context.Context, db *sqlx.DB, fsys fs.FS, root string, dir Direction, all bool) error {
	files, err := migrationFiles(fsys, root, dir)
	if err != nil {
		return err
	}
	if dir == Down && !all && len(files) > 1 {
		files = files[:1]
	}

	for _, name := range files {
		content, err := fs.ReadFile(fsys, path.Join(root, name))
		if err != nil {
			return fmt.Errorf("could not read migration file %s: %w", name, err)
		}
		for _, stmt := range SplitStatements(string(content)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				if dir == Up && isAlreadyExists(err) {
					logger.Get().Info("Skipping existing object", zap.String("file", name), zap.Error(err))
					continue
				}
				return fmt.Errorf("could not execute migration %s: %w", name, err)
			}
		}
		logger.Get().Info("Executed migration", zap.String("file", name))
	}

	logger.Get().Info("Migrations completed successfully", zap.String("direction", string(dir)), zap.Int("files", len(files)))
	return nil
}

func migrationFiles(fsys fs.FS, root string, dir Direction) ([]string, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("could not read migrations directory: %w", err)
	}
	suffix := "." + string(dir) + ".sql"
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	if dir == Down {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}
	return files, nil
}

// SplitStatements splits a SQL script on semicolons that end a line. Oracle
// drivers reject a trailing semicolon, so none is kept.
func SplitStatements(script string) []string {
	var stmts []string
	var current strings.Builder
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		if strings.HasSuffix(trimmed, ";") {
			current.WriteString(strings.TrimSuffix(trimmed, ";"))
			stmts = append(stmts, current.String())
			current.Reset()
			continue
		}
		current.WriteString(trimmed)
		current.WriteString("\n")
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		stmts = append(stmts, rest)
	}
	return stmts
}

// isAlreadyExists matches ORA-00955 (name is already used by an existing object).
func isAlreadyExists(err error) bool {
	return strings.Contains(err.Error(), "ORA-00955")
}
