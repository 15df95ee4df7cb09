package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Миграции применяются по одной в собственной транзакции под advisory-lock,
// чтобы параллельный запуск нескольких экземпляров не гонял DDL наперегонки.

//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

const (
	migrationsDir    = "sql/migrations"
	advisoryLockKey  = int64(78063001)
	lockTimeout      = 5 * time.Second
	versionsTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

// migration — пара up/down скриптов одной версии схемы.
type migration struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

// MigrateUp применяет недостающие up-скрипты по возрастанию версии.
// steps=0 означает все доступные.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	plan, err := readMigrations(migrationsFS)
	if err != nil {
		return err
	}

	return s.withMigrationLock(ctx, func(conn *sql.Conn) error {
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}

		done := 0
		for _, m := range plan {
			if applied[m.Version] {
				continue
			}
			err := inMigrationTx(ctx, conn, m, m.Up, func(tx *sql.Tx) error {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO schema_migrations (version, name, applied_at)
					VALUES ($1, $2, NOW())`, m.Version, m.Name)
				return err
			})
			if err != nil {
				return err
			}
			done++
			if steps > 0 && done >= steps {
				break
			}
		}
		return nil
	})
}

// MigrateDown откатывает применённые версии по убыванию.
// steps<=0 трактуется как один шаг: случайный откат всей схемы хуже,
// чем лишний запуск команды.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}

	plan, err := readMigrations(migrationsFS)
	if err != nil {
		return err
	}
	byVersion := make(map[int64]migration, len(plan))
	for _, m := range plan {
		byVersion[m.Version] = m
	}

	return s.withMigrationLock(ctx, func(conn *sql.Conn) error {
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}

		versions := make([]int64, 0, len(applied))
		for v := range applied {
			versions = append(versions, v)
		}
		sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })
		if len(versions) > steps {
			versions = versions[:steps]
		}

		for _, v := range versions {
			m, ok := byVersion[v]
			if !ok {
				return fmt.Errorf("applied version %d has no down script in this build", v)
			}
			err := inMigrationTx(ctx, conn, m, m.Down, func(tx *sql.Tx) error {
				_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version)
				return err
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// MigrationStatus возвращает максимальную применённую версию и число
// применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	if s == nil || s.db == nil {
		return 0, 0, fmt.Errorf("postgres store is not initialized")
	}

	queryCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, versionsTableDDL); err != nil {
		return 0, 0, fmt.Errorf("ensure schema_migrations: %w", err)
	}

	var (
		version int64
		count   int
	)
	err := s.db.QueryRowContext(queryCtx,
		`SELECT COALESCE(MAX(version), 0), COUNT(*) FROM schema_migrations`,
	).Scan(&version, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("read migration status: %w", err)
	}
	return version, count, nil
}

// withMigrationLock выделяет соединение, берёт на нём advisory-lock и
// гарантирует таблицу версий перед запуском fn. Лок снимается на том же
// соединении даже при отменённом контексте.
func (s *Store) withMigrationLock(ctx context.Context, fn func(conn *sql.Conn) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection for migration: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, `SELECT pg_advisory_lock($1)`, advisoryLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, advisoryLockKey)
	}()

	if _, err := conn.ExecContext(ctx, versionsTableDDL); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return fn(conn)
}

// inMigrationTx выполняет скрипт миграции и обновление таблицы версий
// в одной транзакции.
func inMigrationTx(ctx context.Context, conn *sql.Conn, m migration, script string, record func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d_%s: %w", m.Version, m.Name, err)
	}

	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply migration %d_%s: %w", m.Version, m.Name, err)
	}
	if err := record(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %d_%s: %w", m.Version, m.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d_%s: %w", m.Version, m.Name, err)
	}
	return nil
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[int64]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied versions: %w", err)
	}
	return applied, nil
}

// readMigrations разбирает встроенные файлы вида NNNN_name.up.sql /
// NNNN_name.down.sql в упорядоченный план. Версия без обоих скриптов
// считается ошибкой сборки.
func readMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.Glob(fsys, path.Join(migrationsDir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("glob migrations: %w", err)
	}
	if len(entries) == 0 {
		return nil, errors.New("no embedded migrations")
	}

	drafts := make(map[int64]*migration)
	for _, entry := range entries {
		base := path.Base(entry)

		stem, ok := strings.CutSuffix(base, ".sql")
		if !ok {
			return nil, fmt.Errorf("unexpected migration file %s", base)
		}
		var up bool
		switch {
		case strings.HasSuffix(stem, ".up"):
			up = true
			stem = strings.TrimSuffix(stem, ".up")
		case strings.HasSuffix(stem, ".down"):
			stem = strings.TrimSuffix(stem, ".down")
		default:
			return nil, fmt.Errorf("migration %s lacks .up/.down marker", base)
		}

		numStr, name, ok := strings.Cut(stem, "_")
		if !ok || name == "" {
			return nil, fmt.Errorf("migration %s is not NNNN_name.(up|down).sql", base)
		}
		version, err := strconv.ParseInt(numStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %s has non-numeric version: %w", base, err)
		}

		raw, err := fs.ReadFile(fsys, entry)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", base, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration %s is empty", base)
		}

		d := drafts[version]
		if d == nil {
			d = &migration{Version: version, Name: name}
			drafts[version] = d
		} else if d.Name != name {
			return nil, fmt.Errorf("version %d used by both %q and %q", version, d.Name, name)
		}

		if up {
			if d.Up != "" {
				return nil, fmt.Errorf("duplicate up script for version %d", version)
			}
			d.Up = body
		} else {
			if d.Down != "" {
				return nil, fmt.Errorf("duplicate down script for version %d", version)
			}
			d.Down = body
		}
	}

	plan := make([]migration, 0, len(drafts))
	for _, d := range drafts {
		if d.Up == "" || d.Down == "" {
			return nil, fmt.Errorf("migration %d_%s needs both up and down scripts", d.Version, d.Name)
		}
		plan = append(plan, *d)
	}
	sort.Slice(plan, func(i, j int) bool { return plan[i].Version < plan[j].Version })
	return plan, nil
}
