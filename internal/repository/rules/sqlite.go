package rules

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"

	"github.com/oshokin/gentle-alert/internal/domain/alert"
	"github.com/oshokin/gentle-alert/internal/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeLayout is how instants are stored in TEXT columns.
const timeLayout = time.RFC3339Nano

// SQLiteRepository persists rules in an SQLite database.
type SQLiteRepository struct {
	// db is the open database handle.
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates it
// to the latest schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open rules database: %w", err)
	}

	// SQLite allows a single writer; one connection avoids busy errors.
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping rules database: %w", err)
	}

	if err = migrateUp(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

func migrateUp(ctx context.Context, db *sql.DB) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("prepare migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}

	// m.Close would close db as well, so only the source is released.
	defer source.Close()

	err = m.Up()

	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.DebugKV(ctx, "Rules database is up to date")
	case err != nil:
		return fmt.Errorf("run migrations: %w", err)
	default:
		version, _, _ := m.Version()
		logger.InfoKV(ctx, "Rules database migrated", "version", version)
	}

	return nil
}

// Close releases the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Load reads every rule ordered by creation time.
func (r *SQLiteRepository) Load(ctx context.Context) ([]*alert.Rule, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, label, schedule, appearance, enabled, created_at, last_fired_at, armed_at
        FROM rules
        ORDER BY created_at ASC, id ASC
    `)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}

	defer rows.Close()

	var result []*alert.Rule

	for rows.Next() {
		rule, scanErr := scanRule(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		result = append(result, rule)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}

	return result, nil
}

// Save replaces the stored rule set in one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, rules []*alert.Rule) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM rules`); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO rules (id, label, kind, schedule, appearance, enabled, created_at, last_fired_at, armed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}

	defer stmt.Close()

	for _, rule := range rules {
		args, argsErr := ruleArgs(rule)
		if argsErr != nil {
			return argsErr
		}

		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert rule %s: %w", rule.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit rules: %w", err)
	}

	return nil
}

func ruleArgs(rule *alert.Rule) ([]any, error) {
	schedule, err := json.Marshal(rule.Schedule)
	if err != nil {
		return nil, fmt.Errorf("encode schedule of %s: %w", rule.ID, err)
	}

	appearance, err := json.Marshal(rule.Appearance)
	if err != nil {
		return nil, fmt.Errorf("encode appearance of %s: %w", rule.ID, err)
	}

	return []any{
		rule.ID,
		rule.Label,
		string(rule.Schedule.Kind),
		string(schedule),
		string(appearance),
		rule.Enabled,
		rule.CreatedAt.Format(timeLayout),
		nullTime(rule.LastFiredAt),
		nullTime(rule.ArmedAt),
	}, nil
}

func nullTime(at *time.Time) sql.NullString {
	if at == nil {
		return sql.NullString{}
	}

	return sql.NullString{String: at.Format(timeLayout), Valid: true}
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil //nolint:nilnil // NULL column.
	}

	at, err := time.Parse(timeLayout, value.String)
	if err != nil {
		return nil, err
	}

	return &at, nil
}

func scanRule(rows *sql.Rows) (*alert.Rule, error) {
	var (
		rule       alert.Rule
		schedule   string
		appearance string
		createdAt  string
		lastFired  sql.NullString
		armed      sql.NullString
	)

	err := rows.Scan(&rule.ID, &rule.Label, &schedule, &appearance, &rule.Enabled, &createdAt, &lastFired, &armed)
	if err != nil {
		return nil, fmt.Errorf("scan rule: %w", err)
	}

	if err = json.Unmarshal([]byte(schedule), &rule.Schedule); err != nil {
		return nil, fmt.Errorf("decode schedule of %s: %w", rule.ID, err)
	}

	if err = json.Unmarshal([]byte(appearance), &rule.Appearance); err != nil {
		return nil, fmt.Errorf("decode appearance of %s: %w", rule.ID, err)
	}

	if rule.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("decode created_at of %s: %w", rule.ID, err)
	}

	if rule.LastFiredAt, err = parseNullTime(lastFired); err != nil {
		return nil, fmt.Errorf("decode last_fired_at of %s: %w", rule.ID, err)
	}

	if rule.ArmedAt, err = parseNullTime(armed); err != nil {
		return nil, fmt.Errorf("decode armed_at of %s: %w", rule.ID, err)
	}

	return &rule, nil
}
