package flagstore

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cgk-platform/cgk-sub021/pkg/feature"
	"github.com/cgk-platform/cgk-sub021/pkg/pg"
)

// Migrations holds the goose migrations for the PostgreSQL store.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations that holds the SQL files.
const MigrationsDir = "migrations"

const (
	selectFlagSQL = `SELECT definition, version, created_at, updated_at FROM feature_flags WHERE key = $1`
	selectAllSQL  = `SELECT definition, version, created_at, updated_at FROM feature_flags ORDER BY key`
	selectTagsSQL = `SELECT definition, version, created_at, updated_at FROM feature_flags
		WHERE definition -> 'tags' ?| $1 ORDER BY key`
	selectOverridesSQL = `SELECT flag_key, scope, scope_id, value, expires_at FROM flag_overrides
		WHERE flag_key = ANY($1) AND (expires_at IS NULL OR expires_at > $2)`
	insertFlagSQL = `INSERT INTO feature_flags (key, definition, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	lockFlagSQL = `SELECT definition, version, created_at, updated_at FROM feature_flags WHERE key = $1 FOR UPDATE`
	updateFlagSQL = `UPDATE feature_flags SET definition = $2, version = $3, updated_at = $4 WHERE key = $1`
	setEnabledSQL = `UPDATE feature_flags
		SET definition = jsonb_set(definition, '{enabled}', to_jsonb($2::boolean)), version = version + 1, updated_at = $3
		WHERE key = $1`
	archiveSQL = `UPDATE feature_flags
		SET definition = jsonb_set(definition, '{archived}', 'true'::jsonb), version = version + 1, updated_at = $2
		WHERE key = $1`
	deleteFlagSQL     = `DELETE FROM feature_flags WHERE key = $1`
	upsertOverrideSQL = `INSERT INTO flag_overrides (flag_key, scope, scope_id, value, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (flag_key, scope, scope_id) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`
	touchFlagSQL       = `UPDATE feature_flags SET version = version + 1, updated_at = $2 WHERE key = $1`
	deleteOverrideSQL  = `DELETE FROM flag_overrides WHERE flag_key = $1 AND scope = $2 AND scope_id = $3`
)

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// PostgresStore keeps flag definitions as JSONB documents and overrides in
// their own table so they can be written without touching the definition.
type PostgresStore struct {
	db    DB
	clock clock.Clock
}

// NewPostgresStore creates a store on top of db. A nil clk means wall time.
func NewPostgresStore(db DB, clk clock.Clock) *PostgresStore {
	if clk == nil {
		clk = clock.New()
	}
	return &PostgresStore{db: db, clock: clk}
}

// Fetch returns one flag with its active overrides merged in.
func (s *PostgresStore) Fetch(ctx context.Context, key string) (*feature.Flag, error) {
	flag, err := scanFlag(s.db.QueryRow(ctx, selectFlagSQL, key))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, feature.ErrFlagNotFound
		}
		return nil, fmt.Errorf("flagstore: fetch %q: %w", key, err)
	}

	if err := s.mergeOverrides(ctx, flag); err != nil {
		return nil, err
	}
	return flag, nil
}

// FetchAll returns every flag ordered by key.
func (s *PostgresStore) FetchAll(ctx context.Context) ([]*feature.Flag, error) {
	return s.List(ctx)
}

// List returns all flags, optionally filtered by tags, ordered by key.
func (s *PostgresStore) List(ctx context.Context, tags ...string) ([]*feature.Flag, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(tags) > 0 {
		rows, err = s.db.Query(ctx, selectTagsSQL, tags)
	} else {
		rows, err = s.db.Query(ctx, selectAllSQL)
	}
	if err != nil {
		return nil, fmt.Errorf("flagstore: list: %w", err)
	}

	flags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*feature.Flag, error) {
		return scanFlag(row)
	})
	if err != nil {
		return nil, fmt.Errorf("flagstore: list: %w", err)
	}

	if err := s.mergeOverrides(ctx, flags...); err != nil {
		return nil, err
	}
	return flags, nil
}

// Create inserts a new flag.
func (s *PostgresStore) Create(ctx context.Context, flag *feature.Flag) error {
	f, err := prepareCreate(flag, s.clock.Now())
	if err != nil {
		return err
	}

	def, err := encodeDefinition(f)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("flagstore: create %q: %w", f.Key, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, insertFlagSQL, f.Key, def, f.Version, f.CreatedAt, f.UpdatedAt); err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrFlagExists
		}
		return fmt.Errorf("flagstore: create %q: %w", f.Key, err)
	}
	if err := insertOverrides(ctx, tx, f); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Update replaces a flag definition. Overrides on the incoming flag are ignored;
// use SetOverride and DeleteOverride for those.
func (s *PostgresStore) Update(ctx context.Context, flag *feature.Flag) error {
	if flag == nil {
		return errors.Join(feature.ErrInvalidFlag, errors.New("flag cannot be nil"))
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("flagstore: update %q: %w", flag.Key, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing, err := scanFlag(tx.QueryRow(ctx, lockFlagSQL, flag.Key))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return feature.ErrFlagNotFound
		}
		return fmt.Errorf("flagstore: update %q: %w", flag.Key, err)
	}

	f, err := prepareUpdate(existing, flag, s.clock.Now())
	if err != nil {
		return err
	}
	def, err := encodeDefinition(f)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, updateFlagSQL, f.Key, def, f.Version, f.UpdatedAt); err != nil {
		return fmt.Errorf("flagstore: update %q: %w", f.Key, err)
	}

	return tx.Commit(ctx)
}

// Delete removes a flag; its overrides go with it.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	return s.execOne(ctx, "delete", key, deleteFlagSQL, key)
}

// SetEnabled flips the global enabled switch.
func (s *PostgresStore) SetEnabled(ctx context.Context, key string, enabled bool) error {
	return s.execOne(ctx, "set enabled", key, setEnabledSQL, key, enabled, s.clock.Now())
}

// Archive archives a flag.
func (s *PostgresStore) Archive(ctx context.Context, key string) error {
	return s.execOne(ctx, "archive", key, archiveSQL, key, s.clock.Now())
}

// SetOverride creates or replaces an override and bumps the flag version.
func (s *PostgresStore) SetOverride(ctx context.Context, o feature.Override) error {
	if err := validateOverride(o); err != nil {
		return err
	}
	value, err := json.Marshal(o.Value)
	if err != nil {
		return errors.Join(ErrInvalidOverride, err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("flagstore: set override %q: %w", o.FlagKey, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, upsertOverrideSQL, o.FlagKey, string(o.Scope), o.ScopeID, value, o.ExpiresAt); err != nil {
		if pg.IsForeignKeyViolationError(err) {
			return feature.ErrFlagNotFound
		}
		return fmt.Errorf("flagstore: set override %q: %w", o.FlagKey, err)
	}
	if _, err := tx.Exec(ctx, touchFlagSQL, o.FlagKey, s.clock.Now()); err != nil {
		return fmt.Errorf("flagstore: set override %q: %w", o.FlagKey, err)
	}

	return tx.Commit(ctx)
}

// DeleteOverride removes an override and bumps the flag version.
func (s *PostgresStore) DeleteOverride(ctx context.Context, key string, scope feature.Scope, scopeID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("flagstore: delete override %q: %w", key, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, deleteOverrideSQL, key, string(scope), scopeID)
	if err != nil {
		return fmt.Errorf("flagstore: delete override %q: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOverrideNotFound
	}
	if _, err := tx.Exec(ctx, touchFlagSQL, key, s.clock.Now()); err != nil {
		return fmt.Errorf("flagstore: delete override %q: %w", key, err)
	}

	return tx.Commit(ctx)
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error {
	return nil
}

func (s *PostgresStore) execOne(ctx context.Context, op, key, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("flagstore: %s %q: %w", op, key, err)
	}
	if tag.RowsAffected() == 0 {
		return feature.ErrFlagNotFound
	}
	return nil
}

func (s *PostgresStore) mergeOverrides(ctx context.Context, flags ...*feature.Flag) error {
	if len(flags) == 0 {
		return nil
	}

	byKey := make(map[string]*feature.Flag, len(flags))
	keys := make([]string, 0, len(flags))
	for _, f := range flags {
		byKey[f.Key] = f
		keys = append(keys, f.Key)
	}

	rows, err := s.db.Query(ctx, selectOverridesSQL, keys, s.clock.Now())
	if err != nil {
		return fmt.Errorf("flagstore: load overrides: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o     feature.Override
			scope string
			value []byte
		)
		if err := rows.Scan(&o.FlagKey, &scope, &o.ScopeID, &value, &o.ExpiresAt); err != nil {
			return fmt.Errorf("flagstore: scan override: %w", err)
		}
		o.Scope = feature.Scope(scope)
		if err := json.Unmarshal(value, &o.Value); err != nil {
			return fmt.Errorf("flagstore: decode override value: %w", err)
		}
		if f, ok := byKey[o.FlagKey]; ok {
			applyOverride(f, o)
		}
	}

	return rows.Err()
}

func insertOverrides(ctx context.Context, tx pgx.Tx, f *feature.Flag) error {
	for _, m := range []map[string]feature.Override{f.UserOverrides, f.TenantOverrides} {
		for _, o := range m {
			value, err := json.Marshal(o.Value)
			if err != nil {
				return errors.Join(ErrInvalidOverride, err)
			}
			if _, err := tx.Exec(ctx, upsertOverrideSQL, f.Key, string(o.Scope), o.ScopeID, value, o.ExpiresAt); err != nil {
				return fmt.Errorf("flagstore: create %q override: %w", f.Key, err)
			}
		}
	}
	return nil
}

// encodeDefinition serialises the parts of a flag that live in the definition column.
func encodeDefinition(f *feature.Flag) ([]byte, error) {
	def := f.Clone()
	def.UserOverrides = nil
	def.TenantOverrides = nil
	def.Version = 0
	def.CreatedAt = time.Time{}
	def.UpdatedAt = time.Time{}

	b, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("flagstore: encode %q: %w", f.Key, err)
	}
	return b, nil
}

func scanFlag(row pgx.Row) (*feature.Flag, error) {
	var (
		def []byte
		f   feature.Flag
	)
	var version int64
	var createdAt, updatedAt time.Time
	if err := row.Scan(&def, &version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(def, &f); err != nil {
		return nil, fmt.Errorf("flagstore: decode definition: %w", err)
	}
	f.Version, f.CreatedAt, f.UpdatedAt = version, createdAt, updatedAt
	return &f, nil
}
