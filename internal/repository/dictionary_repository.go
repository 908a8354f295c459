package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/ruz-auth/internal/domain"
)

// DictionaryRepository reads and maintains the registry code dictionary.
type DictionaryRepository interface {
	// FindEntry returns ErrNotFound when (dictType, code) is unknown.
	FindEntry(ctx context.Context, dictType, code string) (*domain.DictionaryEntry, error)
	// Upsert inserts or refreshes an entry and reports whether a row was inserted or changed.
	Upsert(ctx context.Context, entry domain.DictionaryEntry) (bool, error)
	// InsertIfAbsent inserts an entry unless (type, code) already exists.
	InsertIfAbsent(ctx context.Context, entry domain.DictionaryEntry) (bool, error)
	CountByType(ctx context.Context, dictType string) (int, error)
}

type dictionaryRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewDictionaryRepository creates a new SQL-backed dictionary repository.
func NewDictionaryRepository(db *sqlx.DB, log *slog.Logger) DictionaryRepository {
	if log == nil {
		log = slog.Default()
	}

	return &dictionaryRepository{
		db:  db,
		log: log,
	}
}

func (r *dictionaryRepository) FindEntry(ctx context.Context, dictType, code string) (*domain.DictionaryEntry, error) {
	const query = `SELECT id, type, code, name_sk, name_en FROM ruz_dictionary WHERE type = $1 AND code = $2`

	var entry domain.DictionaryEntry
	if err := r.db.GetContext(ctx, &entry, query, dictType, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select dictionary entry: %w", err)
	}

	return &entry, nil
}

func (r *dictionaryRepository) Upsert(ctx context.Context, entry domain.DictionaryEntry) (bool, error) {
	const query = `
		INSERT INTO ruz_dictionary (type, code, name_sk, name_en)
		VALUES (:type, :code, :name_sk, :name_en)
		ON CONFLICT (type, code) DO UPDATE
		SET name_sk = EXCLUDED.name_sk, name_en = EXCLUDED.name_en
		WHERE ruz_dictionary.name_sk IS DISTINCT FROM EXCLUDED.name_sk
		   OR ruz_dictionary.name_en IS DISTINCT FROM EXCLUDED.name_en
	`

	res, err := r.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to upsert dictionary entry",
				slog.String("type", entry.Type),
				slog.String("code", entry.Code),
				slog.Any("error", err),
			)
		}
		return false, fmt.Errorf("upsert dictionary entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert dictionary entry: %w", err)
	}

	return affected > 0, nil
}

func (r *dictionaryRepository) InsertIfAbsent(ctx context.Context, entry domain.DictionaryEntry) (bool, error) {
	const query = `
		INSERT INTO ruz_dictionary (type, code, name_sk, name_en)
		VALUES (:type, :code, :name_sk, :name_en)
		ON CONFLICT (type, code) DO NOTHING
	`

	res, err := r.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return false, fmt.Errorf("insert dictionary entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert dictionary entry: %w", err)
	}

	return affected > 0, nil
}

func (r *dictionaryRepository) CountByType(ctx context.Context, dictType string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM ruz_dictionary WHERE type = $1`, dictType); err != nil {
		return 0, fmt.Errorf("count dictionary entries: %w", err)
	}
	return n, nil
}
