package dictionary

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the ambiguous_words table. Execute it via
// [PostgresSource.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS ambiguous_words (
    word        TEXT PRIMARY KEY,
    kind        TEXT NOT NULL DEFAULT 'other',
    meanings    JSONB NOT NULL DEFAULT '[]',
    suggestions JSONB NOT NULL DEFAULT '[]',
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresSource]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSource is a [Source] backed by a PostgreSQL table. Meanings and
// suggestions are stored as JSONB arrays.
type PostgresSource struct {
	db DB
}

var _ WritableSource = (*PostgresSource)(nil)

// NewPostgresSource creates a [PostgresSource] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresSource.Migrate] to ensure the schema exists before loading.
func NewPostgresSource(db DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// Name implements [Source].
func (s *PostgresSource) Name() string { return "postgres" }

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresSource) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("dictionary: migrate: %w", err)
	}
	return nil
}

// Load implements [Source]. Rows are returned ordered by word.
func (s *PostgresSource) Load(ctx context.Context) ([]Entry, error) {
	const query = `SELECT word, kind, meanings, suggestions FROM ambiguous_words ORDER BY word`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("dictionary: postgres load: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                     Entry
			kind                  string
			meanings, suggestions []byte
		)
		if err := rows.Scan(&e.Word, &kind, &meanings, &suggestions); err != nil {
			return nil, fmt.Errorf("dictionary: postgres scan: %w", err)
		}
		if e.Kind, err = ParseKind(kind); err != nil {
			return nil, fmt.Errorf("dictionary: postgres row %q: %w", e.Word, err)
		}
		if err := json.Unmarshal(meanings, &e.Meanings); err != nil {
			return nil, fmt.Errorf("dictionary: postgres row %q: unmarshal meanings: %w", e.Word, err)
		}
		if err := json.Unmarshal(suggestions, &e.Suggestions); err != nil {
			return nil, fmt.Errorf("dictionary: postgres row %q: unmarshal suggestions: %w", e.Word, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dictionary: postgres load: %w", err)
	}
	return entries, nil
}

// Upsert validates e and creates or replaces its row. The word is stored
// under its lowercase key.
func (s *PostgresSource) Upsert(ctx context.Context, e Entry) error {
	e = e.clone()
	e.Word = Key(e.Word)
	if err := Validate(e); err != nil {
		return err
	}

	meanings, err := json.Marshal(e.Meanings)
	if err != nil {
		return fmt.Errorf("dictionary: marshal meanings: %w", err)
	}
	suggestions, err := json.Marshal(e.Suggestions)
	if err != nil {
		return fmt.Errorf("dictionary: marshal suggestions: %w", err)
	}

	const query = `
		INSERT INTO ambiguous_words (word, kind, meanings, suggestions)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (word) DO UPDATE SET
			kind = EXCLUDED.kind,
			meanings = EXCLUDED.meanings,
			suggestions = EXCLUDED.suggestions,
			updated_at = now()`

	if _, err := s.db.Exec(ctx, query, e.Word, string(e.Kind), meanings, suggestions); err != nil {
		return fmt.Errorf("dictionary: upsert %q: %w", e.Word, err)
	}
	return nil
}

// Delete removes the row for word. Deleting an unknown word is not an error.
func (s *PostgresSource) Delete(ctx context.Context, word string) error {
	const query = `DELETE FROM ambiguous_words WHERE word = $1`
	if _, err := s.db.Exec(ctx, query, Key(word)); err != nil {
		return fmt.Errorf("dictionary: delete %q: %w", word, err)
	}
	return nil
}
