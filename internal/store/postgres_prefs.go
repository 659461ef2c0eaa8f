package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetPreferences returns nil, nil when the user has no stored preferences and
// ErrMalformedPreferences when the stored blob cannot be parsed.
func (s *PostgresStore) GetPreferences(ctx context.Context, userID uuid.UUID) (*Preferences, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT preferences FROM user_preferences WHERE user_id = $1`, userID,
	).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return DecodePreferences(raw)
}

func (s *PostgresStore) SavePreferences(ctx context.Context, userID uuid.UUID, prefs *Preferences) error {
	raw, err := EncodePreferences(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO user_preferences (user_id, preferences)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET preferences = EXCLUDED.preferences, updated_at = now()`,
		userID, raw,
	)
	return err
}

// ListPreferences returns every parseable preferences row. Malformed rows are skipped.
func (s *PostgresStore) ListPreferences(ctx context.Context) ([]UserPreferences, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id, preferences FROM user_preferences ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserPreferences
	for rows.Next() {
		var id uuid.UUID
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		p, err := DecodePreferences(raw)
		if err != nil {
			continue
		}
		out = append(out, UserPreferences{UserID: id, Preferences: p})
	}
	return out, rows.Err()
}

// GetSetting returns nil, nil for an unknown key.
func (s *PostgresStore) GetSetting(ctx context.Context, key string) ([]byte, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *PostgresStore) PutSetting(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	return err
}
