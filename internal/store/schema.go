package store

import (
	"context"
	"fmt"
)

const schemaTemplate = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS articles (
	id                uuid PRIMARY KEY,
	title             text NOT NULL,
	content           text NOT NULL DEFAULT '',
	summary           text,
	category          text,
	tags              text[] NOT NULL DEFAULT '{}',
	source_url        text,
	published_at      timestamptz NOT NULL DEFAULT now(),
	base_impact_score double precision CHECK (base_impact_score BETWEEN 0 AND 100),
	financial_impact  double precision NOT NULL DEFAULT 0,
	career_impact     double precision NOT NULL DEFAULT 0,
	personal_impact   double precision NOT NULL DEFAULT 0,
	embedding         vector(%d),
	last_embedded_at  timestamptz,
	created_at        timestamptz NOT NULL DEFAULT now(),
	updated_at        timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS articles_published_at_idx ON articles (published_at DESC);
CREATE INDEX IF NOT EXISTS articles_category_idx ON articles (category);
CREATE INDEX IF NOT EXISTS articles_embedding_idx ON articles USING hnsw (embedding vector_cosine_ops);

CREATE TABLE IF NOT EXISTS user_preferences (
	user_id     uuid PRIMARY KEY,
	preferences jsonb NOT NULL,
	updated_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS settings (
	key        text PRIMARY KEY,
	value      jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
);
`

// Migrate creates the schema. dimensions fixes the width of the embedding column.
func (s *PostgresStore) Migrate(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("migrate: invalid embedding dimensions %d", dimensions)
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(schemaTemplate, dimensions)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
