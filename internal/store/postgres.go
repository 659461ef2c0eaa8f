package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const articleColumns = `id, title, content, summary, category, tags, source_url, published_at,
	base_impact_score, financial_impact, career_impact, personal_impact,
	last_embedded_at, created_at, updated_at`

func (s *PostgresStore) CreateArticle(ctx context.Context, a *Article) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.PublishedAt.IsZero() {
		a.PublishedAt = time.Now().UTC()
	}
	a.Tags = NormalizeTags(a.Tags)

	return s.pool.QueryRow(ctx, `
		INSERT INTO articles (id, title, content, summary, category, tags, source_url, published_at,
			base_impact_score, financial_impact, career_impact, personal_impact)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		a.ID, a.Title, a.Content, nullString(a.Summary), nullString(a.Category), a.Tags,
		nullString(a.SourceURL), a.PublishedAt,
		a.BaseImpactScore, a.FinancialImpact, a.CareerImpact, a.PersonalImpact,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (s *PostgresStore) GetArticle(ctx context.Context, id uuid.UUID) (*Article, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+articleColumns+`, embedding::text
		FROM articles WHERE id = $1`, id)

	a := &Article{}
	var summary, category, sourceURL, embedding sql.NullString
	var base sql.NullFloat64
	err := row.Scan(
		&a.ID, &a.Title, &a.Content, &summary, &category, &a.Tags, &sourceURL, &a.PublishedAt,
		&base, &a.FinancialImpact, &a.CareerImpact, &a.PersonalImpact,
		&a.LastEmbeddedAt, &a.CreatedAt, &a.UpdatedAt, &embedding,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	applyArticleNullables(a, summary, category, sourceURL, base)
	if embedding.Valid {
		var v pgvector.Vector
		if err := v.Parse(embedding.String); err != nil {
			return nil, fmt.Errorf("parse embedding for %s: %w", id, err)
		}
		a.Embedding = v.Slice()
	}
	return a, nil
}

func (s *PostgresStore) ListArticles(ctx context.Context, filter ArticleFilter) ([]*Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.Category != "" {
		n++
		query += fmt.Sprintf(" AND category = $%d", n)
		args = append(args, filter.Category)
	}
	if filter.Since != nil {
		n++
		query += fmt.Sprintf(" AND published_at >= $%d", n)
		args = append(args, *filter.Since)
	}

	query += " ORDER BY published_at DESC, id ASC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (s *PostgresStore) UpdateArticleEmbedding(ctx context.Context, id uuid.UUID, vector []float32, embeddedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE articles SET embedding = $2::vector, last_embedded_at = $3, updated_at = now()
		WHERE id = $1`,
		id, pgvector.NewVector(vector), embeddedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update embedding: article %s not found", id)
	}
	return nil
}

func (s *PostgresStore) ListArticlesNeedingEmbedding(ctx context.Context, staleBefore time.Time, limit int) ([]*Article, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+articleColumns+`
		FROM articles
		WHERE embedding IS NULL OR last_embedded_at IS NULL OR last_embedded_at < $1
		ORDER BY last_embedded_at ASC NULLS FIRST, published_at DESC
		LIMIT $2`, staleBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

func scanArticles(rows pgx.Rows) ([]*Article, error) {
	var articles []*Article
	for rows.Next() {
		a := &Article{}
		var summary, category, sourceURL sql.NullString
		var base sql.NullFloat64
		if err := rows.Scan(
			&a.ID, &a.Title, &a.Content, &summary, &category, &a.Tags, &sourceURL, &a.PublishedAt,
			&base, &a.FinancialImpact, &a.CareerImpact, &a.PersonalImpact,
			&a.LastEmbeddedAt, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		applyArticleNullables(a, summary, category, sourceURL, base)
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func applyArticleNullables(a *Article, summary, category, sourceURL sql.NullString, base sql.NullFloat64) {
	if summary.Valid {
		a.Summary = summary.String
	}
	if category.Valid {
		a.Category = category.String
	}
	if sourceURL.Valid {
		a.SourceURL = sourceURL.String
	}
	if base.Valid {
		a.BaseImpactScore = &base.Float64
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
