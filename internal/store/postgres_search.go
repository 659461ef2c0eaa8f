package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// SimilaritySearch ranks embedded articles by cosine similarity (1 - cosine distance).
func (s *PostgresStore) SimilaritySearch(ctx context.Context, q SimilarityQuery) ([]ScoredArticle, error) {
	query := `SELECT ` + articleColumns + `, 1 - (embedding <=> $1::vector) AS similarity
		FROM articles
		WHERE embedding IS NOT NULL AND 1 - (embedding <=> $1::vector) >= $2`
	args := []interface{}{pgvector.NewVector(q.Vector), q.Threshold}
	n := 2

	if q.Category != "" {
		n++
		query += fmt.Sprintf(" AND category = $%d", n)
		args = append(args, q.Category)
	}
	if q.MinScore != nil {
		n++
		query += fmt.Sprintf(" AND base_impact_score >= $%d", n)
		args = append(args, *q.MinScore)
	}
	if q.ExcludeID != uuid.Nil {
		n++
		query += fmt.Sprintf(" AND id <> $%d", n)
		args = append(args, q.ExcludeID)
	}

	n++
	query += fmt.Sprintf(" ORDER BY similarity DESC, published_at DESC LIMIT $%d", n)
	args = append(args, q.Count)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScoredArticle
	for rows.Next() {
		a := &Article{}
		var summary, category, sourceURL sql.NullString
		var base sql.NullFloat64
		var similarity float64
		if err := rows.Scan(
			&a.ID, &a.Title, &a.Content, &summary, &category, &a.Tags, &sourceURL, &a.PublishedAt,
			&base, &a.FinancialImpact, &a.CareerImpact, &a.PersonalImpact,
			&a.LastEmbeddedAt, &a.CreatedAt, &a.UpdatedAt, &similarity,
		); err != nil {
			return nil, err
		}
		applyArticleNullables(a, summary, category, sourceURL, base)
		out = append(out, ScoredArticle{Article: a, Similarity: similarity})
	}
	return out, rows.Err()
}

// LexicalSearch matches query as a case-insensitive substring of title or content.
func (s *PostgresStore) LexicalSearch(ctx context.Context, query string, limit int) ([]*Article, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.pool.Query(ctx, `
		SELECT `+articleColumns+`
		FROM articles
		WHERE title ILIKE $1 ESCAPE '\' OR content ILIKE $1 ESCAPE '\'
		ORDER BY published_at DESC, id ASC
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
