package ingest

import (
	"context"
	"time"

	"github.com/MikeSquared-Agency/Pulse/internal/hermes"
	"github.com/MikeSquared-Agency/Pulse/internal/metrics"
)

type ReembedOptions struct {
	BatchSize   int
	BatchDelay  time.Duration
	MaxArticles int
	StaleAfter  time.Duration
}

// Failure records one article the job could not embed.
type Failure struct {
	ArticleID string `json:"article_id"`
	Error     string `json:"error"`
}

type Report struct {
	Processed int       `json:"processed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Reembed embeds articles that have no vector or whose vector is older than
// StaleAfter, BatchSize at a time with BatchDelay between batches. A failing
// article is recorded in the report and the run continues. Cancellation stops
// the run between articles and returns the partial report.
func (s *Service) Reembed(ctx context.Context, opts ReembedOptions) (*Report, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	if opts.MaxArticles <= 0 {
		opts.MaxArticles = 100
	}

	staleBefore := s.now().UTC().Add(-opts.StaleAfter)
	articles, err := s.store.ListArticlesNeedingEmbedding(ctx, staleBefore, opts.MaxArticles)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for start := 0; start < len(articles); start += opts.BatchSize {
		if start > 0 {
			if err := s.sleep(ctx, opts.BatchDelay); err != nil {
				return report, err
			}
		}
		end := start + opts.BatchSize
		if end > len(articles) {
			end = len(articles)
		}
		for _, a := range articles[start:end] {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Processed++
			if err := s.embed(ctx, a); err != nil {
				report.Failed++
				report.Failures = append(report.Failures, Failure{ArticleID: a.ID.String(), Error: err.Error()})
				metrics.ReembedArticlesTotal.WithLabelValues("failed").Inc()
				s.logger.Warn("re-embedding failed", "article_id", a.ID, "error", err)
				continue
			}
			report.Succeeded++
			metrics.ReembedArticlesTotal.WithLabelValues("succeeded").Inc()
		}
	}

	s.logger.Info("re-embedding finished",
		"processed", report.Processed,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
	)
	if report.Processed > 0 {
		s.publish(hermes.SubjectReembedCompleted, hermes.ReembedCompletedEvent{
			Processed: report.Processed,
			Succeeded: report.Succeeded,
			Failed:    report.Failed,
		})
	}
	return report, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
