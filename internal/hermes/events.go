package hermes

import "time"

type ArticleIngestedEvent struct {
	ArticleID       string    `json:"article_id"`
	Title           string    `json:"title"`
	Category        string    `json:"category,omitempty"`
	BaseImpactScore float64   `json:"base_impact_score"`
	Embedded        bool      `json:"embedded"`
	PublishedAt     time.Time `json:"published_at"`
}

type ArticleEmbeddedEvent struct {
	ArticleID  string    `json:"article_id"`
	Dimensions int       `json:"dimensions"`
	EmbeddedAt time.Time `json:"embedded_at"`
}

type SearchDegradedEvent struct {
	QueryLen  int       `json:"query_len"`
	Results   int       `json:"results"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

type SegmentsComputedEvent struct {
	Segments   int       `json:"segments"`
	Users      int       `json:"users"`
	ComputedAt time.Time `json:"computed_at"`
}

type ReembedCompletedEvent struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type WeightsUpdatedEvent struct {
	UserID  string         `json:"user_id"`
	Weights map[string]int `json:"weights"`
	Reset   bool           `json:"reset"`
}

type FeedbackRecordedEvent struct {
	UserID    string `json:"user_id"`
	ArticleID string `json:"article_id"`
	Rating    int    `json:"rating"`
}
