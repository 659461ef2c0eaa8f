package hermes

const (
	SubjectSearchDegraded   = "pulse.search.degraded"
	SubjectSegmentsComputed = "pulse.segments.computed"
	SubjectReembedCompleted = "pulse.reembed.completed"

	StreamName   = "PULSE_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

func SubjectArticleIngested(articleID string) string { return "pulse.article." + articleID + ".ingested" }
func SubjectArticleEmbedded(articleID string) string { return "pulse.article." + articleID + ".embedded" }

func SubjectWeightsUpdated(userID string) string   { return "pulse.weights." + userID + ".updated" }
func SubjectFeedbackRecorded(userID string) string { return "pulse.feedback." + userID + ".recorded" }
