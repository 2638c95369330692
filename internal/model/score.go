package model

// ScoreBreakdown holds the six independently-computed dimension scores, each
// in [0,1]. Risk is a penalty: it subtracts from the weighted sum of the five
// positive dimensions.
type ScoreBreakdown struct {
	Identity     float64 `json:"identity"`
	Address      float64 `json:"address"`
	Completeness float64 `json:"completeness"`
	Freshness    float64 `json:"freshness"`
	Enrichment   float64 `json:"enrichment"`
	Risk         float64 `json:"risk"`
}

// Tier is the coarse quality bucket derived from the confidence score.
type Tier string

const (
	TierPlatinum     Tier = "PLATINUM"
	TierGold         Tier = "GOLD"
	TierQuestionable Tier = "QUESTIONABLE"
)

// Path is the routing decision for a validated record.
type Path string

const (
	PathGreen  Path = "GREEN"
	PathYellow Path = "YELLOW"
	PathRed    Path = "RED"
	// PathError marks a defect in a pure pipeline stage. The record still
	// gets a structured result; it is routed to human review.
	PathError Path = "ERROR"
)

// ConfidenceResult carries the weighted score and its derived tier and path.
// Tier and path are pure functions of the score, the fraud indicator set, and
// the exclusion override; they are never set independently.
type ConfidenceResult struct {
	Score     float64        `json:"confidence_score"`
	Tier      Tier           `json:"confidence_tier"`
	Path      Path           `json:"path"`
	Breakdown ScoreBreakdown `json:"score_breakdown"`
}
