package score

// SignalType classifies a scoring signal
type SignalType string

const (
	SignalCategory       SignalType = "category"        // Winning category and its keyword similarity
	SignalWeightFraction SignalType = "weight_fraction" // Category weight share of the catalog
	SignalThreadFactor   SignalType = "thread_factor"   // Thread length relative to the busiest case
	SignalDegraded       SignalType = "degraded"        // Case scored as unknown without classification
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo    SignalSeverity = "info"
	SeverityWarning SignalSeverity = "warning"
)

// Signal is one transparent input to a case score
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}
