package rewrite

import "strings"

// Semantics values a candidate may report.
const (
	SemanticsPreserved = "preserved"
	SemanticsNarrower  = "narrower"
	SemanticsBroader   = "broader"
)

// Candidate is one rewrite proposed by the model.
type Candidate struct {
	SQL         string   `json:"sql"`
	Explanation string   `json:"explanation"`
	Changes     []string `json:"changes"`
	Semantics   string   `json:"semantics"`
	Assumptions []string `json:"assumptions"`
	Tags        []string `json:"tags"`
}

// NormalizedSemantics returns the trimmed, lower-cased semantics tag.
func (c Candidate) NormalizedSemantics() string {
	return strings.ToLower(strings.TrimSpace(c.Semantics))
}
