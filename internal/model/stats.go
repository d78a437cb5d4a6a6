package model

// RelationStats holds the pg_class estimates for one relation.
type RelationStats struct {
	RelPages  int64   `json:"relpages"`
	RelTuples float64 `json:"reltuples,omitempty"`
}

// TableStats maps a relation name to its catalog estimates.
type TableStats map[string]RelationStats

// Pages returns the page estimate for rel, or 0 when unknown.
func (s TableStats) Pages(rel string) int64 {
	if s == nil {
		return 0
	}
	return s[rel].RelPages
}
