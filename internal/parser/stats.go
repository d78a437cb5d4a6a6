package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/mickamy/queryguard/internal/model"
)

// ParseTableStats reads a JSON object mapping relation names to {"relpages": N, ...}.
func ParseTableStats(r io.Reader) (model.TableStats, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var payload map[string]any
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode table stats: %w", err)
	}

	stats := make(model.TableStats, len(payload))
	for rel, val := range payload {
		obj, err := asObject(val)
		if err != nil {
			return nil, fmt.Errorf("table stats %q: %w", rel, err)
		}
		f := fields(obj)
		stats[rel] = model.RelationStats{
			RelPages:  int64(math.Round(f.num("relpages"))),
			RelTuples: f.num("reltuples"),
		}
	}
	return stats, nil
}
