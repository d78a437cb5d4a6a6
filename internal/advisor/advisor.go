package advisor

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/mickamy/queryguard/internal/config"
	"github.com/mickamy/queryguard/internal/model"
)

const (
	defaultSeqScanMinPages int64 = 10_000
	defaultBRINMinPages    int64 = 1_000_000

	placeholderColumn = "<column>"
	seqScanSpeedup    = "3×–20×"
)

// Priority expresses how urgent an advice is.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Advice is one index recommendation derived from the plan.
type Advice struct {
	Priority   Priority `json:"priority"`
	Message    string   `json:"message"`
	DDL        string   `json:"ddl,omitempty"`
	IndexType  Shape    `json:"index_type,omitempty"`
	EstSpeedup string   `json:"est_speedup,omitempty"`
	NodeID     string   `json:"node_id,omitempty"`
}

// Options configures the advisor sensitivity.
type Options struct {
	SeqScanMinPages int64
	BRINMinPages    int64
}

// Advise walks the plan in pre-order and returns index advice for large
// filtered sequential scans and for sorts fed directly by a relation scan.
func Advise(root *model.PlanNode, stats model.TableStats, opts Options) []Advice {
	if root == nil {
		return nil
	}
	opts = applyDefaults(opts)

	var out []Advice
	root.Walk(func(node, parent *model.PlanNode) {
		switch node.NodeType {
		case "Seq Scan":
			if adv, ok := seqScanAdvice(node, stats, opts); ok {
				out = append(out, adv)
			}
		case "Sort":
			if adv, ok := sortAdvice(node, parent, opts); ok {
				out = append(out, adv)
			}
		case "Nested Loop":
			// Inner nested loops are inspected but yield no advice yet.
		}
	})
	return out
}

func seqScanAdvice(node *model.PlanNode, stats model.TableStats, opts Options) (Advice, bool) {
	if node.RelationName == "" || node.Filter == "" {
		return Advice{}, false
	}
	pages := stats.Pages(node.RelationName)
	if pages <= opts.SeqScanMinPages {
		return Advice{}, false
	}

	choice := ChooseShape(ShapeInput{
		Filter:       node.Filter,
		RelPages:     pages,
		Columns:      filterColumns(lex(node.Filter)),
		BRINMinPages: opts.BRINMinPages,
	})

	msg := fmt.Sprintf("%s: large sequential scan (%d pages) with filter %s; an index is likely to help",
		node.RelationName, pages, node.Filter)
	if choice.Note != "" {
		msg += " (" + choice.Note + ")"
	}
	return Advice{
		Priority:   PriorityHigh,
		Message:    msg,
		DDL:        createIndexDDL(node.RelationName, choice),
		IndexType:  choice.Shape,
		EstSpeedup: seqScanSpeedup,
		NodeID:     node.ID,
	}, true
}

func sortAdvice(node, parent *model.PlanNode, opts Options) (Advice, bool) {
	if len(node.SortKey) == 0 || parent == nil || parent.RelationName == "" {
		return Advice{}, false
	}
	rel := parent.RelationName
	choice := ChooseShape(ShapeInput{
		SortKeys:     node.SortKey,
		Columns:      sortColumns(node.SortKey),
		BRINMinPages: opts.BRINMinPages,
	})
	return Advice{
		Priority:  PriorityMedium,
		Message:   fmt.Sprintf("%s: sort on %s could be served by an index", rel, strings.Join(node.SortKey, ", ")),
		DDL:       createIndexDDL(rel, choice),
		IndexType: choice.Shape,
		NodeID:    node.ID,
	}, true
}

func createIndexDDL(rel string, choice Choice) string {
	cols := make([]string, 0, len(choice.Columns))
	for _, col := range choice.Columns {
		ident := pq.QuoteIdentifier(col)
		if choice.Opclass != "" {
			ident += " " + choice.Opclass
		}
		cols = append(cols, ident)
	}
	if len(cols) == 0 {
		cols = append(cols, placeholderColumn)
	}
	return fmt.Sprintf("CREATE INDEX ON %s USING %s (%s);",
		pq.QuoteIdentifier(rel), choice.Shape.Method(), strings.Join(cols, ", "))
}

func applyDefaults(opts Options) Options {
	cfg := config.Active().Advisor
	if opts.SeqScanMinPages <= 0 {
		opts.SeqScanMinPages = cfg.SeqScanMinPages
	}
	if opts.SeqScanMinPages <= 0 {
		opts.SeqScanMinPages = defaultSeqScanMinPages
	}
	if opts.BRINMinPages <= 0 {
		opts.BRINMinPages = cfg.BRINMinPages
	}
	if opts.BRINMinPages <= 0 {
		opts.BRINMinPages = defaultBRINMinPages
	}
	return opts
}
