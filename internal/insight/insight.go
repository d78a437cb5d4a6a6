package insight

import (
	"fmt"
	"strings"

	"github.com/mickamy/queryguard/internal/analyzer"
	"github.com/mickamy/queryguard/internal/config"
	"github.com/mickamy/queryguard/internal/report"
)

// Severity expresses the urgency of an insight message.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Message represents an actionable observation about a plan.
type Message struct {
	Severity Severity
	Text     string
	Anchor   string
}

// BuildMessages derives human-readable insight messages for a plan.
func BuildMessages(analysis *analyzer.PlanAnalysis) []Message {
	if analysis == nil || analysis.Root == nil {
		return nil
	}
	var out []Message

	if msg := hotspotMessage(analysis); msg != nil {
		out = append(out, *msg)
	}
	out = append(out, spillMessages(analysis)...)
	out = append(out, nestedLoopMessages(analysis)...)
	return out
}

func hotspotMessage(analysis *analyzer.PlanAnalysis) *Message {
	if len(analysis.HotNodes) == 0 {
		return nil
	}
	hot := analysis.HotNodes[0]
	if hot.PercentSelf <= 0 {
		return nil
	}
	text := fmt.Sprintf("Hot spot: %s self cost %.2f (%.1f%%)", CompactLabel(hot), hot.SelfCost, hot.PercentSelf*100)
	if hot.Node.NodeType == "Seq Scan" && hot.Node.Filter != "" {
		text += ", consider an index on the filtered columns"
	}
	return &Message{Severity: severityForHotspot(hot), Text: text, Anchor: AnchorID(hot)}
}

func severityForHotspot(node *analyzer.NodeStats) Severity {
	cfg := config.Active().Insights
	switch {
	case node.PercentSelf >= cfg.HotspotCriticalPercent:
		return SeverityCritical
	case node.PercentSelf >= cfg.HotspotWarningPercent:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

func spillMessages(analysis *analyzer.PlanAnalysis) []Message {
	limit := 2
	if len(analysis.SpillNodes) < limit {
		limit = len(analysis.SpillNodes)
	}
	var msgs []Message
	for _, node := range analysis.SpillNodes[:limit] {
		text := fmt.Sprintf("%s needs ~%s, above work_mem %s", CompactLabel(node),
			report.HumanBytes(node.MemoryBytes), report.HumanBytes(float64(analysis.WorkMemBytes)))
		if node.Node.IsSort() {
			text += "; increase work_mem or add an index that delivers the order"
		} else {
			text += "; increase work_mem or reduce the hashed input"
		}
		severity := SeverityWarning
		if node.MemoryBytes >= 4*float64(analysis.WorkMemBytes) {
			severity = SeverityCritical
		}
		msgs = append(msgs, Message{Severity: severity, Text: text, Anchor: AnchorID(node)})
	}
	return msgs
}

// nestedLoopMessages flags nested loops whose outer side feeds many rows into
// a scan on the inner side. The outer row estimate is the expected loop count.
func nestedLoopMessages(analysis *analyzer.PlanAnalysis) []Message {
	cfg := config.Active().Insights
	var msgs []Message
	walkNodes(analysis.Root, func(node *analyzer.NodeStats) {
		if node.Node.NodeType != "Nested Loop" || len(node.Children) < 2 {
			return
		}
		outer, inner := node.Children[0], node.Children[1]
		loops := outer.EstimatedRows
		if loops <= cfg.NestedLoopWarnRows || !strings.Contains(inner.Node.NodeType, "Scan") {
			return
		}
		text := fmt.Sprintf("Nested Loop: %s may run %s about %.0f times; consider an index on the join key or a hash join",
			CompactLabel(node), CompactLabel(inner), loops)
		severity := SeverityWarning
		if loops >= cfg.NestedLoopCriticalRows {
			severity = SeverityCritical
		}
		msgs = append(msgs, Message{Severity: severity, Text: text, Anchor: AnchorID(node)})
	})
	if len(msgs) > 2 {
		return msgs[:2]
	}
	return msgs
}

func walkNodes(node *analyzer.NodeStats, fn func(*analyzer.NodeStats)) {
	if node == nil {
		return
	}
	fn(node)
	for _, child := range node.Children {
		walkNodes(child, fn)
	}
}

// NodeLabel builds a descriptive label for a plan node.
func NodeLabel(node *analyzer.NodeStats) string {
	if node == nil || node.Node == nil {
		return ""
	}
	label := node.Node.NodeType
	if node.Node.RelationName != "" {
		label = fmt.Sprintf("%s %s", label, node.Node.RelationName)
		if node.Node.Alias != "" && node.Node.Alias != node.Node.RelationName {
			label = fmt.Sprintf("%s (%s)", label, node.Node.Alias)
		}
	} else if node.Node.Alias != "" {
		label = fmt.Sprintf("%s (%s)", label, node.Node.Alias)
	}
	return label
}

// CompactLabel shortens long labels for inline summaries.
func CompactLabel(node *analyzer.NodeStats) string {
	label := NodeLabel(node)
	if len(label) > 60 {
		return label[:57] + "..."
	}
	return label
}

// NormalizeWhitespace collapses whitespace for use in HTML or text.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// AnchorID derives a stable HTML anchor for a node.
func AnchorID(node *analyzer.NodeStats) string {
	if node == nil || node.Node == nil {
		return ""
	}
	if node.Node.ID != "" {
		return "node-" + strings.ReplaceAll(node.Node.ID, ".", "-")
	}
	label := strings.ToLower(NodeLabel(node))
	replacer := strings.NewReplacer(" ", "-", "/", "-", "\\", "-", "(", "", ")", "", ",", "")
	return replacer.Replace(label)
}
