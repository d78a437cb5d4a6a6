package html

const styles = `{{ define "styles" }}
	<style>
		:root { --high: #f44747; --med: #faae32; --ok: #3fb950; --muted: #5b7083; }
		body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif; margin: 0; padding: 0; background: #f7f7f8; color: #202124; }
		main { max-width: 1040px; margin: 0 auto; padding: 32px 24px 48px; }
		header.top { background: #212a3b; color: #f7f7f8; padding: 32px 24px; }
		header.top h1 { margin: 0 0 8px; font-size: 28px; }
		header.top p { margin: 4px 0; opacity: 0.8; }
		section { margin-top: 32px; }
		section h2 { margin-bottom: 12px; font-size: 20px; }
		pre { background: #0c1220; color: #e7ecf4; border-radius: 10px; padding: 14px 16px; overflow-x: auto; font-size: 13px; }
		table { width: 100%; border-collapse: collapse; background: #fff; border-radius: 10px; overflow: hidden; box-shadow: 0 4px 12px rgba(13,28,39,0.10); }
		th, td { text-align: left; padding: 10px 12px; font-size: 14px; border-bottom: 1px solid rgba(91,112,131,0.16); vertical-align: top; }
		th { color: var(--muted); font-size: 12px; text-transform: uppercase; letter-spacing: 0.04em; }
		code { font-size: 13px; }
		.chip { display: inline-block; padding: 2px 10px; border-radius: 999px; font-weight: 600; font-size: 12px; color: #fff; background: var(--muted); }
		.chip.high { background: var(--high); }
		.chip.med { background: var(--med); color: #202124; }
		.chip.ok { background: var(--ok); }
		.summary-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 12px; }
		.summary-tile { background: #fff; border-radius: 10px; padding: 16px; box-shadow: 0 6px 18px rgba(13,28,39,0.12); }
		.summary-tile strong { display: block; font-size: 14px; text-transform: uppercase; letter-spacing: 0.04em; color: var(--muted); margin-bottom: 6px; }
		.summary-tile span { font-size: 18px; font-weight: 600; }
		.card { background: #fff; border-radius: 12px; padding: 16px; margin-bottom: 12px; box-shadow: 0 4px 12px rgba(13,28,39,0.10); }
		.card h3 { margin: 0 0 8px; font-size: 16px; }
		.card .meta { font-size: 13px; color: var(--muted); }
		.plan-tree { list-style: none; margin: 0; padding: 0; }
		.node-card { background: #fff; border-radius: 12px; margin-bottom: 12px; position: relative; padding: 16px 18px 14px; box-shadow: 0 8px 20px rgba(16,37,58,0.12); border-left: 6px solid rgba(33,42,59,0.1); }
		.node-card::after { content: ""; position: absolute; inset: 0; border-radius: inherit; background: linear-gradient(90deg, rgba(244,71,71,var(--heat)) 0%, rgba(244,71,71,0) 72%); opacity: 0.35; pointer-events: none; }
		.node-header { position: relative; z-index: 1; display: flex; justify-content: space-between; gap: 12px; align-items: baseline; }
		.node-label { font-weight: 600; font-size: 15px; }
		.node-metrics { font-size: 13px; color: var(--muted); }
		.node-bar { position: relative; z-index: 1; margin-top: 10px; background: rgba(33,42,59,0.08); border-radius: 999px; height: 8px; overflow: hidden; }
		.node-bar span { display: block; height: 100%; border-radius: inherit; background: linear-gradient(90deg, #f44747 0%, #faae32 100%); width: calc(var(--width) * 1%); }
		.node-meta { position: relative; z-index: 1; margin-top: 10px; font-size: 13px; color: #364a63; display: flex; flex-wrap: wrap; gap: 12px 18px; }
		.node-warning { color: #b25600; font-weight: 600; }
		.node-children { list-style: none; margin-left: 24px; border-left: 1px dashed rgba(33,42,59,0.15); padding-left: 20px; }
		.insight-list { list-style: none; margin: 0; padding: 0; display: flex; flex-direction: column; gap: 10px; }
		.insight-list li { background: #fff; border-radius: 12px; padding: 14px 16px; box-shadow: 0 4px 12px rgba(13,28,39,0.10); font-size: 14px; display: flex; align-items: center; gap: 10px; }
		.insight-list li a { color: inherit; }
		.insight-list li.severity-critical { border-left: 4px solid var(--high); }
		.insight-list li.severity-warning { border-left: 4px solid var(--med); }
		.insight-list li.severity-info { border-left: 4px solid rgba(33,42,59,0.15); }
	</style>
{{ end }}`

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<title>{{.Title}}</title>
	{{- if .IncludeStyles }}{{ template "styles" }}{{ end }}
</head>
<body>
	<header class="top">
		<h1>{{.Title}}</h1>
		{{- if .Source }}<p>{{.Source}}</p>{{ end }}
		<p>Risk <span class="chip {{riskClass .Summary.Risk}}">{{.Summary.Risk}}</span> · {{.Summary.RiskNote}}</p>
	</header>
	<main>
		<section>
			<h2>Highlights</h2>
			<div class="summary-grid">
				<div class="summary-tile"><strong>Total cost</strong><span>{{.Summary.Cost}}</span></div>
				<div class="summary-tile"><strong>Estimated rows</strong><span>{{.Summary.Rows}}</span></div>
				<div class="summary-tile"><strong>Estimated data</strong><span>{{.Summary.Data}}</span></div>
				<div class="summary-tile"><strong>Estimated memory</strong><span>{{.Summary.Memory}}</span></div>
				<div class="summary-tile"><strong>Nodes / Hot</strong><span>{{.Summary.NodeCount}} / {{.Summary.HotCount}}</span></div>
			</div>
		</section>

		{{- if .SQL }}
		<section>
			<h2>Query</h2>
			<pre><code>{{.SQL}}</code></pre>
		</section>
		{{- end }}

		{{- if .Warnings }}
		<section>
			<h2>Warnings</h2>
			<ul class="insight-list">
				{{- range .Warnings }}
				<li class="severity-warning"><span class="icon">⚠️</span><span>{{.}}</span></li>
				{{- end }}
			</ul>
		</section>
		{{- end }}

		{{- if .Insights }}
		<section>
			<h2>Insights</h2>
			<ul class="insight-list">
				{{- range .Insights }}
				<li class="severity-{{.Severity}}"><span class="icon">{{.Icon}}</span><span>
					{{- if .Anchor -}}<a href="#{{.Anchor}}">{{.Text}}</a>{{- else -}}{{.Text}}{{- end -}}
				</span></li>
				{{- end }}
			</ul>
		</section>
		{{- end }}

		<section>
			<h2>Index advice</h2>
			{{- if .Advice }}
			<table>
				<thead><tr><th>Priority</th><th>Index</th><th>Reason</th><th>DDL</th></tr></thead>
				<tbody>
				{{- range .Advice }}
				<tr>
					<td>{{.Priority}}</td>
					<td>{{.Index}}</td>
					<td>{{if .Anchor}}<a href="#{{.Anchor}}">{{.Message}}</a>{{else}}{{.Message}}{{end}}{{if .Speedup}}<div class="meta">expected speedup {{.Speedup}}</div>{{end}}</td>
					<td><code>{{.DDL}}</code></td>
				</tr>
				{{- end }}
				</tbody>
			</table>
			{{- else }}
			<p>No index changes suggested.</p>
			{{- end }}
		</section>

		{{- if or .Candidates .Rejected }}
		<section>
			<h2>Rewrite candidates</h2>
			{{- range .Candidates }}
			<div class="card">
				<h3>Candidate {{.Number}}</h3>
				<div class="meta">cost {{.Cost}} · cost -{{.CostPct}} · pages -{{.PagesPct}} · memory -{{.MemoryPct}} · score {{.Score}} · warnings {{.Warnings}}{{if .Tags}} · {{.Tags}}{{end}}</div>
				<p>{{.Explanation}}</p>
				{{- if .Changes }}<ul>{{ range .Changes }}<li>{{.}}</li>{{ end }}</ul>{{ end }}
				<pre><code>{{.SQL}}</code></pre>
			</div>
			{{- else }}
			<p>No candidate passed the acceptance rule.</p>
			{{- end }}
			{{- if .Rejected }}
			<div class="card">
				<h3>Rejected</h3>
				<ul>{{ range .Rejected }}<li>{{.}}</li>{{ end }}</ul>
			</div>
			{{- end }}
		</section>
		{{- end }}

		<section>
			<h2>Hot nodes</h2>
			<table>
				<thead><tr><th>Node</th><th>Self cost</th><th>Share</th><th></th></tr></thead>
				<tbody>
				{{- range .HotNodes }}
				<tr><td>{{.Label}}</td><td>{{.Self}}</td><td>{{.Share}}</td><td>{{.Extra}}</td></tr>
				{{- end }}
				</tbody>
			</table>
		</section>

		<section>
			<h2>Plan Tree</h2>
			<ul class="plan-tree">
				{{ template "node" .Root }}
			</ul>
		</section>
	</main>

	{{ define "node" }}
	<li>
		<div class="node-card" id="{{.Anchor}}" style="--heat: {{printf "%.3f" .Heat}};">
			<div class="node-header">
				<span class="node-label">{{.Label}}</span>
				<span class="node-metrics">{{.Self}} · {{.Share}}</span>
			</div>
			<div class="node-bar"><span style="--width: {{printf "%.2f" .BarWidth}};"></span></div>
			<div class="node-meta">
				{{- if .Rows }}<span>{{.Rows}}</span>{{- end }}
				{{- if .Memory }}<span>{{.Memory}}</span>{{- end }}
				{{- if .Detail }}<span>{{.Detail}}</span>{{- end }}
				{{- if .HasWarning }}<span class="node-warning">{{ join .Warnings "; " }}</span>{{- end }}
			</div>
		</div>
		{{- if .Children }}
		<ul class="node-children">
			{{- range .Children }}
				{{ template "node" . }}
			{{- end }}
		</ul>
		{{- end }}
	</li>
	{{ end }}
</body>
</html>
`

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<title>{{.Title}}</title>
	{{- if .IncludeStyles }}{{ template "styles" }}{{ end }}
</head>
<body>
	<header class="top">
		<h1>{{.Title}}</h1>
		<p>{{len .Items}} files · HIGH {{index .Counts "HIGH"}} · MED {{index .Counts "MED"}} · LOW {{index .Counts "LOW"}} · errors {{index .Counts "ERROR"}}</p>
	</header>
	<main>
		<table>
			<thead><tr><th>File</th><th>Risk</th><th>Cost</th><th>Data</th><th>Warnings</th><th>Query</th></tr></thead>
			<tbody>
			{{- range .Items }}
			<tr>
				<td>{{if .ReportRel}}<a href="{{.ReportRel}}">{{.Title}}</a>{{else}}{{.Title}}{{end}}<div class="meta">{{.File}}</div></td>
				<td><span class="chip {{.RiskClass}}">{{.Risk}}</span></td>
				<td>{{.Cost}}</td>
				<td>{{.Data}}</td>
				<td>{{.Warnings}}</td>
				<td>{{if .Error}}<span class="node-warning">{{.Error}}</span>{{else}}<code>{{.Excerpt}}</code>{{end}}</td>
			</tr>
			{{- end }}
			</tbody>
		</table>
	</main>
</body>
</html>
`
