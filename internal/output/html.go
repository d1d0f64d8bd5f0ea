package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
)

// htmlReportData contains all data needed to render the HTML report.
type htmlReportData struct {
	*Report
	Best       *PeriodReport
	Failed     int
	PeriodJSON template.JS
}

// chartPoint is one period in the chart data.
type chartPoint struct {
	Period     int     `json:"period"`
	Workers    int     `json:"workers"`
	Throughput float64 `json:"throughput"`
	MeanMs     float64 `json:"meanMs"`
	P95Ms      float64 `json:"p95Ms"`
	Success    bool    `json:"success"`
}

var htmlReport = template.Must(template.New("report").Funcs(template.FuncMap{
	"ms":      formatMs,
	"percent": func(f float64) string { return fmt.Sprintf("%.2f%%", f*100) },
	"bytes":   formatBytes,
}).Parse(htmlTemplate))

func writeHTML(w io.Writer, report *Report) error {
	points := make([]chartPoint, len(report.Periods))
	data := htmlReportData{Report: report}
	for i := range report.Periods {
		p := &report.Periods[i]
		points[i] = chartPoint{
			Period:     p.Period,
			Workers:    p.Concurrency,
			Throughput: p.AchievedThroughput,
			MeanMs:     p.MeanResponseTimeMs,
			P95Ms:      p.Latency.P95,
			Success:    p.Success,
		}
		if !p.Success {
			data.Failed++
		}
		if p.Success && p.Concurrency == report.MaxThroughput {
			data.Best = p
		}
	}

	raw, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to encode chart data: %w", err)
	}
	data.PeriodJSON = template.JS(raw)

	if err := htmlReport.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

// formatMs formats a millisecond value with a precision that fits its size.
func formatMs(ms float64) string {
	switch {
	case ms == 0:
		return "0"
	case ms < 1:
		return fmt.Sprintf("%.0fµs", ms*1000)
	case ms < 10:
		return fmt.Sprintf("%.2fms", ms)
	case ms < 1000:
		return fmt.Sprintf("%.1fms", ms)
	default:
		return fmt.Sprintf("%.2fs", ms/1000)
	}
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{if .Name}}{{.Name}}{{else}}loader{{end}} - Throughput Search Report</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f8fafc;
            --text-primary: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
            --accent-primary: #3b82f6;
            --accent-success: #22c55e;
            --accent-error: #ef4444;
            --shadow: 0 1px 3px rgba(0, 0, 0, 0.1);
        }
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background-color: var(--bg-secondary);
            color: var(--text-primary);
            line-height: 1.6;
        }
        .container { max-width: 1200px; margin: 0 auto; padding: 2rem; }
        .card {
            background: var(--bg-primary);
            border-radius: 12px;
            padding: 1.5rem;
            margin-bottom: 1.5rem;
            box-shadow: var(--shadow);
        }
        h1 { font-size: 1.75rem; }
        h2 { font-size: 1.1rem; margin-bottom: 1rem; }
        .muted { color: var(--text-secondary); font-size: 0.9rem; }
        .verdict { font-size: 1.25rem; font-weight: 700; margin-top: 0.5rem; }
        .verdict.pass { color: var(--accent-success); }
        .verdict.fail { color: var(--accent-error); }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 1rem; }
        .metric .label { color: var(--text-secondary); font-size: 0.8rem; text-transform: uppercase; }
        .metric .value { font-size: 1.4rem; font-weight: 600; }
        table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
        th, td { padding: 0.5rem; text-align: right; border-bottom: 1px solid var(--border-color); }
        th:first-child, td:first-child, th:nth-child(2), td:nth-child(2) { text-align: left; }
        tr.miss td { color: var(--accent-error); }
        .chart-wrapper { position: relative; height: 320px; }
    </style>
</head>
<body>
<div class="container">
    <div class="card">
        <h1>{{if .Name}}{{.Name}}{{else}}loader{{end}}</h1>
        <p class="muted">Run {{.RunID}} &middot; {{.StartTime}} &rarr; {{.EndTime}}</p>
        {{if gt .MaxThroughput 0}}
        <p class="verdict pass">Max sustainable throughput: {{.MaxThroughput}} workers</p>
        {{else}}
        <p class="verdict fail">No sustainable throughput found</p>
        {{end}}
        <p class="muted">Stop reason: {{.Reason}}</p>
    </div>

    <div class="card grid">
        <div class="metric"><div class="label">Target (mean)</div><div class="value">&lt; {{ms .Config.ResponseTimeTargetMs}}</div></div>
        <div class="metric"><div class="label">Period length</div><div class="value">{{.Config.PeriodLengthMs}}ms</div></div>
        <div class="metric"><div class="label">Periods</div><div class="value">{{len .Periods}} ({{.Failed}} missed)</div></div>
        {{with .Best}}
        <div class="metric"><div class="label">Throughput at max</div><div class="value">{{printf "%.2f" .AchievedThroughput}}/s</div></div>
        <div class="metric"><div class="label">Mean at max</div><div class="value">{{ms .MeanResponseTimeMs}}</div></div>
        <div class="metric"><div class="label">p95 at max</div><div class="value">{{ms .Latency.P95}}</div></div>
        {{end}}
    </div>

    <div class="card">
        <h2>Response time by period</h2>
        <div class="chart-wrapper"><canvas id="latencyChart"></canvas></div>
    </div>

    <div class="card">
        <h2>Periods</h2>
        <table>
            <thead>
                <tr><th>#</th><th>Mode</th><th>Workers</th><th>Throughput/s</th><th>Mean</th><th>p95</th><th>p99</th><th>TTFB</th><th>Received</th><th>Samples</th><th>Errors</th><th>Result</th></tr>
            </thead>
            <tbody>
            {{range .Periods}}
                <tr class="{{if .Success}}pass{{else}}miss{{end}}">
                    <td>{{.Period}}</td>
                    <td>{{.Mode}}</td>
                    <td>{{.Concurrency}}</td>
                    <td>{{printf "%.2f" .AchievedThroughput}}</td>
                    <td>{{if .Degenerate}}n/a{{else}}{{ms .MeanResponseTimeMs}}{{end}}</td>
                    <td>{{ms .Latency.P95}}</td>
                    <td>{{ms .Latency.P99}}</td>
                    <td>{{ms .MeanTTFBMs}}</td>
                    <td>{{bytes .BytesReceived}}</td>
                    <td>{{.Samples}}</td>
                    <td>{{.Failures}} ({{percent .ErrorRate}})</td>
                    <td>{{if .Success}}pass{{else}}miss{{end}}</td>
                </tr>
            {{end}}
            </tbody>
        </table>
    </div>
</div>
<script>
    const periods = {{.PeriodJSON}};
    const target = {{.Config.ResponseTimeTargetMs}};

    document.addEventListener('DOMContentLoaded', function() {
        if (typeof Chart === 'undefined' || periods.length === 0) {
            return;
        }
        new Chart(document.getElementById('latencyChart'), {
            data: {
                labels: periods.map(p => '#' + p.period + ' (' + p.workers + ')'),
                datasets: [
                    { type: 'line', label: 'Mean (ms)', data: periods.map(p => p.meanMs), borderColor: '#3b82f6', yAxisID: 'y' },
                    { type: 'line', label: 'p95 (ms)', data: periods.map(p => p.p95Ms), borderColor: '#f59e0b', yAxisID: 'y' },
                    { type: 'line', label: 'Target (ms)', data: periods.map(() => target), borderColor: '#ef4444', borderDash: [6, 4], pointRadius: 0, yAxisID: 'y' },
                    { type: 'bar', label: 'Throughput/s', data: periods.map(p => p.throughput),
                      backgroundColor: periods.map(p => p.success ? 'rgba(34,197,94,0.35)' : 'rgba(239,68,68,0.35)'), yAxisID: 'y1' }
                ]
            },
            options: {
                responsive: true,
                maintainAspectRatio: false,
                scales: {
                    y: { position: 'left', title: { display: true, text: 'ms' } },
                    y1: { position: 'right', grid: { drawOnChartArea: false }, title: { display: true, text: 'req/s' } }
                }
            }
        });
    });
</script>
</body>
</html>
`
