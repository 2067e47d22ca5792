package service

import (
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/thejosephstevens/model-experiments/entity"
)

var (
	ErrBaselineMetricsNotFound  = errors.New("baseline metrics not found")
	ErrFineTunedMetricsNotFound = errors.New("fine-tuned metrics not found")
	ErrInvalidComparisonFormat  = errors.New("invalid comparison format")
	ErrNoCommonMetrics          = errors.New("reports share no metrics to compare")
)

const (
	ComparisonFormatTable = "table"
	ComparisonFormatJSON  = "json"
	ComparisonFormatHTML  = "html"

	ComparisonFileName   = "comparison.json"
	ComparisonReportName = "report.html"
)

// CompareRequest points at two persisted MetricsReports and names the
// output directory.
type CompareRequest struct {
	BaselinePath  string
	FineTunedPath string
	OutputDir     string
	Format        string
	SaveReport    bool // also write report.html
}

// CompareOutcome carries the computed result plus the rendered form selected
// by Format.
type CompareOutcome struct {
	Result     entity.ComparisonResult
	Rendered   string
	OutputPath string
	ReportPath string
}

// CompareService diffs two evaluation reports and persists comparison.json,
// optionally with an HTML report.
type CompareService struct{}

func NewCompareService() *CompareService {
	return &CompareService{}
}

func (s *CompareService) Compare(req CompareRequest) (CompareOutcome, error) {
	logger := serviceLogger().With("service", "CompareService", "method", "Compare")

	format, err := normalizeComparisonFormat(req.Format)
	if err != nil {
		return CompareOutcome{}, err
	}

	var baseline entity.MetricsReport
	if err := readJSONFile(req.BaselinePath, &baseline); err != nil {
		return CompareOutcome{}, fmt.Errorf("%w: %s (%v)", ErrBaselineMetricsNotFound, req.BaselinePath, err)
	}
	var fineTuned entity.MetricsReport
	if err := readJSONFile(req.FineTunedPath, &fineTuned); err != nil {
		return CompareOutcome{}, fmt.Errorf("%w: %s (%v)", ErrFineTunedMetricsNotFound, req.FineTunedPath, err)
	}

	result, err := BuildComparison(baseline, fineTuned)
	if err != nil {
		return CompareOutcome{}, err
	}

	outcome := CompareOutcome{Result: result}
	if strings.TrimSpace(req.OutputDir) != "" {
		outcome.OutputPath = filepath.Join(req.OutputDir, ComparisonFileName)
		if err := writeJSONFile(outcome.OutputPath, result); err != nil {
			return CompareOutcome{}, fmt.Errorf("persist comparison failed: %w", err)
		}
	}

	switch format {
	case ComparisonFormatTable:
		outcome.Rendered = renderComparisonTable(result)
	case ComparisonFormatJSON:
		outcome.Rendered = "" // comparison.json already holds the document
	case ComparisonFormatHTML:
		req.SaveReport = true
	}

	if req.SaveReport && strings.TrimSpace(req.OutputDir) != "" {
		outcome.ReportPath = filepath.Join(req.OutputDir, ComparisonReportName)
		if err := writeComparisonReport(outcome.ReportPath, result); err != nil {
			return CompareOutcome{}, fmt.Errorf("persist comparison report failed: %w", err)
		}
	}

	logger.Info("comparison success",
		"metrics", len(result.Comparison), "improvements", result.Improvements)
	return outcome, nil
}

// BuildComparison computes per-metric deltas over the metrics both reports
// share. Percent change is defined as 0 when the baseline value is 0.
func BuildComparison(baseline, fineTuned entity.MetricsReport) (entity.ComparisonResult, error) {
	names := make([]string, 0, len(baseline.Metrics))
	for name := range baseline.Metrics {
		if _, ok := fineTuned.Metrics[name]; ok {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return entity.ComparisonResult{}, ErrNoCommonMetrics
	}
	sort.Strings(names)

	comparison := make(map[string]entity.MetricComparison, len(names))
	improvements := make([]string, 0, len(names))
	for _, name := range names {
		before := baseline.Metrics[name]
		after := fineTuned.Metrics[name]
		diff := after - before

		percent := 0.0
		if before != 0 {
			percent = diff / before * 100
		}

		comparison[name] = entity.MetricComparison{
			Baseline:      before,
			FineTuned:     after,
			AbsoluteDiff:  diff,
			PercentChange: percent,
		}
		if diff > 0 {
			improvements = append(improvements, name)
		}
	}

	return entity.ComparisonResult{
		Baseline:     baseline,
		FineTuned:    fineTuned,
		Comparison:   comparison,
		Improvements: improvements,
	}, nil
}

func normalizeComparisonFormat(format string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(format))
	switch value {
	case "", ComparisonFormatTable:
		return ComparisonFormatTable, nil
	case ComparisonFormatJSON, ComparisonFormatHTML:
		return value, nil
	default:
		return "", fmt.Errorf("%w: %q (known: table, json, html)", ErrInvalidComparisonFormat, format)
	}
}

func renderComparisonTable(result entity.ComparisonResult) string {
	names := make([]string, 0, len(result.Comparison))
	for name := range result.Comparison {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %10s %12s %10s %10s\n", "metric", "baseline", "fine-tuned", "diff", "change%")
	for _, name := range names {
		row := result.Comparison[name]
		fmt.Fprintf(&b, "%-12s %10.4f %12.4f %+10.4f %+9.2f%%\n",
			name, row.Baseline, row.FineTuned, row.AbsoluteDiff, row.PercentChange)
	}
	if len(result.Improvements) > 0 {
		fmt.Fprintf(&b, "improved: %s\n", strings.Join(result.Improvements, ", "))
	}
	return b.String()
}

var comparisonReportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Model Comparison</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 6px 12px; text-align: right; }
th:first-child, td:first-child { text-align: left; }
.bar { background: #4a90d9; height: 12px; display: inline-block; }
.up { color: #2e7d32; }
.down { color: #c62828; }
</style>
</head>
<body>
<h1>Model Comparison</h1>
<p>Baseline: {{.Result.Baseline.ModelPath}} ({{.Result.Baseline.NumSamples}} samples)</p>
<p>Fine-tuned: {{.Result.FineTuned.ModelPath}} ({{.Result.FineTuned.NumSamples}} samples)</p>
<table>
<tr><th>Metric</th><th>Baseline</th><th>Fine-tuned</th><th>Diff</th><th>Change</th><th></th></tr>
{{range .Rows}}
<tr>
<td>{{.Name}}</td>
<td>{{printf "%.4f" .Baseline}}</td>
<td>{{printf "%.4f" .FineTuned}}</td>
<td class="{{if gt .AbsoluteDiff 0.0}}up{{else if lt .AbsoluteDiff 0.0}}down{{end}}">{{printf "%+.4f" .AbsoluteDiff}}</td>
<td>{{printf "%+.2f%%" .PercentChange}}</td>
<td><span class="bar" style="width: {{.BarWidth}}px"></span></td>
</tr>
{{end}}
</table>
</body>
</html>
`))

type comparisonReportRow struct {
	Name string
	entity.MetricComparison
	BarWidth int
}

func writeComparisonReport(path string, result entity.ComparisonResult) error {
	names := make([]string, 0, len(result.Comparison))
	for name := range result.Comparison {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]comparisonReportRow, 0, len(names))
	for _, name := range names {
		row := result.Comparison[name]
		width := int(row.FineTuned * 200)
		if width < 0 {
			width = 0
		}
		rows = append(rows, comparisonReportRow{Name: name, MetricComparison: row, BarWidth: width})
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir failed: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report failed: %w", err)
	}
	defer file.Close()

	return comparisonReportTemplate.Execute(file, struct {
		Result entity.ComparisonResult
		Rows   []comparisonReportRow
	}{Result: result, Rows: rows})
}
