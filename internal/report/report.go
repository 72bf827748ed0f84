package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"slices"
	"text/template"
	"time"

	"github.com/FranksOps/serprank/internal/storage"
)

// RankRow is one (query, domain) outcome.
type RankRow struct {
	Query     string    `json:"query"`
	Domain    string    `json:"domain"`
	Rank      string    `json:"rank"`
	State     string    `json:"state"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary aggregates the records of one or more runs.
type Summary struct {
	TotalRecords    int
	Queries         int
	Pages           int
	Results         int
	Failures        int
	DomainsFound    int
	DomainsNotFound int
	States          map[string]int
	Providers       map[string]int
	Ranks           []RankRow
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}

// GenerateSummary processes persisted records into a summary. Rank rows are
// ordered by query, then domain.
func GenerateSummary(records []*storage.Record) Summary {
	s := Summary{
		States:    make(map[string]int),
		Providers: make(map[string]int),
	}

	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].CreatedAt
	s.EndTime = records[0].CreatedAt
	queries := make(map[string]bool)

	for _, r := range records {
		s.TotalRecords++
		queries[r.Query] = true
		if r.Provider != "" {
			s.Providers[r.Provider]++
		}

		switch r.Kind {
		case storage.KindPage:
			s.Pages++
			for _, it := range r.Items {
				if it.Error == "" {
					s.Results++
				}
			}
			if r.Error != "" {
				s.Failures++
			}
		case storage.KindDomain:
			if r.Rank.Found() {
				s.DomainsFound++
			} else {
				s.DomainsNotFound++
			}
			if r.State != "" {
				s.States[r.State]++
			}
			s.Ranks = append(s.Ranks, RankRow{
				Query:     r.Query,
				Domain:    r.Domain,
				Rank:      rankText(r),
				State:     r.State,
				Link:      r.Link,
				CreatedAt: r.CreatedAt,
			})
		case storage.KindFailure:
			s.Failures++
			s.States[r.State]++
		}

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	slices.SortStableFunc(s.Ranks, func(a, b RankRow) int {
		return cmp.Or(cmp.Compare(a.Query, b.Query), cmp.Compare(a.Domain, b.Domain))
	})

	s.Queries = len(queries)
	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

func rankText(r *storage.Record) string {
	if r.Rank.IsZero() {
		return "-"
	}
	return r.Rank.String()
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `SERP Rank Summary
-----------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Queries:       {{.Queries}}
Pages:         {{.Pages}} ({{.Results}} results)
Failures:      {{.Failures}}
Domains:       {{.DomainsFound}} found, {{.DomainsNotFound}} not found

Outcomes:
{{- range $state, $count := .States}}
  {{$state}}: {{$count}}
{{- else}}
  None
{{- end}}

Ranks:
{{- range .Ranks}}
  {{printf "%-30s %-25s %6s" .Query .Domain .Rank}}  {{.State}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	return nil
}

// WriteHTML writes a basic HTML report to the provided writer. Record fields
// are escaped.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>SERP Rank Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>SERP Rank Report</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Queries</div>
    <div class="stat-val">{{.Queries}}</div>
  </div>
  <div class="stat-card">
    <div>Results</div>
    <div class="stat-val">{{.Results}}</div>
  </div>
  <div class="stat-card">
    <div>Found</div>
    <div class="stat-val">{{.DomainsFound}}</div>
  </div>
  <div class="stat-card">
    <div>Failures</div>
    <div class="stat-val" style="color: {{if gt .Failures 0}}red{{else}}green{{end}};">{{.Failures}}</div>
  </div>

  <h3>Ranks</h3>
  <table>
    <tr><th>Query</th><th>Domain</th><th>Rank</th><th>State</th><th>Link</th></tr>
    {{- range .Ranks}}
    <tr><td>{{.Query}}</td><td>{{.Domain}}</td><td>{{.Rank}}</td><td>{{.State}}</td><td>{{if .Link}}<a href="{{.Link}}">{{.Link}}</a>{{end}}</td></tr>
    {{- else}}
    <tr><td colspan="5">None</td></tr>
    {{- end}}
  </table>

  <h3>Outcomes</h3>
  <table>
    <tr><th>State</th><th>Count</th></tr>
    {{- range $state, $count := .States}}
    <tr><td>{{$state}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`
	t, err := htmltemplate.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	return nil
}

// Write renders summary in the named format: text, json or html.
func Write(w io.Writer, format string, summary Summary) error {
	switch format {
	case "", "text":
		return WriteText(w, summary)
	case "json":
		return WriteJSON(w, summary)
	case "html":
		return WriteHTML(w, summary)
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}
