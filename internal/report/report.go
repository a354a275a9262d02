// Package report renders a consolidated analysis for people rather than
// programs.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"filing-analyzer/internal/models"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var headings = map[string]string{
	models.FieldKeyFinancialMetrics:  "Key Financial Metrics",
	models.FieldRisksAndChallenges:   "Risks and Challenges",
	models.FieldStrategicInitiatives: "Strategic Initiatives",
	models.FieldSignificantChanges:   "Significant Changes",
}

// Markdown renders the record as one section per category.
func Markdown(record models.AnalysisRecord, title string) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	for _, key := range models.Fields {
		fmt.Fprintf(&b, "## %s\n\n", headings[key])
		values := record.Field(key)
		if len(values) == 0 {
			b.WriteString("_No insights._\n\n")
			continue
		}
		for _, v := range values {
			fmt.Fprintf(&b, "- %s\n", escape(v))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// HTML renders the Markdown form to an HTML fragment.
func HTML(record models.AnalysisRecord, title string) ([]byte, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(record, title)), &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var mdEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"*", "\\*",
	"_", "\\_",
	"`", "\\`",
	"<", "&lt;",
	"\n", " ",
)

func escape(s string) string {
	return mdEscaper.Replace(s)
}
