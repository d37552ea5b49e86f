package profile

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/datakit-cli/internal/table"
	"github.com/KaramelBytes/datakit-cli/internal/utils"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"gitlab.com/tozd/go/errors"
)

var (
	heavyRule = strings.Repeat("=", 80)
	lightRule = strings.Repeat("-", 80)
)

func problems(p *Profile) []string {
	var out []string
	if len(p.HighNull) > 0 {
		out = append(out, fmt.Sprintf("%d columns with >%.0f%% missing values: %s", len(p.HighNull), HighNullPct, strings.Join(p.HighNull, ", ")))
	}
	if p.DuplicatePct > DuplicateProblemPct {
		out = append(out, fmt.Sprintf("%.1f%% of rows are duplicates", p.DuplicatePct))
	}
	if len(p.Constant) > 0 {
		out = append(out, "columns without variation: "+strings.Join(p.Constant, ", "))
	}
	if len(p.VeryHighCard) > 0 {
		out = append(out, "columns with very high cardinality: "+strings.Join(p.VeryHighCard, ", "))
	}
	if p.MemoryMB > LargeMemoryMB {
		out = append(out, fmt.Sprintf("large dataset (%.0f MB), consider narrower types or sampling", p.MemoryMB))
	}
	return out
}

// Text renders the full plain-text report.
func (p *Profile) Text() string {
	var b strings.Builder
	p.render(&b)
	return b.String()
}

func (p *Profile) render(b *strings.Builder) {
	line := func(format string, args ...any) {
		fmt.Fprintf(b, format, args...)
		b.WriteByte('\n')
	}
	section := func(title string) {
		line("")
		line("%s", lightRule)
		line("%s", title)
		line("%s", lightRule)
	}

	line("")
	line("%s", heavyRule)
	line("DATA PROFILE: %s", strings.ToUpper(p.Name))
	line("%s", heavyRule)
	line("Generated: %s", p.GeneratedAt.Format("2006-01-02 15:04:05"))

	if p.Empty() {
		line("")
		line("Dataset %s is empty (%d rows x %d columns); nothing to profile.", p.Name, p.Rows, p.Cols)
		return
	}

	section("1. DIMENSIONS")
	line("   Rows:          %s", groupInt(p.Rows))
	line("   Columns:       %s", groupInt(p.Cols))
	line("   Memory:        %.2f MB", p.MemoryMB)
	line("   Total cells:   %s", groupInt(p.Rows*p.Cols))

	section("2. TYPES AND MISSING VALUES")
	line("")
	line("   Kinds:")
	for _, k := range p.Kinds {
		line("      - %s: %d columns", k.Kind, k.Count)
	}
	var withNulls [][]string
	for _, c := range sortedByNulls(p.Columns) {
		if c.Nulls == 0 {
			continue
		}
		withNulls = append(withNulls, []string{c.Name, c.Kind.String(), strconv.Itoa(c.NonNull), strconv.Itoa(c.Nulls), fmt.Sprintf("%.2f", c.NullPct)})
	}
	line("")
	if len(withNulls) == 0 {
		line("   No missing values.")
	} else {
		line("   Columns with missing values (%d):", len(withNulls))
		line("%s", grid([]string{"column", "kind", "non-null", "null", "% null"}, withNulls))
	}

	section("3. DUPLICATE ROWS")
	line("   Duplicate rows: %s (%.2f%%)", groupInt(p.Duplicates), p.DuplicatePct)
	if p.Duplicates > 0 {
		line("   Consider dropping exact duplicates before analysis.")
	}

	section("4. DESCRIPTIVE STATISTICS (NUMERIC COLUMNS)")
	if len(p.Numeric) == 0 {
		line("")
		line("   No numeric columns.")
	} else {
		line("")
		line("   Numeric columns: %d", len(p.Numeric))
		rows := make([][]string, 0, len(p.Numeric))
		for _, n := range p.Numeric {
			rows = append(rows, []string{
				n.Name, strconv.Itoa(n.Count), num(n.Mean), num(n.Std), num(n.Min),
				num(n.Q1), num(n.Median), num(n.Q3), num(n.Max), num(n.Range), num(n.CV),
			})
		}
		line("%s", grid([]string{"column", "count", "mean", "std", "min", "25%", "50%", "75%", "max", "range", "cv%"}, rows))
		if len(p.Constant) > 0 {
			line("")
			line("   Columns without variation: %s", strings.Join(p.Constant, ", "))
			line("   They carry no information and can usually be dropped.")
		}
	}

	if p.Options.Correlations && len(p.Numeric) > 0 {
		section("5. CORRELATIONS BETWEEN NUMERIC COLUMNS")
		if len(p.Pairs) == 0 {
			line("")
			line("   Not enough numeric columns to correlate.")
		} else {
			line("")
			line("   Top %d correlations by strength:", min(TopPairs, len(p.Pairs)))
			for i, pr := range p.Pairs {
				if i == TopPairs {
					break
				}
				line("      [%-8s] %2d. %-20s <-> %-20s : %+.3f", pr.Strength(), i+1, pr.A, pr.B, pr.R)
			}
			if p.StrongPairs > 0 {
				line("")
				line("   %d pairs correlate above %.1f; likely redundant columns.", p.StrongPairs, RedundantCorrelation)
			}
		}
	}

	if p.Options.Categories {
		section("6. CATEGORY FREQUENCIES")
		if len(p.Categorical) == 0 {
			line("")
			line("   No text columns.")
		} else {
			line("")
			line("   Text columns: %d", len(p.Categorical))
			for _, c := range p.Categories {
				line("")
				line("   * %s", c.Name)
				line("      Distinct values: %s (%.1f%% of rows)", groupInt(c.Distinct), c.Ratio*100)
				if c.High {
					line("      High cardinality (>%.0f%% distinct), probably an identifier or free text", HighCardinality*100)
				}
				line("      Top %d:", TopCategoryCount)
				for _, v := range c.Top {
					label := v.Value
					if v.Missing {
						label = "<missing>"
					}
					line("         - %-30s: %6s (%5.1f%%)", label, groupInt(v.Count), v.Pct)
				}
			}
			if p.MoreCategorical > 0 {
				line("")
				line("   ... and %d more text columns", p.MoreCategorical)
			}
		}
	}

	section("7. POTENTIAL PROBLEMS")
	line("")
	if len(p.Problems) == 0 {
		line("   No significant problems detected.")
	} else {
		line("   Problems detected:")
		for i, pr := range p.Problems {
			line("      %d. %s", i+1, pr)
		}
	}

	line("")
	line("%s", heavyRule)
	line("SUMMARY")
	line("%s", heavyRule)
	line("   Dataset:          %s", p.Name)
	line("   Size:             %s rows x %s columns", groupInt(p.Rows), groupInt(p.Cols))
	line("   Memory:           %.2f MB", p.MemoryMB)
	line("   Duplicates:       %s (%.1f%%)", groupInt(p.Duplicates), p.DuplicatePct)
	line("   High-null cols:   %d", len(p.HighNull))
	line("   Problems:         %d", len(p.Problems))
	line("%s", heavyRule)
}

func sortedByNulls(cols []ColumnNulls) []ColumnNulls {
	out := append([]ColumnNulls(nil), cols...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].NullPct > out[j].NullPct })
	return out
}

func grid(headers []string, rows [][]string) string {
	t := lgtable.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style { return lipgloss.NewStyle().Padding(0, 1) }).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}

func num(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "NaN"
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// groupInt formats n with thousands separators.
func groupInt(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// Generate analyzes t, writes the report to w and returns the summary. An
// empty table yields a notice and a zero summary, not an error.
func Generate(w io.Writer, t *table.Table, opt Options) (*Profile, error) {
	p := Analyze(t, opt)
	if _, err := io.WriteString(w, p.Text()); err != nil {
		return p, errors.WithStack(err)
	}
	return p, nil
}

// ReportName builds the default report file name for a dataset.
func ReportName(name string, now time.Time) string {
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	if slug == "" {
		slug = "dataset"
	}
	return fmt.Sprintf("data_profile_%s_%s.txt", slug, now.Format("20060102_150405"))
}

// SaveReport writes text into dir, creating dir when missing. An empty
// filename uses ReportName.
func SaveReport(dir, filename, name, text string, now time.Time) (string, error) {
	if filename == "" {
		filename = ReportName(name, now)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Errorf("create report dir: %w", err)
	}
	out := filepath.Join(dir, filename)
	if err := utils.SafeWriteFile(out, bytes.TrimLeft([]byte(text), "\n")); err != nil {
		return "", err
	}
	return out, nil
}
