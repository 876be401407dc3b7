package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/youthpolicy/policyrag/internal/model"
)

// RangeDelimiter separates the start and end of a period value.
const RangeDelimiter = "~"

// UntitledPolicy is the title given to pages without one.
const UntitledPolicy = "제목 없음"

// Kind is the semantic type of a table field
type Kind int

const (
	// Text copies the cleaned cell text
	Text Kind = iota
	// Site takes the target of the cell's first anchor
	Site
	// Span splits the cell text on RangeDelimiter into start and end fields
	Span
)

// Setter writes one value into a record
type Setter func(r *model.PolicyRecord, v string)

// Rule maps a label pattern to a record field
type Rule struct {
	Pattern string
	Kind    Kind
	Set     Setter
	SetEnd  Setter // Span only
}

// Table is the label table of one canonical section
type Table struct {
	Name   string // canonical name: overview, eligibility, application-method, other
	Marker string // substring the source section title must contain
	Rules  []Rule
}

// Normalizer turns section trees into PolicyRecords.
// It is safe for concurrent use.
type Normalizer struct {
	tables []Table
}

// NewNormalizer creates a normalizer over the given tables. Rules inside each
// table are ordered by descending pattern length so that the most specific
// pattern wins when several contain the same label.
func NewNormalizer(tables []Table) *Normalizer {
	sorted := make([]Table, len(tables))
	for i, t := range tables {
		rules := make([]Rule, len(t.Rules))
		copy(rules, t.Rules)
		sort.SliceStable(rules, func(a, b int) bool {
			return utf8.RuneCountInString(rules[a].Pattern) > utf8.RuneCountInString(rules[b].Pattern)
		})
		t.Rules = rules
		sorted[i] = t
	}
	return &Normalizer{tables: sorted}
}

var defaultNormalizer = NewNormalizer(DefaultTables())

// Normalize converts a page with the default tables.
func Normalize(page model.SourcePage) model.PolicyRecord {
	return defaultNormalizer.Normalize(page)
}

// Normalize converts a section tree into a PolicyRecord. It never fails:
// unknown sections and labels are dropped and missing fields stay empty.
func (n *Normalizer) Normalize(page model.SourcePage) model.PolicyRecord {
	rec := model.PolicyRecord{
		PolicyID: Clean(page.PolicyID),
		Title:    Clean(page.Title),
		PageURL:  Clean(page.PageURL),
		Tags:     CleanTags(page.Tags),
	}

	seen := make(map[string]bool, len(n.tables))
	for _, section := range page.Sections {
		table := n.tableFor(section.Title)
		if table == nil || seen[table.Name] {
			continue
		}
		seen[table.Name] = true

		for _, row := range section.Rows {
			rule := table.lookup(Clean(row.Label))
			if rule == nil {
				continue
			}
			rule.apply(&rec, row.Value)
		}
	}

	if rec.Title == "" {
		rec.Title = UntitledPolicy
	}
	if rec.PolicyID == "" {
		rec.PolicyID = DerivedID(rec.PageURL, rec.Title)
	}
	return rec
}

// tableFor returns the first table whose marker the section title contains
func (n *Normalizer) tableFor(title string) *Table {
	title = Clean(title)
	if title == "" {
		return nil
	}
	for i := range n.tables {
		if strings.Contains(title, n.tables[i].Marker) {
			return &n.tables[i]
		}
	}
	return nil
}

func (t *Table) lookup(label string) *Rule {
	if label == "" {
		return nil
	}
	for i := range t.Rules {
		if strings.Contains(label, t.Rules[i].Pattern) {
			return &t.Rules[i]
		}
	}
	return nil
}

func (r *Rule) apply(rec *model.PolicyRecord, cell model.Cell) {
	switch r.Kind {
	case Site:
		// a row without a link keeps any address found earlier
		if href := strings.TrimSpace(cell.Href); href != "" {
			r.Set(rec, href)
		}
	case Span:
		start, end := SplitRange(Clean(cell.Text))
		r.Set(rec, start)
		if r.SetEnd != nil {
			r.SetEnd(rec, end)
		}
	default:
		r.Set(rec, Clean(cell.Text))
	}
}

// Clean replaces non-breaking spaces and trims surrounding whitespace.
func Clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
}

// CleanTags cleans tags and drops empty and repeated ones, keeping first-seen
// order. The result is never nil.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = Clean(tag); tag != "" && !slices.Contains(out, tag) {
			out = append(out, tag)
		}
	}
	return out
}

// SplitRange splits a period value. The first segment is the start and the
// last segment is the end; middle segments are discarded. A value without the
// delimiter is all start with an empty end.
func SplitRange(v string) (start, end string) {
	if !strings.Contains(v, RangeDelimiter) {
		return v, ""
	}
	parts := strings.Split(v, RangeDelimiter)
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[len(parts)-1])
}

// DerivedID builds a stable id for pages that carry none.
func DerivedID(pageURL, title string) string {
	sum := sha256.Sum256([]byte(pageURL + "\n" + title))
	return "policy-" + hex.EncodeToString(sum[:])[:12]
}
