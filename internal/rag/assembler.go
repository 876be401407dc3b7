package rag

import (
	"fmt"
	"strings"

	"github.com/youthpolicy/policyrag/internal/model"
)

const (
	// NoPolicyContext is the context for an empty index result
	NoPolicyContext = "관련 정책 정보가 없습니다."
	// NoWebContext is the context for an empty web search result
	NoWebContext = "관련된 웹 검색 결과가 없습니다."

	// DefaultMaxChars bounds each match's content in the context
	DefaultMaxChars = 300
)

// Assembler renders retrieved matches into the context block handed to the
// synthesizer. Output is a pure function of its input.
type Assembler struct {
	// MaxChars bounds each match's content, counted in characters
	MaxChars int
	// Empty is returned for an empty match list
	Empty string
}

// NewAssembler returns an assembler for index matches
func NewAssembler(maxChars int) Assembler {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return Assembler{MaxChars: maxChars, Empty: NoPolicyContext}
}

// IsEmpty reports whether context is the sentinel for no matches
func (a Assembler) IsEmpty(context string) bool {
	return context == a.empty()
}

func (a Assembler) empty() string {
	if a.Empty == "" {
		return NoPolicyContext
	}
	return a.Empty
}

// Assemble renders one numbered block per match, in the given order
func (a Assembler) Assemble(matches []model.Match) string {
	if len(matches) == 0 {
		return a.empty()
	}

	maxChars := a.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, renderBlock(m, maxChars))
	}
	return strings.Join(blocks, "\n\n")
}

func renderBlock(m model.Match, maxChars int) string {
	var b strings.Builder

	if m.Source == model.SourceWeb {
		fmt.Fprintf(&b, "검색 결과 %d: %s\n", m.Rank, m.Title())
		writeLine(&b, "출처", m.Get(model.KeySource))
		writeLine(&b, "링크", m.Get(model.KeyPageURL))
		writeLine(&b, "내용", Truncate(m.Text, maxChars))
		return strings.TrimRight(b.String(), "\n")
	}

	fmt.Fprintf(&b, "정책 %d: %s\n", m.Rank, m.Title())
	writeLine(&b, "주관기관", m.Get(model.KeyAgency))
	writeLine(&b, "연령", m.Get(model.KeyAgeRange))
	writeLine(&b, "신청기간", applyPeriod(m))
	writeLine(&b, "신청사이트", m.Get(model.KeyApplicationSite))
	writeLine(&b, "내용", Truncate(m.Text, maxChars))
	fmt.Fprintf(&b, "유사도 점수: %.3f", m.Score)
	return b.String()
}

func writeLine(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

// applyPeriod renders "start ~ end", or "" when both ends are unknown
func applyPeriod(m model.Match) string {
	start, end := m.Get(model.KeyApplyStart), m.Get(model.KeyApplyEnd)
	if start == "" && end == "" {
		return ""
	}
	return start + " ~ " + end
}

// Truncate cuts s to at most n characters and appends "..." when it cut.
// It never splits a multi-byte character.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "..."
		}
		count++
	}
	return s
}
