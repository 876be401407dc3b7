package rag

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/youthpolicy/policyrag/internal/model"
)

func indexMatch(rank int, score float64, text string, meta map[string]string) model.Match {
	return model.Match{Rank: rank, Score: score, Text: text, Metadata: meta, Source: model.SourceIndex}
}

func TestAssembler_Empty(t *testing.T) {
	a := NewAssembler(0)
	assert.Equal(t, NoPolicyContext, a.Assemble(nil))
	assert.Equal(t, NoPolicyContext, a.Assemble([]model.Match{}))
	assert.True(t, a.IsEmpty(a.Assemble(nil)))

	web := Assembler{Empty: NoWebContext}
	assert.Equal(t, NoWebContext, web.Assemble(nil))
	assert.False(t, web.IsEmpty(NoPolicyContext))
}

func TestAssembler_Block(t *testing.T) {
	a := NewAssembler(300)
	got := a.Assemble([]model.Match{
		indexMatch(1, 0.8734, "청년 취업 지원", map[string]string{
			model.KeyTitle:           "청년 일자리 매칭",
			model.KeyAgency:          "서울시 일자리정책과",
			model.KeyApplyStart:      "2024-01-01",
			model.KeyApplyEnd:        "2024-01-31",
			model.KeyApplicationSite: "https://apply.example.kr",
		}),
		indexMatch(2, 0.5, "주거비 보조", map[string]string{}),
	})

	want := "정책 1: 청년 일자리 매칭\n" +
		"주관기관: 서울시 일자리정책과\n" +
		"신청기간: 2024-01-01 ~ 2024-01-31\n" +
		"신청사이트: https://apply.example.kr\n" +
		"내용: 청년 취업 지원\n" +
		"유사도 점수: 0.873\n" +
		"\n" +
		"정책 2: 제목 없음\n" +
		"내용: 주거비 보조\n" +
		"유사도 점수: 0.500"
	assert.Equal(t, want, got)
}

func TestAssembler_Deterministic(t *testing.T) {
	a := NewAssembler(10)
	matches := []model.Match{indexMatch(1, 0.9, strings.Repeat("가", 50), map[string]string{model.KeyTitle: "t"})}
	assert.Equal(t, a.Assemble(matches), a.Assemble(matches))
}

func TestAssembler_TruncatesOnCharacters(t *testing.T) {
	a := NewAssembler(5)
	got := a.Assemble([]model.Match{indexMatch(1, 1, "청년일자리지원사업", map[string]string{model.KeyTitle: "t"})})

	assert.Contains(t, got, "내용: 청년일자리...\n")
	assert.True(t, utf8.ValidString(got))
}

func TestAssembler_WebBlock(t *testing.T) {
	a := Assembler{MaxChars: 300, Empty: NoWebContext}
	got := a.Assemble([]model.Match{{
		Rank:   1,
		Text:   "스니펫",
		Source: model.SourceWeb,
		Metadata: map[string]string{
			model.KeyTitle:   "뉴스",
			model.KeySource:  "news.example.kr",
			model.KeyPageURL: "https://news.example.kr/1",
		},
	}})

	assert.Equal(t, "검색 결과 1: 뉴스\n출처: news.example.kr\n링크: https://news.example.kr/1\n내용: 스니펫", got)
	assert.NotContains(t, got, "유사도")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"abc", 3, "abc"},
		{"abcd", 3, "abc..."},
		{"청년정책", 2, "청년..."},
		{"청년", 2, "청년"},
		{"", 5, ""},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truncate(tt.in, tt.n), "%q/%d", tt.in, tt.n)
	}
}
