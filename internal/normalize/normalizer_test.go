package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youthpolicy/policyrag/internal/model"
)

func row(label, value string) model.Row {
	return model.Row{Label: label, Value: model.Cell{Text: value}}
}

func linkRow(label, text, href string) model.Row {
	return model.Row{Label: label, Value: model.Cell{Text: text, Href: href}}
}

func samplePage() model.SourcePage {
	return model.SourcePage{
		PolicyID: "R2024010112345",
		Title:    " 청년 취업 매칭 ",
		PageURL:  "https://youth.seoul.go.kr/infoData/plcyInfo/view.do?plcyBizId=R2024010112345",
		Tags:     []string{"일자리"},
		Sections: []model.Section{
			{
				Title: "사업개요",
				Rows: []model.Row{
					row("정책 유형", "일자리"),
					row("주관 기관", "서울특별시\u00a0청년정책과"),
					row("정책 소개", "청년 구직자와 기업을 연결합니다."),
					row("지원 내용", "취업 지원 상담 및 매칭"),
					row("사업운영기간", "2024-01-01 ~ 2024-12-31"),
					row("사업신청기간", "2024-01-01 ~ 2024-01-31"),
					row("지원규모", "300명"),
					linkRow("관련 사이트", "바로가기", "https://job.seoul.go.kr"),
				},
			},
			{
				Title: "신청자격 ",
				Rows: []model.Row{
					row("연령", "만 19세 ~ 39세"),
					row("학력", "제한없음"),
					row("취업상태", "미취업자"),
					row("알 수 없는 항목", "무시됨"),
				},
			},
			{
				Title: "신청방법",
				Rows: []model.Row{
					row("신청절차", "온라인 신청"),
					linkRow("신청 사이트", "신청하기", "https://apply.seoul.go.kr"),
				},
			},
			{
				Title: "기타",
				Rows: []model.Row{
					row("운영기관", "서울일자리센터"),
					linkRow("참고 사이트 Ⅰ", "참고1", "https://ref1.example"),
					linkRow("참고 사이트 Ⅱ", "참고2", ""),
				},
			},
		},
	}
}

func TestNormalize_Fields(t *testing.T) {
	rec := Normalize(samplePage())

	assert.Equal(t, "R2024010112345", rec.PolicyID)
	assert.Equal(t, "청년 취업 매칭", rec.Title)
	assert.Equal(t, "일자리", rec.PolicyType)
	assert.Equal(t, "서울특별시 청년정책과", rec.Agency)
	assert.Equal(t, "취업 지원 상담 및 매칭", rec.Content)
	assert.Equal(t, "2024-01-01 ~ 2024-12-31", rec.OperationPeriod)
	assert.Equal(t, "2024-01-01", rec.ApplyStart)
	assert.Equal(t, "2024-01-31", rec.ApplyEnd)
	assert.Equal(t, "300명", rec.SupportScale)
	assert.Equal(t, "https://job.seoul.go.kr", rec.RelatedSite)
	assert.Equal(t, "만 19세 ~ 39세", rec.AgeRange)
	assert.Equal(t, "미취업자", rec.EmploymentStatus)
	assert.Equal(t, "온라인 신청", rec.ApplicationProcedure)
	assert.Equal(t, "https://apply.seoul.go.kr", rec.ApplicationSite)
	assert.Equal(t, "서울일자리센터", rec.OperatingAgency)
	assert.Equal(t, "https://ref1.example", rec.ReferenceSite1)
	assert.Empty(t, rec.ReferenceSite2, "site fields never fall back to anchor text")
	assert.Equal(t, []string{"일자리"}, rec.Tags)
}

func TestNormalize_UnknownLabelsDropped(t *testing.T) {
	rec := Normalize(samplePage())

	for key, value := range rec.Metadata() {
		assert.NotEqual(t, "무시됨", value, "unexpected value under %s", key)
	}

	keys := make(map[string]bool)
	for _, kv := range rec.Scalars() {
		keys[kv.Key] = true
	}
	for key := range rec.Metadata() {
		assert.True(t, keys[key], "unexpected metadata key %s", key)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	page := samplePage()
	assert.Equal(t, Normalize(page), Normalize(page))
}

func TestNormalize_FirstSectionWins(t *testing.T) {
	page := model.SourcePage{
		PolicyID: "p1",
		Title:    "t",
		Sections: []model.Section{
			{Title: "사업개요", Rows: []model.Row{row("주관 기관", "first")}},
			{Title: "사업개요 (추가)", Rows: []model.Row{row("주관 기관", "second")}},
		},
	}
	assert.Equal(t, "first", Normalize(page).Agency)
}

func TestNormalize_SectionMarkerSubstring(t *testing.T) {
	page := model.SourcePage{
		PolicyID: "p1",
		Title:    "t",
		Sections: []model.Section{
			{Title: " ■ 신청자격 :", Rows: []model.Row{row("연령 ", "만 19~34세")}},
		},
	}
	assert.Equal(t, "만 19~34세", Normalize(page).AgeRange)
}

func TestNormalize_LongestPatternWins(t *testing.T) {
	var got struct{ short, long string }
	tables := []Table{{
		Name:   SectionOverview,
		Marker: "사업개요",
		Rules: []Rule{
			text("신청기간", func(_ *model.PolicyRecord, v string) { got.short = v }),
			text("사업신청기간", func(_ *model.PolicyRecord, v string) { got.long = v }),
		},
	}}
	n := NewNormalizer(tables)

	n.Normalize(model.SourcePage{Sections: []model.Section{
		{Title: "사업개요", Rows: []model.Row{row("사업신청기간", "A")}},
	}})
	assert.Equal(t, "A", got.long)
	assert.Empty(t, got.short)

	n.Normalize(model.SourcePage{Sections: []model.Section{
		{Title: "사업개요", Rows: []model.Row{row("신청기간", "B")}},
	}})
	assert.Equal(t, "B", got.short)
}

func TestNormalize_NewNormalizerDoesNotMutateInput(t *testing.T) {
	tables := []Table{{
		Name:   SectionOther,
		Marker: "기타",
		Rules: []Rule{
			text("a", func(*model.PolicyRecord, string) {}),
			text("abc", func(*model.PolicyRecord, string) {}),
		},
	}}
	NewNormalizer(tables)
	assert.Equal(t, "a", tables[0].Rules[0].Pattern)
}

func TestNormalize_Defaults(t *testing.T) {
	rec := Normalize(model.SourcePage{PageURL: "https://example.com/x"})

	assert.Equal(t, UntitledPolicy, rec.Title)
	require.NotEmpty(t, rec.PolicyID)
	assert.Equal(t, DerivedID("https://example.com/x", UntitledPolicy), rec.PolicyID)
	assert.NotNil(t, rec.Tags)
	assert.Empty(t, rec.Agency)
	assert.Empty(t, rec.ApplyEnd)
}

func TestNormalize_SiteRowWithoutLinkKeepsAddress(t *testing.T) {
	rec := Normalize(model.SourcePage{PolicyID: "x", Sections: []model.Section{{
		Title: "사업개요",
		Rows: []model.Row{
			linkRow("관련 사이트", "바로가기", "https://a.example"),
			row("관련 사이트", "없음"),
		},
	}}})
	assert.Equal(t, "https://a.example", rec.RelatedSite)

	rec = Normalize(model.SourcePage{PolicyID: "x", Sections: []model.Section{{
		Title: "사업개요",
		Rows: []model.Row{
			linkRow("관련 사이트", "첫째", "https://a.example"),
			linkRow("관련 사이트", "둘째", "https://b.example"),
		},
	}}})
	assert.Equal(t, "https://b.example", rec.RelatedSite)
}

func TestNormalize_TagsDeduplicated(t *testing.T) {
	rec := Normalize(model.SourcePage{PolicyID: "x", Tags: []string{"일자리", " 일자리", "", "주거", "일자리"}})
	assert.Equal(t, []string{"일자리", "주거"}, rec.Tags)
}

func TestNormalize_NilSections(t *testing.T) {
	assert.NotPanics(t, func() {
		Normalize(model.SourcePage{PolicyID: "x", Sections: []model.Section{{}, {Title: "사업개요"}}})
	})
}

func TestSplitRange(t *testing.T) {
	tests := []struct {
		in         string
		start, end string
	}{
		{"2024-01-01 ~ 2024-01-31", "2024-01-01", "2024-01-31"},
		{"2024-01-01", "2024-01-01", ""},
		{"2024-01-01 ~ 2024-02-01 ~ 2024-03-01", "2024-01-01", "2024-03-01"},
		{"2024-01-01 ~", "2024-01-01", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			start, end := SplitRange(tt.in)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestNormalize_RangeWithoutDelimiter(t *testing.T) {
	page := model.SourcePage{
		PolicyID: "p",
		Title:    "t",
		Sections: []model.Section{{Title: "사업개요", Rows: []model.Row{row("사업신청기간", "상시 모집")}}},
	}
	rec := Normalize(page)
	assert.Equal(t, "상시 모집", rec.ApplyStart)
	assert.Equal(t, "", rec.ApplyEnd)
}

func TestClean(t *testing.T) {
	assert.Equal(t, "a b", Clean("\u00a0 a\u00a0b \n"))
}
