package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/youthpolicy/policyrag/internal/model"
)

func TestDocumentText(t *testing.T) {
	rec := model.PolicyRecord{
		PolicyID:         "P1",
		Title:            "청년 일자리 매칭",
		Introduction:     "구직 청년 지원",
		Content:          "맞춤형 일자리 연결",
		PolicyType:       "일자리",
		Agency:           "서울시",
		AgeRange:         "만 19~34세",
		EmploymentStatus: "미취업자",
		ApplyStart:       "2024-01-01",
		ApplyEnd:         "2024-01-31",
		SupportScale:     "100명",
		OtherMatters:     "not rendered",
	}

	want := "제목: 청년 일자리 매칭\n" +
		"정책 소개: 구직 청년 지원\n" +
		"지원 내용: 맞춤형 일자리 연결\n" +
		"정책 유형: 일자리\n" +
		"주관 기관: 서울시\n" +
		"연령: 만 19~34세\n" +
		"취업상태: 미취업자\n" +
		"신청기간: 2024-01-01 ~ 2024-01-31\n" +
		"지원규모: 100명"
	assert.Equal(t, want, DocumentText(rec))
}

func TestDocumentText_PartialPeriod(t *testing.T) {
	rec := model.PolicyRecord{Title: "t", ApplyStart: "상시"}
	assert.Equal(t, "제목: t", DocumentText(rec))
	assert.Empty(t, DocumentText(model.PolicyRecord{}))
}

func TestNewDocument(t *testing.T) {
	rec := model.PolicyRecord{PolicyID: "P1", Title: "t", Agency: "서울시"}
	doc := NewDocument(rec)

	assert.Equal(t, "P1", doc.ID)
	assert.Equal(t, "제목: t", doc.Text)
	assert.Equal(t, map[string]string{
		model.KeyPolicyID: "P1",
		model.KeyTitle:    "t",
		model.KeyAgency:   "서울시",
	}, doc.Metadata)
	assert.Nil(t, doc.Embedding)
}
