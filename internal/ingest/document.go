package ingest

import (
	"strings"

	"github.com/youthpolicy/policyrag/internal/model"
)

// DocumentText renders the labeled lines that are both embedded and shown
// as match content. Empty fields are left out; the application period needs
// both ends.
func DocumentText(rec model.PolicyRecord) string {
	var lines []string
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			lines = append(lines, label+": "+value)
		}
	}

	add("제목", rec.Title)
	add("정책 소개", rec.Introduction)
	add("지원 내용", rec.Content)
	add("정책 유형", rec.PolicyType)
	add("주관 기관", rec.Agency)
	add("연령", rec.AgeRange)
	add("학력", rec.Education)
	add("취업상태", rec.EmploymentStatus)
	if rec.ApplyStart != "" && rec.ApplyEnd != "" {
		add("신청기간", rec.ApplyStart+" ~ "+rec.ApplyEnd)
	}
	add("지원규모", rec.SupportScale)

	return strings.Join(lines, "\n")
}

// NewDocument builds the unembedded index document for rec
func NewDocument(rec model.PolicyRecord) model.IndexedDocument {
	return model.IndexedDocument{
		ID:       rec.PolicyID,
		Text:     DocumentText(rec),
		Metadata: rec.Metadata(),
	}
}
