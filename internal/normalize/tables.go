package normalize

import "github.com/youthpolicy/policyrag/internal/model"

// Canonical section names
const (
	SectionOverview    = "overview"
	SectionEligibility = "eligibility"
	SectionApplication = "application-method"
	SectionOther       = "other"
)

func text(pattern string, set Setter) Rule {
	return Rule{Pattern: pattern, Kind: Text, Set: set}
}

func site(pattern string, set Setter) Rule {
	return Rule{Pattern: pattern, Kind: Site, Set: set}
}

func span(pattern string, start, end Setter) Rule {
	return Rule{Pattern: pattern, Kind: Span, Set: start, SetEnd: end}
}

// DefaultTables returns the label tables for Seoul youth-policy detail pages.
func DefaultTables() []Table {
	return []Table{
		{
			Name:   SectionOverview,
			Marker: "사업개요",
			Rules: []Rule{
				text("정책 유형", func(r *model.PolicyRecord, v string) { r.PolicyType = v }),
				text("주관 기관", func(r *model.PolicyRecord, v string) { r.Agency = v }),
				text("정책 소개", func(r *model.PolicyRecord, v string) { r.Introduction = v }),
				text("지원 내용", func(r *model.PolicyRecord, v string) { r.Content = v }),
				text("사업운영기간", func(r *model.PolicyRecord, v string) { r.OperationPeriod = v }),
				span("사업신청기간",
					func(r *model.PolicyRecord, v string) { r.ApplyStart = v },
					func(r *model.PolicyRecord, v string) { r.ApplyEnd = v }),
				text("지원규모", func(r *model.PolicyRecord, v string) { r.SupportScale = v }),
				site("관련 사이트", func(r *model.PolicyRecord, v string) { r.RelatedSite = v }),
			},
		},
		{
			Name:   SectionEligibility,
			Marker: "신청자격",
			Rules: []Rule{
				text("연령", func(r *model.PolicyRecord, v string) { r.AgeRange = v }),
				text("학력", func(r *model.PolicyRecord, v string) { r.Education = v }),
				text("전공요건", func(r *model.PolicyRecord, v string) { r.MajorRequirement = v }),
				text("취업상태", func(r *model.PolicyRecord, v string) { r.EmploymentStatus = v }),
				text("특화분야 요건", func(r *model.PolicyRecord, v string) { r.SpecializedField = v }),
				text("추가단서 사항", func(r *model.PolicyRecord, v string) { r.AdditionalRequirements = v }),
				text("참여제한 대상", func(r *model.PolicyRecord, v string) { r.ExcludedTargets = v }),
			},
		},
		{
			Name:   SectionApplication,
			Marker: "신청방법",
			Rules: []Rule{
				text("신청절차", func(r *model.PolicyRecord, v string) { r.ApplicationProcedure = v }),
				text("심사 및 발표", func(r *model.PolicyRecord, v string) { r.EvaluationAnnouncement = v }),
				text("제출서류", func(r *model.PolicyRecord, v string) { r.RequiredDocuments = v }),
				site("신청 사이트", func(r *model.PolicyRecord, v string) { r.ApplicationSite = v }),
			},
		},
		{
			Name:   SectionOther,
			Marker: "기타",
			Rules: []Rule{
				text("기타사항", func(r *model.PolicyRecord, v string) { r.OtherMatters = v }),
				text("운영기관", func(r *model.PolicyRecord, v string) { r.OperatingAgency = v }),
				site("참고 사이트 Ⅰ", func(r *model.PolicyRecord, v string) { r.ReferenceSite1 = v }),
				site("참고 사이트 Ⅱ", func(r *model.PolicyRecord, v string) { r.ReferenceSite2 = v }),
			},
		},
	}
}
