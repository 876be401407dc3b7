package model

// PolicyRecord is one normalized youth-policy program.
// Only PolicyID and Title are guaranteed non-empty; every other field is
// the empty string when the source page omits it.
type PolicyRecord struct {
	PolicyID string `json:"policy_id"`
	Title    string `json:"title"`

	// Overview
	Agency          string `json:"agency"`
	PolicyType      string `json:"policy_type"`
	Introduction    string `json:"introduction"`
	Content         string `json:"content"`
	SupportScale    string `json:"support_scale"`
	OperationPeriod string `json:"operation_period"`
	ApplyStart      string `json:"apply_start"`
	ApplyEnd        string `json:"apply_end"`
	RelatedSite     string `json:"related_site"`

	// Eligibility
	AgeRange               string `json:"age_range"`
	Education              string `json:"education"`
	EmploymentStatus       string `json:"employment_status"`
	MajorRequirement       string `json:"major_requirement"`
	SpecializedField       string `json:"specialized_field"`
	AdditionalRequirements string `json:"additional_requirements"`
	ExcludedTargets        string `json:"excluded_targets"`

	// Application method
	ApplicationProcedure   string `json:"application_procedure"`
	RequiredDocuments      string `json:"required_documents"`
	EvaluationAnnouncement string `json:"evaluation_announcement"`
	ApplicationSite        string `json:"application_site"`

	// Other
	ReferenceSite1  string `json:"reference_site_1"`
	ReferenceSite2  string `json:"reference_site_2"`
	OperatingAgency string `json:"operating_agency"`
	OtherMatters    string `json:"other_matters"`

	// Provenance
	PageURL string   `json:"page_url"`
	Tags    []string `json:"tags"`
}

// Metadata keys. They match the JSON field names of PolicyRecord.
const (
	KeyPolicyID               = "policy_id"
	KeyTitle                  = "title"
	KeyAgency                 = "agency"
	KeyPolicyType             = "policy_type"
	KeyIntroduction           = "introduction"
	KeyContent                = "content"
	KeySupportScale           = "support_scale"
	KeyOperationPeriod        = "operation_period"
	KeyApplyStart             = "apply_start"
	KeyApplyEnd               = "apply_end"
	KeyRelatedSite            = "related_site"
	KeyAgeRange               = "age_range"
	KeyEducation              = "education"
	KeyEmploymentStatus       = "employment_status"
	KeyMajorRequirement       = "major_requirement"
	KeySpecializedField       = "specialized_field"
	KeyAdditionalRequirements = "additional_requirements"
	KeyExcludedTargets        = "excluded_targets"
	KeyApplicationProcedure   = "application_procedure"
	KeyRequiredDocuments      = "required_documents"
	KeyEvaluationAnnouncement = "evaluation_announcement"
	KeyApplicationSite        = "application_site"
	KeyReferenceSite1         = "reference_site_1"
	KeyReferenceSite2         = "reference_site_2"
	KeyOperatingAgency        = "operating_agency"
	KeyOtherMatters           = "other_matters"
	KeyPageURL                = "page_url"

	// KeySource is set on web matches only (result host).
	KeySource = "source"
)

// Scalars returns every scalar field keyed by its metadata key, in a fixed order.
func (p PolicyRecord) Scalars() []KV {
	return []KV{
		{KeyPolicyID, p.PolicyID},
		{KeyTitle, p.Title},
		{KeyAgency, p.Agency},
		{KeyPolicyType, p.PolicyType},
		{KeyIntroduction, p.Introduction},
		{KeyContent, p.Content},
		{KeySupportScale, p.SupportScale},
		{KeyOperationPeriod, p.OperationPeriod},
		{KeyApplyStart, p.ApplyStart},
		{KeyApplyEnd, p.ApplyEnd},
		{KeyRelatedSite, p.RelatedSite},
		{KeyAgeRange, p.AgeRange},
		{KeyEducation, p.Education},
		{KeyEmploymentStatus, p.EmploymentStatus},
		{KeyMajorRequirement, p.MajorRequirement},
		{KeySpecializedField, p.SpecializedField},
		{KeyAdditionalRequirements, p.AdditionalRequirements},
		{KeyExcludedTargets, p.ExcludedTargets},
		{KeyApplicationProcedure, p.ApplicationProcedure},
		{KeyRequiredDocuments, p.RequiredDocuments},
		{KeyEvaluationAnnouncement, p.EvaluationAnnouncement},
		{KeyApplicationSite, p.ApplicationSite},
		{KeyReferenceSite1, p.ReferenceSite1},
		{KeyReferenceSite2, p.ReferenceSite2},
		{KeyOperatingAgency, p.OperatingAgency},
		{KeyOtherMatters, p.OtherMatters},
		{KeyPageURL, p.PageURL},
	}
}

// KV is an ordered key/value pair.
type KV struct {
	Key   string
	Value string
}

// Metadata copies the scalar fields into a map, dropping empty values.
// A missing key means "unknown".
func (p PolicyRecord) Metadata() map[string]string {
	meta := make(map[string]string)
	for _, kv := range p.Scalars() {
		if kv.Value != "" {
			meta[kv.Key] = kv.Value
		}
	}
	return meta
}

// SourcePage is the semi-structured shape produced by the ingestion boundary:
// label/value rows grouped into titled sections, plus page identity.
type SourcePage struct {
	PolicyID string    `json:"policy_id"`
	Title    string    `json:"title"`
	PageURL  string    `json:"page_url"`
	Tags     []string  `json:"tags,omitempty"`
	Sections []Section `json:"sections"`
}

// Section is one titled label/value table.
type Section struct {
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
}

// Row is a single label with its rendered value.
type Row struct {
	Label string `json:"label"`
	Value Cell   `json:"value"`
}

// Cell is a rendered table cell. Href is the target of the first anchor in
// the cell, if any.
type Cell struct {
	Text string `json:"text"`
	Href string `json:"href,omitempty"`
}
