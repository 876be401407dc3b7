package model

// IndexedDocument is the unit stored in the vector index.
type IndexedDocument struct {
	ID        string            `json:"id"`
	Embedding []float32         `json:"-"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata"`
}

// MatchSource tells where a match came from.
type MatchSource string

const (
	SourceIndex MatchSource = "index" // local vector index, carries a similarity score
	SourceWeb   MatchSource = "web"   // external web search, no score
)

// Match is one retrieved record in result order.
//
// Score is 1 - distance under the index's native metric. It is not clamped:
// for unbounded metrics (l2) it can fall below 0.
type Match struct {
	Rank     int               `json:"rank"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
	Text     string            `json:"content"`
	Source   MatchSource       `json:"source"`
}

// Title returns the match title or a placeholder.
func (m Match) Title() string {
	if t := m.Metadata[KeyTitle]; t != "" {
		return t
	}
	return "제목 없음"
}

// Get returns a metadata value; missing keys read as "".
func (m Match) Get(key string) string {
	return m.Metadata[key]
}

// AnswerBundle is the immutable result of one question.
type AnswerBundle struct {
	Query      string  `json:"query"`
	Answer     string  `json:"answer"`
	Sources    []Match `json:"sources"`
	Confidence float64 `json:"confidence"`
	UsedModel  bool    `json:"used_model"`
}
