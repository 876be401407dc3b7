package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Answered(t *testing.T) {
	m := New()

	m.Answered("index", true)
	m.Answered("index", false)
	m.Answered("index", false)
	m.Answered("web", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnswersTotal.WithLabelValues("index", "model")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnswersTotal.WithLabelValues("index", "template")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnswersTotal.WithLabelValues("web", "template")))
}

func TestMetrics_Requests(t *testing.T) {
	m := New()

	m.RecordRequest("/answer", 200)
	m.RecordRequest("/answer", 503)
	m.RecordRequest("/answer", 200)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/answer", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/answer", "503")))
}

func TestMetrics_SearchAndIndex(t *testing.T) {
	m := New()

	m.Searched(20 * time.Millisecond)
	m.SetIndexDocuments(42)

	assert.Equal(t, 42.0, testutil.ToFloat64(m.IndexDocuments))

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["policyrag_search_duration_seconds"])
	assert.True(t, names["policyrag_index_documents"])
	assert.True(t, names["go_goroutines"])
}

func TestMetrics_Independent(t *testing.T) {
	a, b := New(), New()
	a.SetIndexDocuments(1)
	b.SetIndexDocuments(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.IndexDocuments))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.IndexDocuments))
}
