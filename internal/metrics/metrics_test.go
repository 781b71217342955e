package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.RunFinished("partial", 3*time.Second)
	m.EntryRecorded("enrich")
	m.EntryRecorded("enrich")
	m.PatchApplied("fuzzy_jaccard")
	m.CacheLookups(4, 1)
	m.ItemError("classify")

	if got := testutil.ToFloat64(m.runs.WithLabelValues("partial")); got != 1 {
		t.Errorf("runs{partial} = %v", got)
	}
	if got := testutil.ToFloat64(m.entries.WithLabelValues("enrich")); got != 2 {
		t.Errorf("entries{enrich} = %v", got)
	}
	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")); got != 4 {
		t.Errorf("cache hits = %v", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.PatchApplied("exact")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `playbooksync_patches_total{strategy="exact"} 1`) {
		t.Errorf("metrics output missing patch counter:\n%s", body)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RunFinished("success", time.Second)
	m.EntryRecorded("orphaned")
	m.PatchApplied("append")
	m.CacheLookups(1, 1)
	m.ItemError("publish")
	if m.Registry() != nil {
		t.Error("nil metrics should have no registry")
	}
}
