package metrics

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersOnPrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordRender(nil)
	m.RecordRender(errors.New("boom"))
	m.RecordRender(nil)
	if got := testutil.ToFloat64(m.RendersTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("expected 2 successful renders, got %v", got)
	}
	if got := testutil.ToFloat64(m.RendersTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed render, got %v", got)
	}

	m.RecordJob("lark", "completed", 1500*time.Millisecond)
	if got := testutil.ToFloat64(m.JobsTotal.WithLabelValues("lark", "completed")); got != 1 {
		t.Errorf("expected 1 completed lark job, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	for _, want := range []string{"docsplit_renders_total", "docsplit_job_duration_seconds"} {
		if !slices.Contains(names, want) {
			t.Errorf("expected %s in %v", want, names)
		}
	}

	// A second registry must not collide with the first.
	New(prometheus.NewRegistry())
}
