package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register should be a no-op, got %v", err)
	}
}

func TestResolutionsCounter(t *testing.T) {
	before := testutil.ToFloat64(ResolutionsTotal.WithLabelValues("queued_inbox"))
	ResolutionsTotal.WithLabelValues("queued_inbox").Inc()
	after := testutil.ToFloat64(ResolutionsTotal.WithLabelValues("queued_inbox"))
	if after-before != 1 {
		t.Errorf("counter moved by %v, want 1", after-before)
	}
}
