package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestObserveValidation(t *testing.T) {
	c := Validations.WithLabelValues("EC256", "ReplayDetected")
	before := counterValue(t, c)
	ObserveValidation("EC256", "ReplayDetected", time.Millisecond)
	if delta := counterValue(t, c) - before; delta != 1 {
		t.Fatalf("counter delta = %v", delta)
	}
}
