package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsRecordsOutcomesPerJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.now = func() time.Time { return time.Unix(1_780_000_000, 0) }
	m.Observe("points-expiry", 250*time.Millisecond, nil)
	m.Observe("points-expiry", 0, nil)
	m.Observe("ledger-reconcile", time.Second, errors.New("drift"))
	m.Observe("", 0, errors.New("boom"))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	checks := []struct {
		job, outcome string
		want         float64
	}{
		{"points-expiry", JobSucceeded, 2},
		{"ledger-reconcile", JobFailed, 1},
		{"unknown", JobFailed, 1},
	}
	for _, c := range checks {
		metric, err := findMetric(mfs, "mpp_cron_job_runs_total", "job", c.job)
		if err != nil {
			t.Fatalf("%s: %v", c.job, err)
		}
		if got := labelValue(metric, "outcome"); got != c.outcome {
			t.Fatalf("%s: outcome %q, want %q", c.job, got, c.outcome)
		}
		if got := metric.GetCounter().GetValue(); got != c.want {
			t.Fatalf("runs{job=%q} = %v, want %v", c.job, got, c.want)
		}
	}

	sum, err := histogramSum(mfs, "mpp_cron_job_duration_seconds", "job", "points-expiry")
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if sum != 0.25 {
		t.Fatalf("expected duration sum 0.25, got %v", sum)
	}

	last, err := findMetric(mfs, "mpp_cron_job_last_success_timestamp_seconds", "job", "points-expiry")
	if err != nil {
		t.Fatalf("last success: %v", err)
	}
	if last.GetGauge().GetValue() != 1_780_000_000 {
		t.Fatalf("unexpected last success %v", last.GetGauge().GetValue())
	}
	if _, err := findMetric(mfs, "mpp_cron_job_last_success_timestamp_seconds", "job", "ledger-reconcile"); err == nil {
		t.Fatal("a failing job must not report a success time")
	}
}

func TestNilRegistererYieldsNoopCollectors(t *testing.T) {
	NewCronJobMetrics(nil).Observe("job", time.Second, nil)
	var nilCron *CronJobMetrics
	nilCron.Observe("job", 0, errors.New("boom"))
	NewHTTPMetrics(nil).Observe("/health/live", "GET", 200, time.Millisecond)
	NewOutboxMetrics(nil).Inc("document_created", "published")

	var nilOutbox *OutboxMetrics
	nilOutbox.Inc("document_created", "retry")
}

func TestHTTPAndOutboxMetricsLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewHTTPMetrics(reg).Observe("/api/v1/pos/checkout", "POST", 201, 40*time.Millisecond)
	outbox := NewOutboxMetrics(reg)
	outbox.Inc("payment_received", "published")
	outbox.Inc("payment_received", "published")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := counterValue(mfs, "mpp_http_requests_total", "route", "/api/v1/pos/checkout"); err != nil || got != 1 {
		t.Fatalf("http requests = %v (%v)", got, err)
	}
	if got, err := counterValue(mfs, "mpp_outbox_events_total", "event_type", "payment_received"); err != nil || got != 2 {
		t.Fatalf("outbox events = %v (%v)", got, err)
	}
}

func counterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric, err := findMetric(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return metric.GetCounter().GetValue(), nil
}

func histogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric, err := findMetric(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return metric.GetHistogram().GetSampleSum(), nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == name {
			return pair.GetValue()
		}
	}
	return ""
}

func findMetric(mfs []*dto.MetricFamily, name, label, value string) (*dto.Metric, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return metric, nil
				}
			}
		}
		return nil, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
	}
	return nil, fmt.Errorf("metric %q not found", name)
}
