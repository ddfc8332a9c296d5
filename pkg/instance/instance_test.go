package instance

import "testing"

func TestIDPrefersExplicitSetting(t *testing.T) {
	t.Setenv("MPP_INSTANCE_ID", "api-3")
	t.Setenv("DYNO", "web.1")
	if got := ID(); got != "api-3" {
		t.Fatalf("expected api-3, got %q", got)
	}
}

func TestIDFallsBackToDyno(t *testing.T) {
	t.Setenv("MPP_INSTANCE_ID", "")
	t.Setenv("DYNO", "worker.2")
	if got := ID(); got != "worker.2" {
		t.Fatalf("expected worker.2, got %q", got)
	}
}

func TestIDNeverEmpty(t *testing.T) {
	t.Setenv("MPP_INSTANCE_ID", "")
	t.Setenv("DYNO", "")
	if ID() == "" {
		t.Fatal("expected a non-empty id")
	}
}
