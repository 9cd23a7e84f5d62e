package task

import (
	"testing"

	"github.com/bobarin/reelforge/internal/config"
)

func newTestMonitor() *MemoryMonitor {
	cfg := &config.Config{
		MemoryWarningThresholdMB:   1000,
		MemoryCriticalThresholdMB:  2000,
		MemoryEmergencyThresholdMB: 3000,
	}
	return NewMemoryMonitor(cfg, nil)
}

func TestClassifyBelowWarningIsOK(t *testing.T) {
	m := newTestMonitor()
	if got := m.classify(500); got != memoryOK {
		t.Errorf("expected memoryOK, got %v", got)
	}
}

func TestClassifyAtWarningThreshold(t *testing.T) {
	m := newTestMonitor()
	if got := m.classify(1000); got != memoryWarning {
		t.Errorf("expected memoryWarning, got %v", got)
	}
}

func TestClassifyAtCriticalThreshold(t *testing.T) {
	m := newTestMonitor()
	if got := m.classify(2500); got != memoryCritical {
		t.Errorf("expected memoryCritical, got %v", got)
	}
}

func TestClassifyAtEmergencyThreshold(t *testing.T) {
	m := newTestMonitor()
	if got := m.classify(4000); got != memoryEmergency {
		t.Errorf("expected memoryEmergency, got %v", got)
	}
}

func TestClassifyIgnoresUnsetThresholds(t *testing.T) {
	cfg := &config.Config{}
	m := NewMemoryMonitor(cfg, nil)
	if got := m.classify(999999); got != memoryOK {
		t.Errorf("expected memoryOK when thresholds are unset, got %v", got)
	}
}

func TestLevelNameCoversAllLevels(t *testing.T) {
	cases := map[memoryLevel]string{
		memoryOK:        "ok",
		memoryWarning:   "warning",
		memoryCritical:  "critical",
		memoryEmergency: "emergency",
	}
	for level, want := range cases {
		if got := levelName(level); got != want {
			t.Errorf("levelName(%v) = %q, want %q", level, got, want)
		}
	}
}
