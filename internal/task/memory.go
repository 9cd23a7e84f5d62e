package task

import (
	"bufio"
	"context"
	"log"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/bobarin/reelforge/internal/cache"
	"github.com/bobarin/reelforge/internal/config"
)

// memoryLevel names the three ordered pressure thresholds. Each is handled
// with a progressively more aggressive mitigation; the monitor never itself
// marks a task failed, only relieves pressure for whatever task is running.
type memoryLevel int

const (
	memoryOK memoryLevel = iota
	memoryWarning
	memoryCritical
	memoryEmergency
)

// MemoryMonitor polls process RSS on a fixed interval and mitigates pressure
// by clearing the artifact cache and, at higher thresholds, forcing garbage
// collection. A cooldown prevents back-to-back cleanups from thrashing.
type MemoryMonitor struct {
	cfg   *config.Config
	cache *cache.Cache

	lastCleanup time.Time
}

func NewMemoryMonitor(cfg *config.Config, c *cache.Cache) *MemoryMonitor {
	return &MemoryMonitor{cfg: cfg, cache: c}
}

// Run polls until ctx is cancelled. It is a no-op if memory monitoring is
// disabled in configuration.
func (m *MemoryMonitor) Run(ctx context.Context) {
	if !m.cfg.EnableMemoryMonitoring {
		return
	}

	interval := m.cfg.MemoryMonitorInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *MemoryMonitor) tick() {
	rssMB, err := processRSSMB()
	if err != nil {
		log.Printf("memory monitor: could not read RSS, falling back to heap stats: %v", err)
		rssMB = heapSysMB()
	}

	level := m.classify(rssMB)
	if level == memoryOK {
		return
	}

	cooldown := m.cfg.MemoryCleanupCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	if !m.lastCleanup.IsZero() && time.Since(m.lastCleanup) < cooldown {
		return
	}

	log.Printf("memory monitor: %s pressure at %dMB RSS, cleaning up", levelName(level), rssMB)
	m.mitigate(level)
	m.lastCleanup = time.Now()
}

func (m *MemoryMonitor) classify(rssMB int) memoryLevel {
	switch {
	case m.cfg.MemoryEmergencyThresholdMB > 0 && rssMB >= m.cfg.MemoryEmergencyThresholdMB:
		return memoryEmergency
	case m.cfg.MemoryCriticalThresholdMB > 0 && rssMB >= m.cfg.MemoryCriticalThresholdMB:
		return memoryCritical
	case m.cfg.MemoryWarningThresholdMB > 0 && rssMB >= m.cfg.MemoryWarningThresholdMB:
		return memoryWarning
	default:
		return memoryOK
	}
}

func (m *MemoryMonitor) mitigate(level memoryLevel) {
	if m.cache != nil {
		if err := m.cache.Clear(); err != nil {
			log.Printf("memory monitor: cache clear failed: %v", err)
		}
	}

	switch level {
	case memoryWarning:
		// Cache eviction alone; a GC pass at this level is often not worth its pause.
	case memoryCritical:
		runtime.GC()
	case memoryEmergency:
		runtime.GC()
		debug.FreeOSMemory()
	}
}

func levelName(level memoryLevel) string {
	switch level {
	case memoryWarning:
		return "warning"
	case memoryCritical:
		return "critical"
	case memoryEmergency:
		return "emergency"
	default:
		return "ok"
	}
}

// processRSSMB reads this process's resident set size from /proc/self/status.
// Linux-only; callers fall back to heap stats when it errors (e.g. non-Linux).
func processRSSMB() (int, error) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0, err
		}
		return kb / 1024, nil
	}
	return 0, scanner.Err()
}

func heapSysMB() int {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return int(stats.Sys / (1024 * 1024))
}
