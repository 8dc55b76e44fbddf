// Package power switches the processor into a faster, hungrier state while the clock is being set.
package power

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
)

var (
	performanceEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "power_performance_enabled",
		Help: "1 while the performance governor is selected",
	})
	governorErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "power_governor_errors_total",
		Help: "failed reads or writes of the cpufreq governor",
	})
)

// DefaultGovernorPath is the cpufreq governor of the first CPU.
const DefaultGovernorPath = "/sys/devices/system/cpu/cpu0/cpufreq/scaling_governor"

const performance = "performance"

// Governor selects the "performance" cpufreq governor while at least one user has it enabled, and
// restores whatever governor was there before when the last user disables it.
type Governor struct {
	path string
	log  trace.EventLog

	sync.Mutex
	refs  int
	saved string
}

// NewGovernor returns a Governor for the cpufreq scaling_governor file at path.
func NewGovernor(path string) *Governor {
	return &Governor{path: path, log: trace.NewEventLog("power", path)}
}

// Enable takes a reference on the performance state.
func (g *Governor) Enable() {
	g.Lock()
	defer g.Unlock()
	g.refs++
	if g.refs > 1 {
		return
	}
	current, err := os.ReadFile(g.path)
	if err != nil {
		governorErrors.Inc()
		g.log.Errorf("read governor: %v", err)
		return
	}
	g.saved = string(bytes.TrimSpace(current))
	if err := g.write(performance); err != nil {
		governorErrors.Inc()
		g.log.Errorf("enable performance: %v", err)
		return
	}
	performanceEnabled.Set(1)
}

// Disable drops a reference taken by Enable.
func (g *Governor) Disable() {
	g.Lock()
	defer g.Unlock()
	if g.refs == 0 {
		return
	}
	g.refs--
	if g.refs > 0 || g.saved == "" {
		return
	}
	if err := g.write(g.saved); err != nil {
		governorErrors.Inc()
		g.log.Errorf("restore governor %q: %v", g.saved, err)
		return
	}
	performanceEnabled.Set(0)
}

func (g *Governor) write(governor string) error {
	if err := os.WriteFile(g.path, []byte(governor+"\n"), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", g.path, err)
	}
	g.log.Printf("governor: %s", governor)
	return nil
}

// Nop is a performance resource that does nothing.
type Nop struct{}

func (Nop) Enable()  {}
func (Nop) Disable() {}
