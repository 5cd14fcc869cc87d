package obs

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ResourceSamplePeriod is the polling interval for StartResourceSampler.
const ResourceSamplePeriod = 2 * time.Second

type resourceGauges struct {
	cpuPercent prometheus.Gauge
	memoryMB   prometheus.Gauge
}

func newResourceGauges(reg prometheus.Registerer) *resourceGauges {
	g := &resourceGauges{
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tweak_process_cpu_percent",
			Help: "CPU usage percent sampled over the last ResourceSamplePeriod.",
		}),
		memoryMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tweak_process_memory_mb",
			Help: "Resident memory usage in MiB, process RSS where available.",
		}),
	}
	if reg != nil {
		reg.MustRegister(g.cpuPercent, g.memoryMB)
	}
	return g
}

// StartResourceSampler launches a goroutine that periodically samples CPU
// and memory usage via gopsutil and logs it, falling back to system-wide
// mem.VirtualMemory when the process handle can't be obtained. reg may be
// nil to skip gauge
// registration and only log. It returns the context.CancelFunc that stops
// the goroutine; callers should invoke it during shutdown.
func StartResourceSampler(logger zerolog.Logger, reg prometheus.Registerer) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())

	var gauges *resourceGauges
	if reg != nil {
		gauges = newResourceGauges(reg)
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn().Err(err).Msg("resource sampler: failed to get process handle, falling back to system memory")
		proc = nil
	}

	go func() {
		ticker := time.NewTicker(ResourceSamplePeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sampleOnce(logger, gauges, proc)
			}
		}
	}()

	return cancel
}

func sampleOnce(logger zerolog.Logger, gauges *resourceGauges, proc *process.Process) {
	var cpuPct float64
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		cpuPct = pcts[0]
	}

	var memMB float64
	if proc != nil {
		if info, err := proc.MemoryInfo(); err == nil {
			memMB = float64(info.RSS) / 1024 / 1024
		}
	} else if vmem, err := mem.VirtualMemory(); err == nil {
		memMB = float64(vmem.Used) / 1024 / 1024
	}

	if gauges != nil {
		gauges.cpuPercent.Set(cpuPct)
		gauges.memoryMB.Set(memMB)
	}
	logger.Debug().Float64("cpu_percent", cpuPct).Float64("memory_mb", memMB).Msg("resource sample")
}
