package workers

import (
	"context"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// StatsSource exposes the live counters the telemetry worker reports.
type StatsSource interface {
	OnlineUsers() int
	OpenRooms() int
}

// TelemetryWorker periodically logs engine counters together with the
// process's own resource usage. It runs under the supervisor like any
// other worker.
type TelemetryWorker struct {
	log      *slog.Logger
	stats    StatsSource
	interval time.Duration
}

func NewTelemetryWorker(log *slog.Logger, stats StatsSource, interval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, stats: stats, interval: interval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			attrs := []any{
				"online_users", w.stats.OnlineUsers(),
				"open_rooms", w.stats.OpenRooms(),
				"goroutines", goruntime.NumGoroutine(),
			}
			if mem, err := p.MemoryInfo(); err == nil {
				attrs = append(attrs, "rss_mb", mem.RSS/1024/1024)
			}
			if cpu, err := p.CPUPercent(); err == nil {
				attrs = append(attrs, "cpu_percent", cpu)
			}
			w.log.Info("Engine telemetry", attrs...)
		}
	}
}
