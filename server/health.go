package server

import (
	"net/http"
	"os"
	goruntime "runtime"

	"github.com/shirou/gopsutil/process"
)

type healthResponse struct {
	Status      string  `json:"status"`
	OnlineUsers int     `json:"onlineUsers"`
	Goroutines  int     `json:"goroutines"`
	AllocMemMB  uint64  `json:"allocMemMb"`
	RSSBytes    uint64  `json:"rssBytes"`
	CPUPercent  float64 `json:"cpuPercent"`
}

// handleHealth reports liveness plus the diagnostics the ops side
// actually looks at: distinct online users and process resource use.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var memStats goruntime.MemStats
	goruntime.ReadMemStats(&memStats)

	response := healthResponse{
		Status:      "ok",
		OnlineUsers: s.engine.Presence().Count(),
		Goroutines:  goruntime.NumGoroutine(),
		AllocMemMB:  memStats.Alloc / 1024 / 1024,
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if memInfo, err := p.MemoryInfo(); err == nil {
			response.RSSBytes = memInfo.RSS
		}
		if cpu, err := p.CPUPercent(); err == nil {
			response.CPUPercent = cpu
		}
	} else {
		s.log.Debug("Self stats unavailable", "error", err)
	}

	writeJSON(w, response)
}
