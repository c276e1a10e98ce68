package functionRuntime

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Health is the body of GET /healthz.
type Health struct {
	Status         string   `json:"status"`
	Functions      []string `json:"functions"`
	CPUPercent     float64  `json:"cpuPercent"`
	MemUsedPercent float64  `json:"memUsedPercent"`
}

func (s *Server) health(ctx context.Context) Health {
	h := Health{Status: "ok", Functions: s.router.Keys()}

	// interval 0 compares against the previous call instead of sleeping
	cpuPercent, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		s.logger.Warn("Failed to read cpu usage", "error", err)
	} else if len(cpuPercent) > 0 {
		h.CPUPercent = cpuPercent[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		s.logger.Warn("Failed to read memory usage", "error", err)
	} else {
		h.MemUsedPercent = vm.UsedPercent
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.health(r.Context())); err != nil {
		s.logger.Error("Error writing health response", "error", err)
	}
}
