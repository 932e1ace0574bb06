package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// healthzResponse is what /healthz returns, mirroring the teacher's
// system stats response shape (CPU/RAM) plus a database health flag.
type healthzResponse struct {
	OK          bool    `json:"ok"`
	DatabaseOK  bool    `json:"database_ok"`
	CPUPercent  float64 `json:"cpu_percent"`
	RAMPercent  float64 `json:"ram_percent"`
	CheckedAt   string  `json:"checked_at"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbOK := true
	if s.cfg.Store != nil {
		if err := s.cfg.Store.HealthCheck(ctx); err != nil {
			dbOK = false
			s.log.Warn().Err(err).Msg("healthz: store health check failed")
		}
	}

	cpuPercent, ramPercent := systemStats(s.log)

	resp := healthzResponse{OK: dbOK, DatabaseOK: dbOK, CPUPercent: cpuPercent, RAMPercent: ramPercent, CheckedAt: time.Now().UTC().Format(time.RFC3339)}

	w.Header().Set("Content-Type", "application/json")
	if !dbOK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// systemStats reports CPU/RAM usage, grounded on the teacher's
// getSystemStats (100ms CPU sample to avoid blocking the handler).
func systemStats(log zerolog.Logger) (cpuPercent, ramPercent float64) {
	percents, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		log.Warn().Err(err).Msg("healthz: cpu percent unavailable")
		percents = []float64{0}
	}
	if len(percents) > 0 {
		cpuPercent = percents[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		log.Warn().Err(err).Msg("healthz: memory stats unavailable")
		return cpuPercent, 0
	}
	return cpuPercent, memStat.UsedPercent
}

type taskStatus struct {
	Task          string  `json:"task"`
	LastRun       *string `json:"last_run,omitempty"`
	LastDuration  float64 `json:"last_duration_seconds,omitempty"`
}

type statusResponse struct {
	CurrentTask          string       `json:"current_task"`
	DaemonRunning        bool         `json:"daemon_running"`
	TradingDaemonRunning bool         `json:"trading_daemon_running"`
	Tasks                []taskStatus `json:"tasks"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Scheduler == nil {
		http.Error(w, "scheduler not configured", http.StatusServiceUnavailable)
		return
	}

	resp := statusResponse{
		CurrentTask:          s.cfg.Scheduler.CurrentTask(),
		DaemonRunning:        s.cfg.Scheduler.DaemonRunning(),
		TradingDaemonRunning: s.cfg.Scheduler.TradingDaemonRunning(),
	}

	for _, task := range s.cfg.TaskNames {
		started, dur := s.cfg.Scheduler.LastRun(task)
		ts := taskStatus{Task: task}
		if !started.IsZero() {
			formatted := started.UTC().Format(time.RFC3339)
			ts.LastRun = &formatted
			ts.LastDuration = dur.Seconds()
		}
		resp.Tasks = append(resp.Tasks, ts)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Scheduler == nil {
		http.Error(w, "scheduler not configured", http.StatusServiceUnavailable)
		return
	}

	n := 100
	if raw := r.URL.Query().Get("tail"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.cfg.Scheduler.Logs(n))
}
