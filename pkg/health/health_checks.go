package health

import (
	"context"
	"runtime"
)

// StoreCheck reports whether the upload store answers ping
func StoreCheck(backend string, ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{
			Name:    "upload_store",
			Details: map[string]any{"backend": backend},
		}

		if err := ping(ctx); err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		} else {
			check.Status = StatusHealthy
			check.Message = "Reachable"
		}

		return check
	}
}

// PushChannelCheck reports connected WebSocket clients and whether the NNG
// publisher is bound. It never fails; zero clients is a normal state.
func PushChannelCheck(nngAddr func() string, clients func() int) CheckFunc {
	return func(ctx context.Context) Check {
		addr := nngAddr()
		check := Check{
			Name:   "push_channel",
			Status: StatusHealthy,
			Details: map[string]any{
				"websocket_clients": clients(),
				"nng_enabled":       addr != "",
			},
		}
		if addr != "" {
			check.Details["nng_addr"] = addr
		}
		return check
	}
}

// JobCapacityCheck is degraded while every job slot is busy, since new jobs
// then wait for a slot
func JobCapacityCheck(active func() int64, limit int64) CheckFunc {
	return func(ctx context.Context) Check {
		n := active()
		check := Check{
			Name: "jobs",
			Details: map[string]any{
				"active": n,
				"limit":  limit,
			},
		}

		if limit > 0 && n >= limit {
			check.Status = StatusDegraded
			check.Message = "All job slots busy"
		} else {
			check.Status = StatusHealthy
			check.Message = "Accepting jobs"
		}

		return check
	}
}

// MemoryCheck creates a health check for memory usage. getUsage defaults to
// the Go runtime's heap numbers when nil.
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	if getUsage == nil {
		getUsage = runtimeMemory
	}
	return func(ctx context.Context) Check {
		check := Check{
			Name:    "memory",
			Details: make(map[string]any),
		}

		alloc, sys := getUsage()

		check.Details["alloc_bytes"] = alloc
		check.Details["sys_bytes"] = sys

		usagePercent := 0.0
		if sys > 0 {
			usagePercent = float64(alloc) / float64(sys) * 100
		}

		if usagePercent > 90 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		} else {
			check.Status = StatusHealthy
			check.Message = "Memory usage normal"
		}

		return check
	}
}

func runtimeMemory() (alloc, sys uint64) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc, m.Sys
}
