package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tair/pos-ledger/api-gateway/config"
	"github.com/tair/pos-ledger/api-gateway/loadbalancer"
	"github.com/tair/pos-ledger/pkg/logger"
)

// Status values reported by the checker
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// InstanceHealth is the result of probing one upstream instance
type InstanceHealth struct {
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	LatencyMS int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ServiceHealth rolls up the instances of one service
type ServiceHealth struct {
	Name      string           `json:"name"`
	Status    string           `json:"status"`
	Instances []InstanceHealth `json:"instances"`
}

// GatewayHealth represents the overall gateway health
type GatewayHealth struct {
	Gateway  string                   `json:"gateway"`
	Status   string                   `json:"status"`
	Services map[string]ServiceHealth `json:"services"`
	Uptime   float64                  `json:"uptime_seconds"`
}

// HealthChecker probes upstream instances and takes failing ones out of
// their load balancer's rotation
type HealthChecker struct {
	config    *config.GatewayConfig
	balancers map[string]*loadbalancer.RoundRobin
	client    *http.Client
	startTime time.Time
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(cfg *config.GatewayConfig, balancers map[string]*loadbalancer.RoundRobin) *HealthChecker {
	return &HealthChecker{
		config:    cfg,
		balancers: balancers,
		client:    &http.Client{Timeout: 5 * time.Second},
		startTime: time.Now(),
	}
}

// CheckInstance probes a single upstream instance
func (h *HealthChecker) CheckInstance(ctx context.Context, baseURL, path string) InstanceHealth {
	start := time.Now()
	result := InstanceHealth{URL: baseURL, Timestamp: start}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		return result
	}

	resp, err := h.client.Do(req)
	result.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = fmt.Sprintf("failed to reach instance: %v", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		result.Status = StatusHealthy
	} else {
		result.Status = StatusUnhealthy
		result.Error = fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
	}
	return result
}

// CheckAllServices probes every instance concurrently and updates rotation
func (h *HealthChecker) CheckAllServices(ctx context.Context) GatewayHealth {
	services := make(map[string]ServiceHealth, len(h.config.Services))
	var wg sync.WaitGroup

	for name, svc := range h.config.Services {
		results := make([]InstanceHealth, len(svc.Instances))
		for i, instance := range svc.Instances {
			wg.Add(1)
			go func(i int, instance string) {
				defer wg.Done()
				results[i] = h.CheckInstance(ctx, instance, svc.HealthCheck)
			}(i, instance)
		}

		services[name] = ServiceHealth{Name: svc.Name, Instances: results}
	}
	wg.Wait()

	for name, sh := range services {
		healthy := 0
		for _, inst := range sh.Instances {
			ok := inst.Status == StatusHealthy
			if ok {
				healthy++
			} else {
				logger.Warn(ctx).
					Str("service", name).
					Str("instance", inst.URL).
					Str("error", inst.Error).
					Msg("Upstream health check failed")
			}
			if lb := h.balancers[name]; lb != nil {
				lb.SetHealthy(inst.URL, ok)
			}
		}
		sh.Status = rollup(healthy, len(sh.Instances))
		services[name] = sh
	}

	overall := StatusHealthy
	for _, sh := range services {
		if sh.Status == StatusUnhealthy {
			overall = StatusUnhealthy
			break
		}
		if sh.Status == StatusDegraded {
			overall = StatusDegraded
		}
	}

	return GatewayHealth{
		Gateway:  "pos-gateway",
		Status:   overall,
		Services: services,
		Uptime:   time.Since(h.startTime).Seconds(),
	}
}

// Run re-probes all instances every interval until ctx is cancelled
func (h *HealthChecker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			h.CheckAllServices(probeCtx)
			cancel()
		}
	}
}

// QuickCheck reports on the gateway itself without touching upstreams
func (h *HealthChecker) QuickCheck() map[string]interface{} {
	return map[string]interface{}{
		"status":    StatusHealthy,
		"gateway":   "pos-gateway",
		"uptime":    time.Since(h.startTime).Seconds(),
		"timestamp": time.Now(),
	}
}

func rollup(healthy, total int) string {
	switch {
	case total > 0 && healthy == total:
		return StatusHealthy
	case healthy > 0:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}
