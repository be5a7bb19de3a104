package loadbalancer

import (
	"sync"

	"github.com/tair/pos-ledger/pkg/logger"
)

// RoundRobin hands out upstream instances in turn, skipping the ones the
// health checker marked down. When every instance is down it falls back to
// the full list so a recovering upstream still gets traffic.
type RoundRobin struct {
	servers []string
	down    map[string]bool
	current int
	mu      sync.Mutex
}

// NewRoundRobin creates a new round-robin load balancer
func NewRoundRobin(servers []string) *RoundRobin {
	logger.Logger.Info().
		Int("server_count", len(servers)).
		Strs("servers", servers).
		Msg("Round-robin load balancer initialized")

	return &RoundRobin{
		servers: append([]string(nil), servers...),
		down:    make(map[string]bool),
	}
}

// Next returns the next server in round-robin order, or "" for an empty pool
func (rr *RoundRobin) Next() string {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if len(rr.servers) == 0 {
		return ""
	}

	for i := 0; i < len(rr.servers); i++ {
		server := rr.servers[rr.current]
		rr.current = (rr.current + 1) % len(rr.servers)
		if !rr.down[server] {
			return server
		}
	}

	server := rr.servers[rr.current]
	rr.current = (rr.current + 1) % len(rr.servers)
	return server
}

// SetHealthy records the outcome of a health probe for one server
func (rr *RoundRobin) SetHealthy(server string, healthy bool) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if rr.down[server] == !healthy {
		return
	}
	if healthy {
		delete(rr.down, server)
		logger.Logger.Info().Str("server", server).Msg("Upstream back in rotation")
		return
	}
	rr.down[server] = true
	logger.Logger.Warn().Str("server", server).Msg("Upstream taken out of rotation")
}

// Servers returns all configured servers
func (rr *RoundRobin) Servers() []string {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return append([]string{}, rr.servers...)
}

// Stats returns load balancer statistics
func (rr *RoundRobin) Stats() map[string]interface{} {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	down := make([]string, 0, len(rr.down))
	for _, s := range rr.servers {
		if rr.down[s] {
			down = append(down, s)
		}
	}

	return map[string]interface{}{
		"algorithm":     "round-robin",
		"server_count":  len(rr.servers),
		"servers":       rr.servers,
		"down":          down,
		"current_index": rr.current,
	}
}
