package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tair/pos-ledger/api-gateway/config"
	"github.com/tair/pos-ledger/api-gateway/loadbalancer"
	"github.com/tair/pos-ledger/pkg/logger"
)

// IdempotencyHeader marks a write the ledger service can safely replay
const IdempotencyHeader = "Idempotency-Key"

var hopHeaders = map[string]bool{
	"connection":        true,
	"keep-alive":        true,
	"transfer-encoding": true,
	"upgrade":           true,
	"host":              true,
	"content-length":    true,
}

// ReverseProxy forwards requests to upstream instances picked round-robin.
// Reads and writes carrying an Idempotency-Key are retried on another
// instance when the upstream is unreachable or answers 502/503/504. Other
// writes are sent exactly once: a repeated sale would ring up twice.
type ReverseProxy struct {
	config        *config.GatewayConfig
	client        *http.Client
	loadBalancers map[string]*loadbalancer.RoundRobin
	backoff       time.Duration
}

// NewReverseProxy creates a new reverse proxy
func NewReverseProxy(cfg *config.GatewayConfig) *ReverseProxy {
	loadBalancers := make(map[string]*loadbalancer.RoundRobin, len(cfg.Services))
	for name, svc := range cfg.Services {
		loadBalancers[name] = loadbalancer.NewRoundRobin(svc.Instances)
	}

	return &ReverseProxy{
		config:        cfg,
		loadBalancers: loadBalancers,
		client:        &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		backoff:       100 * time.Millisecond,
	}
}

// LoadBalancers returns the balancer of every service, keyed by service name
func (p *ReverseProxy) LoadBalancers() map[string]*loadbalancer.RoundRobin {
	return p.loadBalancers
}

// ProxyRequest forwards the request to the target service
func (p *ReverseProxy) ProxyRequest(c *fiber.Ctx, serviceName string) error {
	svc, ok := p.config.Services[serviceName]
	lb := p.loadBalancers[serviceName]
	if !ok || lb == nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   fmt.Sprintf("unknown service %q", serviceName),
		})
	}

	attempts := 1
	if isReplayable(c) && svc.Retries > 1 {
		attempts = svc.Retries
	}

	// fasthttp reuses the request buffer once the handler returns
	body := append([]byte(nil), c.Body()...)
	ctx := c.UserContext()

	for attempt := 1; ; attempt++ {
		server := lb.Next()
		if server == "" {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"success": false,
				"error":   fmt.Sprintf("no instances configured for %s", serviceName),
			})
		}

		reqCtx, cancel := ctx, context.CancelFunc(func() {})
		if svc.Timeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, svc.Timeout)
		}

		resp, err := p.forward(reqCtx, c, server, body)
		last := attempt >= attempts
		if err == nil && (last || !retryableStatus(resp.StatusCode)) {
			c.Locals("upstream", server)
			err = p.writeResponse(c, resp)
			cancel()
			return err
		}
		if err == nil {
			resp.Body.Close()
			err = fmt.Errorf("upstream answered %d", resp.StatusCode)
		}
		cancel()

		logger.Warn(ctx).
			Err(err).
			Str("service", serviceName).
			Str("upstream", server).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("Upstream request failed")

		if last {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"success": false,
				"error":   fmt.Sprintf("failed to reach %s", serviceName),
			})
		}

		select {
		case <-ctx.Done():
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
				"success": false,
				"error":   "request cancelled",
			})
		case <-time.After(p.backoff << (attempt - 1)):
		}
	}
}

func (p *ReverseProxy) forward(ctx context.Context, c *fiber.Ctx, server string, body []byte) (*http.Response, error) {
	target := server + string(c.Request().URI().Path())
	if qs := string(c.Request().URI().QueryString()); qs != "" {
		target += "?" + qs
	}

	req, err := http.NewRequestWithContext(ctx, c.Method(), target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.Request().Header.VisitAll(func(key, value []byte) {
		k := string(key)
		if hopHeaders[strings.ToLower(k)] {
			return
		}
		req.Header.Add(k, string(value))
	})
	req.Header.Set("X-Forwarded-For", c.IP())
	req.Header.Set("X-Forwarded-Proto", c.Protocol())
	req.Header.Set("X-Forwarded-Host", c.Hostname())

	return p.client.Do(req)
}

func (p *ReverseProxy) writeResponse(c *fiber.Ctx, resp *http.Response) error {
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if hopHeaders[strings.ToLower(key)] {
			continue
		}
		for _, value := range values {
			c.Append(key, value)
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   "failed to read upstream response",
		})
	}

	return c.Status(resp.StatusCode).Send(body)
}

func isReplayable(c *fiber.Ctx) bool {
	switch c.Method() {
	case fiber.MethodGet, fiber.MethodHead:
		return true
	}
	return c.Get(IdempotencyHeader) != ""
}

func retryableStatus(code int) bool {
	return code == http.StatusBadGateway || code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout
}
