package routes

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tair/pos-ledger/api-gateway/health"
	"github.com/tair/pos-ledger/api-gateway/middleware"
	"github.com/tair/pos-ledger/api-gateway/proxy"
	"github.com/tair/pos-ledger/pkg/auth"
)

// RouteDefinition defines a route mapping
type RouteDefinition struct {
	Prefix      string `json:"prefix"`
	ServiceName string `json:"service"`
	Description string `json:"description"`
	RequireAuth bool   `json:"require_auth"`
}

// Routes holds all route definitions
var Routes = []RouteDefinition{
	{Prefix: "/api/sales", ServiceName: "ledger", Description: "Sales, invoices and returns", RequireAuth: true},
	{Prefix: "/api/products", ServiceName: "ledger", Description: "Products, stock movements and product ledger", RequireAuth: true},
	{Prefix: "/api/customers", ServiceName: "ledger", Description: "Customers, payments and customer ledger", RequireAuth: true},
	{Prefix: "/api/reconciliation", ServiceName: "ledger", Description: "Ledger consistency audit", RequireAuth: true},
	{Prefix: "/api/operators", ServiceName: "ledger", Description: "Operator administration", RequireAuth: true},
	{Prefix: "/auth", ServiceName: "ledger", Description: "Operator login"},
	{Prefix: "/swagger", ServiceName: "ledger", Description: "API documentation"},
}

// Gateway bundles what the routes need
type Gateway struct {
	Proxy    *proxy.ReverseProxy
	Health   *health.HealthChecker
	Auth     *middleware.Authenticator
	Breakers *middleware.CircuitBreakerManager
}

// SetupRoutes configures all routes in the gateway
func SetupRoutes(app *fiber.App, gw Gateway) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(gw.Health.QuickCheck())
	})

	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})

	// Readiness fails only when some service has no healthy instance left
	app.Get("/health/ready", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		status := gw.Health.CheckAllServices(ctx)
		code := fiber.StatusOK
		if status.Status == health.StatusUnhealthy {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(status)
	})

	app.Get("/health/services", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()
		return c.JSON(gw.Health.CheckAllServices(ctx))
	})

	app.Get("/gateway/stats", gw.Auth.Middleware(), gw.Auth.RequireRole(auth.RoleAdmin), func(c *fiber.Ctx) error {
		balancers := make(map[string]interface{})
		for name, lb := range gw.Proxy.LoadBalancers() {
			balancers[name] = lb.Stats()
		}
		return c.JSON(fiber.Map{
			"circuit_breakers": gw.Breakers.AllStats(),
			"load_balancers":   balancers,
		})
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "POS Gateway",
			"version": "1.0.0",
			"routes":  Routes,
		})
	})

	for _, route := range Routes {
		registerServiceRoutes(app, route, gw)
	}
}

// registerServiceRoutes registers all HTTP methods for a service prefix
func registerServiceRoutes(app *fiber.App, route RouteDefinition, gw Gateway) {
	handlers := []fiber.Handler{middleware.CircuitBreakerMiddleware(gw.Breakers, route.ServiceName)}
	if route.RequireAuth {
		handlers = append([]fiber.Handler{gw.Auth.Middleware()}, handlers...)
	}
	handlers = append(handlers, func(c *fiber.Ctx) error {
		return gw.Proxy.ProxyRequest(c, route.ServiceName)
	})

	app.All(route.Prefix, handlers...)
	app.All(route.Prefix+"/*", handlers...)
}
