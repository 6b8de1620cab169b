// Package server assembles the fiber application and its route table.
package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"burrito-backend/internal/audit"
	"burrito-backend/internal/auth"
	"burrito-backend/internal/clock"
	"burrito-backend/internal/config"
	"burrito-backend/internal/dashboard"
	"burrito-backend/internal/lock"
	"burrito-backend/internal/metrics"
	"burrito-backend/internal/models"
	"burrito-backend/internal/order"
	"burrito-backend/internal/schedule"
	"burrito-backend/internal/store"
	"burrito-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const HeaderRequestID = "X-Request-ID"

type Deps struct {
	Config    *config.Config
	Logger    logrus.FieldLogger
	Clock     clock.Clock
	Store     store.Store
	Schedules *schedule.Service
	Orders    *order.Service
	Metrics   *metrics.Metrics
	// Gatherer serves /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Health is called by /healthz; nil always reports ok.
	Health func(ctx context.Context) error
}

func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "burrito-backend",
		ErrorHandler: ErrorHandler(d.Logger),
	})

	app.Use(requestLogger(d.Logger))
	app.Use(recover.New())

	corsOrigins := strings.Split(d.Config.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + HeaderRequestID,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))
	app.Use(d.Metrics.Middleware())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if d.Health != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := d.Health(ctx); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if d.Gatherer != nil {
		app.Get("/metrics", metrics.Handler(d.Gatherer))
	}

	api := app.Group("/api")

	// Public
	api.Post("/auth/register", auth.RegisterHandler(d.Config, d.Store))
	api.Post("/auth/login", auth.LoginHandler(d.Config, d.Store))

	api.Get("/schedules", schedule.ListAvailableHandler(d.Schedules))
	api.Get("/schedules/:id", schedule.GetHandler(d.Schedules))

	// Guests and signed-in customers
	orders := api.Group("/orders", auth.OptionalJWT(d.Config))
	orders.Post("", order.CreateHandler(d.Orders))
	orders.Get("/:number", order.TrackHandler(d.Orders))
	orders.Post("/:number/cancel", order.CancelHandler(d.Orders))

	// Signed in
	requireUser := auth.JWTMiddleware(d.Config)
	api.Get("/auth/me", requireUser, auth.MeHandler(d.Store))
	api.Get("/me/orders", requireUser, order.MyOrdersHandler(d.Orders))

	// Admin
	admin := api.Group("/admin", auth.JWTMiddleware(d.Config), auth.RequireRole(models.RoleAdmin))

	admin.Get("/schedules", schedule.ListHandler(d.Schedules))
	admin.Post("/schedules", schedule.CreateHandler(d.Schedules))
	admin.Post("/schedules/generate", schedule.GenerateHandler(d.Schedules))
	admin.Put("/schedules/:id", schedule.UpdateHandler(d.Schedules))
	admin.Delete("/schedules/:id", schedule.DeleteHandler(d.Schedules))
	admin.Get("/schedules/:id/stats", schedule.StatsHandler(d.Schedules))
	admin.Get("/schedules/:id/production-sheet", schedule.ProductionSheetHandler(d.Schedules))

	admin.Get("/orders", order.ListHandler(d.Orders))
	admin.Get("/orders/:id", order.GetHandler(d.Orders))
	admin.Post("/orders/:id/status", order.TransitionHandler(d.Orders))

	admin.Get("/dashboard/capacity-chart", dashboard.CapacityChartHandler(d.Store, d.Clock))

	admin.Get("/audit-logs", audit.ListAuditLogsHandler(d.Store))

	return app
}

type errorBody struct {
	Error  string                  `json:"error"`
	Code   string                  `json:"code,omitempty"`
	Fields []validation.FieldError `json:"fields,omitempty"`
}

// ErrorHandler turns handler and domain errors into JSON responses.
func ErrorHandler(logger logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			ferr *fiber.Error
			verr *validation.Error
		)
		status, body := fiber.StatusInternalServerError, errorBody{Error: "Unexpected server error"}

		switch {
		case errors.As(err, &ferr):
			status, body = ferr.Code, errorBody{Error: ferr.Message}
		case errors.As(err, &verr):
			status, body = fiber.StatusUnprocessableEntity, errorBody{Error: verr.Error(), Code: "validation_failed", Fields: verr.Fields}
		case errors.Is(err, schedule.ErrCapacityExhausted):
			status, body = fiber.StatusConflict, errorBody{Error: schedule.ErrCapacityExhausted.Error(), Code: "capacity_exhausted"}
		case errors.Is(err, models.ErrInvalidTransition):
			status, body = fiber.StatusConflict, errorBody{Error: err.Error(), Code: "invalid_transition"}
		case errors.Is(err, schedule.ErrOrderingClosed):
			status, body = fiber.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "ordering_closed"}
		case errors.Is(err, schedule.ErrScheduleHasOrders):
			status, body = fiber.StatusConflict, errorBody{Error: schedule.ErrScheduleHasOrders.Error(), Code: "schedule_has_orders"}
		case errors.Is(err, store.ErrNotFound):
			status, body = fiber.StatusNotFound, errorBody{Error: "Not found", Code: "not_found"}
		case errors.Is(err, store.ErrConflict):
			status, body = fiber.StatusConflict, errorBody{Error: "The record was changed by another request, reload and try again", Code: "conflict"}
		case errors.Is(err, store.ErrDuplicate):
			status, body = fiber.StatusConflict, errorBody{Error: "Already exists", Code: "duplicate"}
		case errors.Is(err, lock.ErrNotObtained):
			status, body = fiber.StatusConflict, errorBody{Error: "Another update is in progress, try again shortly", Code: "busy"}
		case errors.Is(err, order.ErrOrderNumberExhausted):
			status, body = fiber.StatusServiceUnavailable, errorBody{Error: "Could not place the order, please try again", Code: "order_number_exhausted"}
		default:
			config.LogError(logger, "server", "ErrorHandler", c.Method()+" "+c.Path(), fiber.Map{
				"request_id": c.Locals(HeaderRequestID),
			}, err)
		}
		return c.Status(status).JSON(body)
	}
}

// requestLogger tags each request with an id and logs one line once the
// response status is known.
func requestLogger(logger logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		id := c.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(HeaderRequestID, id)
		c.Set(HeaderRequestID, id)

		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		entry := logger.WithFields(logrus.Fields{
			"request_id": id,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
		})
		switch {
		case status >= fiber.StatusInternalServerError:
			entry.Error("request")
		case status >= fiber.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
		return nil
	}
}
