package schedule

import (
	"time"

	"burrito-backend/internal/models"
	"burrito-backend/internal/store"

	"github.com/gofiber/fiber/v2"
)

type ScheduleResponse struct {
	ID                uint                   `json:"id"`
	ProductionDate    string                 `json:"production_date"`
	DayOfWeek         models.DayOfWeek       `json:"day_of_week"`
	MaxBurritos       int                    `json:"max_burritos"`
	BurritosOrdered   int                    `json:"burritos_ordered"`
	AvailableCapacity int                    `json:"available_capacity"`
	OrderCutoffTime   string                 `json:"order_cutoff_time"`
	PickupStartTime   string                 `json:"pickup_start_time"`
	PickupEndTime     string                 `json:"pickup_end_time"`
	IsActive          bool                   `json:"is_active"`
	Notes             string                 `json:"notes,omitempty"`
	CanAcceptOrders   bool                   `json:"can_accept_orders"`
	Capacity          models.CapacityDisplay `json:"capacity"`
	Cutoff            models.CutoffStatus    `json:"cutoff"`
}

type GenerateRequest struct {
	Weeks int `json:"weeks"`
}

func NewScheduleResponse(s *models.ProductionSchedule, now time.Time) ScheduleResponse {
	return ScheduleResponse{
		ID:                s.ID,
		ProductionDate:    s.DateString(),
		DayOfWeek:         s.DayOfWeek,
		MaxBurritos:       s.MaxBurritos,
		BurritosOrdered:   s.BurritosOrdered,
		AvailableCapacity: s.AvailableCapacity(),
		OrderCutoffTime:   s.OrderCutoffTime,
		PickupStartTime:   s.PickupStartTime,
		PickupEndTime:     s.PickupEndTime,
		IsActive:          s.IsActive,
		Notes:             s.Notes,
		CanAcceptOrders:   s.CanAcceptNewOrders(now),
		Capacity:          s.MobileCapacityDisplay(),
		Cutoff:            s.CutoffStatus(now),
	}
}

func scheduleList(list []models.ProductionSchedule, now time.Time) []ScheduleResponse {
	out := make([]ScheduleResponse, 0, len(list))
	for i := range list {
		out = append(out, NewScheduleResponse(&list[i], now))
	}
	return out
}

func paramID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid id")
	}
	return uint(id), nil
}

// GET /api/schedules
func ListAvailableHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.ListAvailable(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(scheduleList(list, svc.Now()))
	}
}

// GET /api/schedules/:id
func GetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		sched, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(NewScheduleResponse(sched, svc.Now()))
	}
}

// GET /api/admin/schedules?from=2025-06-01&to=2025-06-30&active=true
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var f store.ScheduleFilter
		if v := c.Query("from"); v != "" {
			d, err := models.ParseDate(v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "from must be formatted YYYY-MM-DD")
			}
			f.From = &d
		}
		if v := c.Query("to"); v != "" {
			d, err := models.ParseDate(v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "to must be formatted YYYY-MM-DD")
			}
			f.To = &d
		}
		f.ActiveOnly = c.QueryBool("active", false)

		var (
			list []models.ProductionSchedule
			err  error
		)
		if f.From == nil && f.To == nil && !f.ActiveOnly {
			list, err = svc.ListUpcoming(c.UserContext())
		} else {
			list, err = svc.List(c.UserContext(), f)
		}
		if err != nil {
			return err
		}
		return c.JSON(scheduleList(list, svc.Now()))
	}
}

// POST /api/admin/schedules
func CreateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateInput
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		sched, err := svc.Create(c.UserContext(), body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(NewScheduleResponse(sched, svc.Now()))
	}
}

// PUT /api/admin/schedules/:id
func UpdateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		var body UpdateInput
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		sched, err := svc.Update(c.UserContext(), id, body)
		if err != nil {
			return err
		}
		return c.JSON(NewScheduleResponse(sched, svc.Now()))
	}
}

// DELETE /api/admin/schedules/:id
func DeleteHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/admin/schedules/generate
func GenerateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body GenerateRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
			}
		}
		if body.Weeks < 0 || body.Weeks > 52 {
			return fiber.NewError(fiber.StatusBadRequest, "weeks must be between 1 and 52, or omitted for the default")
		}
		res, err := svc.Generate(c.UserContext(), body.Weeks)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// GET /api/admin/schedules/:id/stats
func StatsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		sched, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"schedule_id":     sched.ID,
			"production_date": sched.DateString(),
			"stats":           sched.ProductionStats(),
			"capacity":        sched.MobileCapacityDisplay(),
			"cutoff":          sched.CutoffStatus(svc.Now()),
		})
	}
}

// GET /api/admin/schedules/:id/production-sheet
func ProductionSheetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		data, filename, err := svc.ProductionSheet(c.UserContext(), id)
		if err != nil {
			return err
		}
		c.Attachment(filename)
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		return c.Send(data)
	}
}
