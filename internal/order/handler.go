package order

import (
	"strings"
	"time"

	"burrito-backend/internal/auth"
	"burrito-backend/internal/models"
	"burrito-backend/internal/money"
	"burrito-backend/internal/store"
	"burrito-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultListLimit = 200
	maxListLimit     = 1000
)

type BurritoResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Notes string `json:"notes,omitempty"`
	Price string `json:"price"`
}

type MoneyResponse struct {
	Subtotal     string `json:"subtotal"`
	Tax          string `json:"tax"`
	Total        string `json:"total"`
	TotalDisplay string `json:"total_display"`
}

type OrderResponse struct {
	ID                   uint                        `json:"id"`
	OrderNumber          string                      `json:"order_number"`
	Status               models.OrderStatus          `json:"status"`
	StatusDisplay        models.StatusDisplay        `json:"status_display"`
	AllowedTransitions   []models.OrderStatus        `json:"allowed_transitions"`
	IsGuest              bool                        `json:"is_guest"`
	CustomerName         string                      `json:"customer_name"`
	CustomerPhone        string                      `json:"customer_phone"`
	CustomerPhoneDisplay string                      `json:"customer_phone_display"`
	CustomerEmail        string                      `json:"customer_email,omitempty"`
	ProductionScheduleID uint                        `json:"production_schedule_id"`
	ProductionDate       string                      `json:"production_date,omitempty"`
	SpecialInstructions  string                      `json:"special_instructions,omitempty"`
	Burritos             []BurritoResponse           `json:"burritos"`
	BurritoCount         int                         `json:"burrito_count"`
	Money                MoneyResponse               `json:"money"`
	EstimatedReadyTime   *time.Time                  `json:"estimated_ready_time"`
	StatusHistory        []models.StatusHistoryEntry `json:"status_history"`
	CreatedAt            time.Time                   `json:"created_at"`
	UpdatedAt            time.Time                   `json:"updated_at"`
}

func NewOrderResponse(o *models.Order) OrderResponse {
	resp := OrderResponse{
		ID:                   o.ID,
		OrderNumber:          o.OrderNumber,
		Status:               o.Status,
		StatusDisplay:        o.StatusDisplay(),
		AllowedTransitions:   o.Status.AllowedTransitions(),
		IsGuest:              o.IsGuestOrder(),
		CustomerName:         o.DisplayName(),
		CustomerPhone:        o.CustomerPhone,
		CustomerPhoneDisplay: validation.FormatPhoneNational(o.CustomerPhone),
		CustomerEmail:        o.CustomerEmail,
		ProductionScheduleID: o.ProductionScheduleID,
		SpecialInstructions:  o.SpecialInstructions,
		Burritos:             make([]BurritoResponse, 0, len(o.Burritos)),
		BurritoCount:         o.BurritoCount(),
		Money: MoneyResponse{
			Subtotal:     o.Subtotal.StringFixed(2),
			Tax:          o.TaxAmount.StringFixed(2),
			Total:        o.TotalAmount.StringFixed(2),
			TotalDisplay: money.FormatUSD(o.TotalAmount),
		},
		EstimatedReadyTime: o.EstimatedReadyTime(),
		StatusHistory:      o.StatusHistory(),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
	if o.User != nil && resp.CustomerEmail == "" {
		resp.CustomerEmail = o.User.Email
	}
	if o.ProductionSchedule != nil {
		resp.ProductionDate = o.ProductionSchedule.DateString()
	}
	for _, b := range o.Burritos {
		resp.Burritos = append(resp.Burritos, BurritoResponse{
			ID:    b.ID,
			Name:  b.Name,
			Notes: b.Notes,
			Price: b.Price.StringFixed(2),
		})
	}
	return resp
}

func orderList(list []models.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(list))
	for i := range list {
		out = append(out, NewOrderResponse(&list[i]))
	}
	return out
}

func optionalUserID(c *fiber.Ctx) *uint {
	if id, ok := auth.UserID(c); ok {
		return &id
	}
	return nil
}

type StatusRequest struct {
	Status string `json:"status"`
}

type CancelRequest struct {
	Phone string `json:"phone"`
}

// POST /api/orders
// Signed-in customers own the order; everyone else orders as a guest.
func CreateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateInput
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		var (
			o   *models.Order
			err error
		)
		if userID, ok := auth.UserID(c); ok {
			o, err = svc.CreateOrder(c.UserContext(), userID, body)
		} else {
			o, err = svc.CreateGuestOrder(c.UserContext(), body)
		}
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(NewOrderResponse(o))
	}
}

// GET /api/orders/:number?phone=5551234567
func TrackHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		o, err := svc.GetForCustomer(c.UserContext(), c.Params("number"), c.Query("phone"), optionalUserID(c))
		if err != nil {
			return err
		}
		return c.JSON(NewOrderResponse(o))
	}
}

// POST /api/orders/:number/cancel
func CancelHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CancelRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
			}
		}
		o, err := svc.CancelForCustomer(c.UserContext(), c.Params("number"), body.Phone, optionalUserID(c))
		if err != nil {
			return err
		}
		return c.JSON(NewOrderResponse(o))
	}
}

// GET /api/me/orders
func MyOrdersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := auth.UserID(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Not signed in")
		}
		list, err := svc.ListForUser(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(orderList(list))
	}
}

// GET /api/admin/orders?schedule_id=3&status=confirmed&phone=5551234567&limit=50
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var f store.OrderFilter
		if v := c.Query("schedule_id"); v != "" {
			id := uint(c.QueryInt("schedule_id", 0))
			if id == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "schedule_id must be a positive number")
			}
			f.ScheduleID = &id
		}
		if v := c.Query("status"); v != "" {
			st, err := models.ParseOrderStatus(v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			f.Status = &st
		}
		if v := strings.TrimSpace(c.Query("phone")); v != "" {
			phone, err := validation.NormalizePhone(v)
			if err != nil {
				return err
			}
			f.Phone = phone
		}
		f.Limit = c.QueryInt("limit", defaultListLimit)
		if f.Limit <= 0 || f.Limit > maxListLimit {
			f.Limit = defaultListLimit
		}

		list, err := svc.List(c.UserContext(), f)
		if err != nil {
			return err
		}
		return c.JSON(orderList(list))
	}
}

// GET /api/admin/orders/:id
func GetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid id")
		}
		o, err := svc.Get(c.UserContext(), uint(id))
		if err != nil {
			return err
		}
		return c.JSON(NewOrderResponse(o))
	}
}

// POST /api/admin/orders/:id/status
func TransitionHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid id")
		}
		var body StatusRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		target, err := models.ParseOrderStatus(body.Status)
		if err != nil {
			return validation.New("status", "Status must be one of pending, confirmed, in_preparation, ready, completed, cancelled")
		}
		o, err := svc.TransitionTo(c.UserContext(), uint(id), target)
		if err != nil {
			return err
		}
		return c.JSON(NewOrderResponse(o))
	}
}
