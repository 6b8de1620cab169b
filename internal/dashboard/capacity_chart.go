package dashboard

import (
	"context"
	"time"

	"burrito-backend/internal/clock"
	"burrito-backend/internal/models"
	"burrito-backend/internal/money"
	"burrito-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

const (
	defaultCount = 8
	maxCount     = 52
)

type CapacityChartPoint struct {
	ScheduleID     uint                       `json:"schedule_id"`
	Label          string                     `json:"label"` // production date
	DayOfWeek      models.DayOfWeek           `json:"day_of_week"`
	IsActive       bool                       `json:"is_active"`
	Capacity       int                        `json:"capacity"`
	Reserved       int                        `json:"reserved"`
	Remaining      int                        `json:"remaining"`
	Percentage     float64                    `json:"percentage"`
	Urgency        models.Urgency             `json:"urgency"`
	PendingUnits   int                        `json:"pending_units"`
	OrdersByStatus map[models.OrderStatus]int `json:"orders_by_status"`
	Revenue        string                     `json:"revenue"`
}

type CapacityChartGrandTotals struct {
	Capacity     int    `json:"capacity"`
	Reserved     int    `json:"reserved"`
	Remaining    int    `json:"remaining"`
	PendingUnits int    `json:"pending_units"`
	Orders       int    `json:"orders"`
	Revenue      string `json:"revenue"`
	RevenueLabel string `json:"revenue_label"`
}

type CapacityChartResponse struct {
	From        string                   `json:"from"`
	To          string                   `json:"to"`
	Points      []CapacityChartPoint     `json:"points"`
	GrandTotals CapacityChartGrandTotals `json:"grand_totals"`
}

// BuildCapacityChart summarizes the next count production days starting at
// from. Revenue counts only orders that hold capacity; pending units are
// requested burritos not yet confirmed.
func BuildCapacityChart(ctx context.Context, st store.Store, from time.Time, count int) (*CapacityChartResponse, error) {
	from = models.DateOnly(from)
	schedules, err := st.ListSchedules(ctx, store.ScheduleFilter{From: &from})
	if err != nil {
		return nil, err
	}
	if len(schedules) > count {
		schedules = schedules[:count]
	}

	resp := &CapacityChartResponse{
		From:   from.Format(models.DateLayout),
		To:     from.Format(models.DateLayout),
		Points: make([]CapacityChartPoint, 0, len(schedules)),
	}
	totalRevenue := decimal.Zero

	for i := range schedules {
		s := &schedules[i]
		id := s.ID
		orders, err := st.ListOrders(ctx, store.OrderFilter{ScheduleID: &id})
		if err != nil {
			return nil, err
		}

		display := s.MobileCapacityDisplay()
		point := CapacityChartPoint{
			ScheduleID:     s.ID,
			Label:          s.DateString(),
			DayOfWeek:      s.DayOfWeek,
			IsActive:       s.IsActive,
			Capacity:       s.MaxBurritos,
			Reserved:       s.BurritosOrdered,
			Remaining:      s.AvailableCapacity(),
			Percentage:     s.CapacityPercentage(),
			Urgency:        display.Urgency,
			OrdersByStatus: map[models.OrderStatus]int{},
		}
		revenue := decimal.Zero
		for _, o := range orders {
			point.OrdersByStatus[o.Status]++
			if o.Status == models.OrderStatusPending {
				point.PendingUnits += o.BurritoCount()
			}
			if o.Status.HoldsCapacity() {
				revenue = revenue.Add(o.TotalAmount)
			}
		}
		point.Revenue = revenue.StringFixed(2)
		totalRevenue = totalRevenue.Add(revenue)

		resp.Points = append(resp.Points, point)
		resp.To = point.Label
		resp.GrandTotals.Capacity += point.Capacity
		resp.GrandTotals.Reserved += point.Reserved
		resp.GrandTotals.Remaining += point.Remaining
		resp.GrandTotals.PendingUnits += point.PendingUnits
		resp.GrandTotals.Orders += len(orders)
	}
	resp.GrandTotals.Revenue = totalRevenue.StringFixed(2)
	resp.GrandTotals.RevenueLabel = money.FormatUSD(totalRevenue)
	return resp, nil
}

// GET /api/admin/dashboard/capacity-chart?from=2025-06-01&count=8
func CapacityChartHandler(st store.Store, clk clock.Clock) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from := clk.Now()
		if v := c.Query("from"); v != "" {
			d, err := models.ParseDate(v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "from must be formatted YYYY-MM-DD")
			}
			from = d
		}

		count := c.QueryInt("count", defaultCount)
		if count <= 0 || count > maxCount {
			return fiber.NewError(fiber.StatusBadRequest, "count must be between 1 and 52")
		}

		resp, err := BuildCapacityChart(c.UserContext(), st, from, count)
		if err != nil {
			return err
		}
		return c.JSON(resp)
	}
}
