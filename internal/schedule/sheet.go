package schedule

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"burrito-backend/internal/models"
	"burrito-backend/internal/money"
	"burrito-backend/internal/store"
	"burrito-backend/internal/validation"

	"github.com/xuri/excelize/v2"
)

const (
	sheetOrders  = "Orders"
	sheetTally   = "Burritos"
	sheetSummary = "Summary"
)

// ProductionSheet renders the kitchen prep sheet for one production day as
// an XLSX workbook: every capacity-holding order, a per-burrito tally and a
// capacity summary.
func (s *Service) ProductionSheet(ctx context.Context, id uint) ([]byte, string, error) {
	sched, err := s.store.FindSchedule(ctx, id)
	if err != nil {
		return nil, "", err
	}
	all, err := s.store.ListOrders(ctx, store.OrderFilter{ScheduleID: &id})
	if err != nil {
		return nil, "", err
	}
	orders := make([]models.Order, 0, len(all))
	for _, o := range all {
		if o.Status.HoldsCapacity() {
			orders = append(orders, o)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetOrders); err != nil {
		return nil, "", err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F4D03F"}, Pattern: 1},
	})
	if err != nil {
		return nil, "", err
	}

	if err := writeOrders(f, header, orders); err != nil {
		return nil, "", err
	}
	if err := writeTally(f, header, orders); err != nil {
		return nil, "", err
	}
	if err := writeSummary(f, header, sched, len(orders)); err != nil {
		return nil, "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("write production sheet: %w", err)
	}
	return buf.Bytes(), fmt.Sprintf("production-%s.xlsx", sched.DateString()), nil
}

func writeOrders(f *excelize.File, header int, orders []models.Order) error {
	cols := []any{"Order #", "Customer", "Phone", "Status", "Burritos", "Items", "Total", "Special instructions"}
	if err := f.SetSheetRow(sheetOrders, "A1", &cols); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetOrders, "A1", "H1", header); err != nil {
		return err
	}
	for i, o := range orders {
		items := make([]string, 0, len(o.Burritos))
		for _, b := range o.Burritos {
			item := b.Name
			if b.Notes != "" {
				item += " (" + b.Notes + ")"
			}
			items = append(items, item)
		}
		row := []any{
			o.OrderNumber,
			o.DisplayName(),
			validation.FormatPhoneNational(o.CustomerPhone),
			o.Status.Display().Label,
			o.BurritoCount(),
			strings.Join(items, ", "),
			money.FormatUSD(o.TotalAmount),
			o.SpecialInstructions,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetOrders, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheetOrders, "A", "A", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetOrders, "B", "C", 18); err != nil {
		return err
	}
	return f.SetColWidth(sheetOrders, "F", "H", 40)
}

func writeTally(f *excelize.File, header int, orders []models.Order) error {
	if _, err := f.NewSheet(sheetTally); err != nil {
		return err
	}
	counts := map[string]int{}
	for _, o := range orders {
		for _, b := range o.Burritos {
			counts[b.Name]++
		}
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := []any{"Burrito", "Quantity"}
	if err := f.SetSheetRow(sheetTally, "A1", &cols); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetTally, "A1", "B1", header); err != nil {
		return err
	}
	for i, name := range names {
		row := []any{name, counts[name]}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetTally, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetTally, "A", "A", 30)
}

func writeSummary(f *excelize.File, header int, sched *models.ProductionSchedule, orderCount int) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}
	stats := sched.ProductionStats()
	rows := [][]any{
		{"Production date", sched.DateString()},
		{"Day", string(sched.DayOfWeek)},
		{"Pickup window", sched.PickupStartTime + " - " + sched.PickupEndTime},
		{"Order cutoff", sched.OrderCutoffTime},
		{"Capacity", stats.TotalCapacity},
		{"Reserved", stats.ReservedCapacity},
		{"Remaining", stats.RemainingCapacity},
		{"Capacity used (%)", stats.CapacityPercentage},
		{"Orders", orderCount},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheetSummary, "A1", fmt.Sprintf("A%d", len(rows)), header); err != nil {
		return err
	}
	return f.SetColWidth(sheetSummary, "A", "B", 22)
}
