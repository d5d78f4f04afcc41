// Package export writes shop schedules to Excel workbooks for
// groomers who plan their day off a printed sheet.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"groomly/internal/domain"
	"groomly/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Schedule"

type Exporter struct {
	bookings domain.BookingService
	dir      string
	logger   *zerolog.Logger
}

func NewExporter(bookings domain.BookingService, dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{bookings: bookings, dir: dir, logger: logger}
}

// DaySchedule writes one shop-day of appointments and returns the file
// path. Cancelled appointments are listed too; their row is greyed so
// the groomer can see freed slots.
func (e *Exporter) DaySchedule(ctx context.Context, shopID string, date time.Time) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	appts, err := e.bookings.ListDay(ctx, shopID, date)
	if err != nil {
		return "", fmt.Errorf("list appointments: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := e.writeHeader(f, shopID, date); err != nil {
		return "", err
	}
	e.writeRows(f, appts)

	_ = f.SetColWidth(sheetName, "A", "B", 10)
	_ = f.SetColWidth(sheetName, "C", "E", 20)
	_ = f.SetColWidth(sheetName, "F", "G", 14)
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("schedule_%s_%s.xlsx", shopID, models.DayKey(date))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	e.logger.Info().
		Str("shop_id", shopID).
		Str("date", models.DayKey(date)).
		Str("file_path", filePath).
		Int("appointments", len(appts)).
		Msg("schedule exported")
	return filePath, nil
}

func (e *Exporter) writeHeader(f *excelize.File, shopID string, date time.Time) error {
	title := fmt.Sprintf("%s / %s", shopID, models.DayKey(date))
	if err := f.SetCellValue(sheetName, "A1", title); err != nil {
		return fmt.Errorf("write title: %w", err)
	}
	_ = f.MergeCell(sheetName, "A1", "G1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headers := []string{"Start", "End", "Customer", "Pet", "Service", "Status", "Phone"}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	return nil
}

func (e *Exporter) writeRows(f *excelize.File, appts []*models.Appointment) {
	row := 3
	for _, a := range appts {
		end := ""
		if iv, err := a.Interval(); err == nil {
			end = models.FormatClock(iv.EndMinute)
		}

		values := []any{a.Time, end, a.CustomerName, a.PetName, a.ServiceType, a.Status, a.CustomerPhone}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}

		if styleID, err := f.NewStyle(rowStyle(a.Status)); err == nil {
			first, _ := excelize.CoordinatesToCellName(1, row)
			last, _ := excelize.CoordinatesToCellName(len(values), row)
			_ = f.SetCellStyle(sheetName, first, last, styleID)
		}
		row++
	}
}

func rowStyle(status string) *excelize.Style {
	color := "#FFFFFF"
	switch status {
	case models.StatusConfirmed, models.StatusCompleted:
		color = "#C6EFCE"
	case models.StatusPending:
		color = "#FFEB9C"
	case models.StatusCancelled:
		color = "#D9D9D9"
	}
	return &excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "top"},
	}
}
