package service

import (
	"context"
	"fmt"
	"io"

	"github.com/emadn88/elmcorner/internal/salary/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	summarySheet  = "Summary"
	teachersSheet = "Teachers"
)

func (s *Service) ExportStatistics(ctx context.Context, req domain.StatisticsRequest, w io.Writer) error {
	stats, err := s.Statistics(ctx, req)
	if err != nil {
		return err
	}

	f, err := buildWorkbook(stats)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			s.log.Warn("close workbook", zap.Error(cerr))
		}
	}()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func buildWorkbook(stats domain.Statistics) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(teachersSheet); err != nil {
		return nil, err
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	period := fmt.Sprintf("%04d-%02d", stats.Year, stats.Month)
	summary := [][]any{
		{"Period", "Currency", "Teachers", "Total hours", "Total salary", "Average salary", "Previous month salary"},
	}
	for _, c := range stats.Currencies {
		summary = append(summary, []any{period, c.Currency, c.TeacherCount, c.TotalHours, c.TotalSalary, c.AverageSalary, c.PreviousMonthSalary})
	}
	if err := writeRows(f, summarySheet, summary, header); err != nil {
		return nil, err
	}

	teachers := [][]any{
		{"Teacher ID", "Teacher", "Currency", "Classes", "Total hours", "Total salary", "Previous month salary"},
	}
	for _, t := range stats.Teachers {
		teachers = append(teachers, []any{t.TeacherID.String(), t.TeacherName, t.Currency, t.TotalClasses, t.TotalHours, t.TotalSalary, t.PreviousMonthSalary})
	}
	if err := writeRows(f, teachersSheet, teachers, header); err != nil {
		return nil, err
	}
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", "G", 18)
}
