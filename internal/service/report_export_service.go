package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/storage"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// XLSXContentType is the MIME type of exported workbooks
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportKeyPrefix is the storage prefix under which report workbooks are kept
const ReportKeyPrefix = "reports/"

const (
	reportSheet  = "DPR"
	changesSheet = "Status Changes"
)

var reportColumns = []string{
	"Stage", "Machine", "Machine Name", "Entries", "Input", "Output", "Wastage",
	"Wastage %", "Norm %", "Above Norm", "Hours", "Output / Hour",
}

// ExportResult describes a stored report workbook
type ExportResult struct {
	Filename    string `json:"filename"`
	StoragePath string `json:"storagePath"`
	Size        int64  `json:"size"`
}

// ReportExportService renders production reports as xlsx workbooks
type ReportExportService struct {
	reports *ReportService
	store   storage.Storage
	logger  *zap.Logger
}

// NewReportExportService creates a new ReportExportService. store may be nil when
// exports are only streamed and never kept.
func NewReportExportService(reports *ReportService, store storage.Storage, logger *zap.Logger) *ReportExportService {
	return &ReportExportService{
		reports: reports,
		store:   store,
		logger:  logger,
	}
}

// DailyWorkbook builds the daily report for date and renders it
func (s *ReportExportService) DailyWorkbook(ctx context.Context, date time.Time) (*bytes.Buffer, string, error) {
	report, err := s.reports.Daily(ctx, date)
	if err != nil {
		return nil, "", err
	}
	buf, err := RenderReportWorkbook(report)
	if err != nil {
		return nil, "", err
	}
	return buf, ReportFilename(report), nil
}

// Yesterday returns the previous calendar day in the reporting time zone
func (s *ReportExportService) Yesterday() time.Time {
	return s.reports.Today().AddDate(0, 0, -1)
}

// ExportDaily renders the daily report and keeps it in file storage
func (s *ReportExportService) ExportDaily(ctx context.Context, date time.Time) (*ExportResult, error) {
	if s.store == nil {
		return nil, ErrExportStorageUnavailable
	}
	buf, filename, err := s.DailyWorkbook(ctx, date)
	if err != nil {
		return nil, err
	}

	path, size, err := s.store.Upload(ctx, ReportKeyPrefix+filename, XLSXContentType, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to store report workbook: %w", err)
	}

	s.logger.Info("production report exported",
		zap.String("filename", filename),
		zap.String("storage_path", path),
		zap.Int64("size", size))

	return &ExportResult{Filename: filename, StoragePath: path, Size: size}, nil
}

// List returns the stored report workbooks
func (s *ReportExportService) List(ctx context.Context) ([]storage.Object, error) {
	if s.store == nil {
		return nil, ErrExportStorageUnavailable
	}
	return s.store.List(ctx, ReportKeyPrefix)
}

// Open returns a stored export for download
func (s *ReportExportService) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	if s.store == nil {
		return nil, ErrExportStorageUnavailable
	}
	rc, err := s.store.Download(ctx, ReportKeyPrefix+filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			return nil, fieldError(ErrNotFound, "filename", filename, "")
		}
		return nil, err
	}
	return rc, nil
}

// Remove deletes a stored export
func (s *ReportExportService) Remove(ctx context.Context, filename string) error {
	if s.store == nil {
		return ErrExportStorageUnavailable
	}
	if err := s.store.Delete(ctx, ReportKeyPrefix+filename); err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			return fieldError(ErrInvalidInput, "filename", filename, "")
		}
		return err
	}
	s.logger.Info("production report removed", zap.String("filename", filename))
	return nil
}

// ReportFilename names the workbook after the period and window
func ReportFilename(report *domain.ProductionReport) string {
	if report.From == report.To {
		return fmt.Sprintf("dpr-%s-%s.xlsx", report.Period, report.From)
	}
	return fmt.Sprintf("dpr-%s-%s_%s.xlsx", report.Period, report.From, report.To)
}

// RenderReportWorkbook writes the report as an xlsx workbook: one row per machine,
// a subtotal per stage and a grand total, plus a sheet of status changes.
func RenderReportWorkbook(report *domain.ProductionReport) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(reportSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create report sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14, Family: "Arial"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create title style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF", Family: "Arial"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	totalStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Family: "Arial"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create total style: %w", err)
	}
	alertStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#C00000", Family: "Arial"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create alert style: %w", err)
	}

	title := fmt.Sprintf("Production Report (%s) %s to %s", report.Period, report.From, report.To)
	if err := f.SetCellValue(reportSheet, "A1", title); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(reportSheet, "A1", "A1", titleStyle); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(reportSheet, "A2", "Time zone: "+report.Timezone); err != nil {
		return nil, err
	}

	headerRow := 4
	if err := writeRow(f, reportSheet, headerRow, toCells(reportColumns)); err != nil {
		return nil, err
	}
	lastCol, _ := excelize.CoordinatesToCellName(len(reportColumns), headerRow)
	if err := f.SetCellStyle(reportSheet, "A4", lastCol, headerStyle); err != nil {
		return nil, err
	}

	row := headerRow + 1
	for _, stage := range report.Stages {
		for _, m := range stage.Machines {
			cells := totalsCells(string(stage.Stage), m.MachineCode, m.MachineName, m.ReportTotals)
			cells[8] = m.WastageNormPercent.InexactFloat64()
			cells[9] = yesNo(m.AboveNorm)
			if err := writeRow(f, reportSheet, row, cells); err != nil {
				return nil, err
			}
			if m.AboveNorm {
				cell, _ := excelize.CoordinatesToCellName(10, row)
				if err := f.SetCellStyle(reportSheet, cell, cell, alertStyle); err != nil {
					return nil, err
				}
			}
			row++
		}
		if err := writeStyledRow(f, reportSheet, row, totalsCells(string(stage.Stage)+" total", "", "", stage.Totals), totalStyle); err != nil {
			return nil, err
		}
		row++
	}
	if err := writeStyledRow(f, reportSheet, row, totalsCells("Grand total", "", "", report.Totals), totalStyle); err != nil {
		return nil, err
	}

	if err := f.SetColWidth(reportSheet, "A", "C", 20); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(reportSheet, "D", "L", 14); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(changesSheet); err != nil {
		return nil, fmt.Errorf("failed to create status sheet: %w", err)
	}
	if err := writeRow(f, changesSheet, 1, []interface{}{"Status", "Transitions"}); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(changesSheet, "A1", "B1", headerStyle); err != nil {
		return nil, err
	}
	changeRow := 2
	for _, status := range []domain.WorkOrderStatus{
		domain.WorkOrderStatusInProgress, domain.WorkOrderStatusOnHold,
		domain.WorkOrderStatusCompleted, domain.WorkOrderStatusCancelled,
	} {
		if err := writeRow(f, changesSheet, changeRow, []interface{}{string(status), report.StatusChanges[status]}); err != nil {
			return nil, err
		}
		changeRow++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf, nil
}

func totalsCells(label, code, name string, t domain.ReportTotals) []interface{} {
	return []interface{}{
		label, code, name, t.EntryCount,
		t.Input.InexactFloat64(), t.Output.InexactFloat64(), t.Wastage.InexactFloat64(),
		t.WastagePercent.InexactFloat64(), "", "",
		t.Hours.InexactFloat64(), t.HourlyOutput.InexactFloat64(),
	}
}

func writeRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, start, &cells)
}

func writeStyledRow(f *excelize.File, sheet string, row int, cells []interface{}, style int) error {
	if err := writeRow(f, sheet, row, cells); err != nil {
		return err
	}
	start, _ := excelize.CoordinatesToCellName(1, row)
	end, _ := excelize.CoordinatesToCellName(len(cells), row)
	return f.SetCellStyle(sheet, start, end, style)
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
