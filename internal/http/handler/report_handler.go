package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/production-api/internal/service"
	"go.uber.org/zap"
)

// ReportHandler serves the daily production report (DPR) and its stored exports
type ReportHandler struct {
	reportService *service.ReportService
	exportService *service.ReportExportService
	logger        *zap.Logger
}

// NewReportHandler creates a new report handler instance
func NewReportHandler(reportService *service.ReportService, exportService *service.ReportExportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		exportService: exportService,
		logger:        logger,
	}
}

// reportDate reads the date query parameter, defaulting to today in the reporting time zone
func (h *ReportHandler) reportDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	value := r.URL.Query().Get("date")
	if value == "" {
		return h.reportService.Today(), true
	}
	date, err := h.reportService.ParseDate(value)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid date format, expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

// Daily godoc
// @Summary Daily production report
// @Description Production grouped by stage then machine for one calendar day.
// @Description Above-norm flags compare against the machine's current wastage norm.
// @Tags Reports
// @Produce json
// @Param date query string false "Report date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} domain.ProductionReport
// @Failure 400 {object} domain.ErrorResponse
// @Router /reports/dpr/daily [get]
func (h *ReportHandler) Daily(w http.ResponseWriter, r *http.Request) {
	date, ok := h.reportDate(w, r)
	if !ok {
		return
	}

	report, err := h.reportService.Daily(r.Context(), date)
	if err != nil {
		respondServiceError(w, h.logger, err, "build daily report")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Weekly godoc
// @Summary Weekly production report
// @Description Production for the seven days ending on date
// @Tags Reports
// @Produce json
// @Param date query string false "Last day of the window (YYYY-MM-DD), defaults to today"
// @Success 200 {object} domain.ProductionReport
// @Failure 400 {object} domain.ErrorResponse
// @Router /reports/dpr/weekly [get]
func (h *ReportHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	date, ok := h.reportDate(w, r)
	if !ok {
		return
	}

	report, err := h.reportService.Weekly(r.Context(), date)
	if err != nil {
		respondServiceError(w, h.logger, err, "build weekly report")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// DailyWorkbook godoc
// @Summary Download daily report workbook
// @Tags Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param date query string false "Report date (YYYY-MM-DD), defaults to today"
// @Success 200 {file} binary
// @Failure 400 {object} domain.ErrorResponse
// @Router /reports/dpr/daily.xlsx [get]
func (h *ReportHandler) DailyWorkbook(w http.ResponseWriter, r *http.Request) {
	date, ok := h.reportDate(w, r)
	if !ok {
		return
	}

	buf, filename, err := h.exportService.DailyWorkbook(r.Context(), date)
	if err != nil {
		respondServiceError(w, h.logger, err, "render daily report")
		return
	}

	w.Header().Set("Content-Type", service.XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Export godoc
// @Summary Store daily report workbook
// @Description Renders the daily report and keeps it in file storage, replacing an earlier export of the same day
// @Tags Reports
// @Produce json
// @Param date query string false "Report date (YYYY-MM-DD), defaults to today"
// @Success 201 {object} service.ExportResult
// @Failure 503 {object} domain.ErrorResponse "No file storage configured"
// @Router /reports/exports [post]
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	date, ok := h.reportDate(w, r)
	if !ok {
		return
	}

	result, err := h.exportService.ExportDaily(r.Context(), date)
	if err != nil {
		respondServiceError(w, h.logger, err, "export daily report")
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// ListExports godoc
// @Summary List stored report workbooks
// @Tags Reports
// @Produce json
// @Success 200 {array} storage.Object
// @Failure 503 {object} domain.ErrorResponse
// @Router /reports/exports [get]
func (h *ReportHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	objects, err := h.exportService.List(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "list report exports")
		return
	}

	respondJSON(w, http.StatusOK, objects)
}

// DownloadExport godoc
// @Summary Download stored report workbook
// @Tags Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param filename path string true "Workbook file name"
// @Success 200 {file} binary
// @Failure 404 {object} domain.ErrorResponse
// @Router /reports/exports/{filename} [get]
func (h *ReportHandler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	rc, err := h.exportService.Open(r.Context(), filename)
	if err != nil {
		respondServiceError(w, h.logger, err, "download report export")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", service.XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("failed to stream report export", zap.String("filename", filename), zap.Error(err))
	}
}

// DeleteExport godoc
// @Summary Delete stored report workbook
// @Tags Reports
// @Param filename path string true "Workbook file name"
// @Success 204
// @Failure 400 {object} domain.ErrorResponse
// @Router /reports/exports/{filename} [delete]
func (h *ReportHandler) DeleteExport(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	if err := h.exportService.Remove(r.Context(), filename); err != nil {
		respondServiceError(w, h.logger, err, "delete report export")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
