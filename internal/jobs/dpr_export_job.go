package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/straye-as/production-api/internal/service"
	"go.uber.org/zap"
)

// DPRExportJobName is the name of the nightly production report export
const DPRExportJobName = "dpr_export"

// DefaultExportTimeout bounds one export run
const DefaultExportTimeout = 5 * time.Minute

// DailyReportExporter renders and stores the daily production report
type DailyReportExporter interface {
	// Yesterday returns the previous calendar day in the reporting time zone
	Yesterday() time.Time
	ExportDaily(ctx context.Context, date time.Time) (*service.ExportResult, error)
}

// DPRExportJob stores the previous day's production report as a workbook
type DPRExportJob struct {
	exporter DailyReportExporter
	logger   *zap.Logger
}

// NewDPRExportJob creates a new export job
func NewDPRExportJob(exporter DailyReportExporter, logger *zap.Logger) *DPRExportJob {
	return &DPRExportJob{
		exporter: exporter,
		logger:   logger,
	}
}

// Run exports the report of the previous day
func (j *DPRExportJob) Run(ctx context.Context) error {
	day := j.exporter.Yesterday()
	result, err := j.exporter.ExportDaily(ctx, day)
	if err != nil {
		return fmt.Errorf("export of %s failed: %w", day.Format("2006-01-02"), err)
	}

	j.logger.Info("daily production report stored",
		zap.String("date", day.Format("2006-01-02")),
		zap.String("filename", result.Filename),
		zap.String("storage_path", result.StoragePath),
		zap.Int64("size", result.Size))
	return nil
}

// RegisterDPRExportJob registers the nightly export with the scheduler.
// cronExpr has a leading seconds field, e.g. "0 15 0 * * *".
func RegisterDPRExportJob(scheduler *Scheduler, exporter DailyReportExporter, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultExportTimeout
	}
	job := NewDPRExportJob(exporter, logger)
	return scheduler.AddJob(DPRExportJobName, cronExpr, timeout, job.Run)
}
