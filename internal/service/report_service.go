package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/repository"
	"go.uber.org/zap"
)

// WeeklyReportDays is the length of the weekly report window, ending on the report date
const WeeklyReportDays = 7

// ReportService builds the daily and weekly production report (DPR)
type ReportService struct {
	entryRepo   *repository.ProductionEntryRepository
	historyRepo *repository.WorkOrderStatusHistoryRepository
	location    *time.Location
	logger      *zap.Logger
	now         func() time.Time
}

// NewReportService creates a new ReportService. Report dates are calendar days in loc.
func NewReportService(
	entryRepo *repository.ProductionEntryRepository,
	historyRepo *repository.WorkOrderStatusHistoryRepository,
	loc *time.Location,
	logger *zap.Logger,
) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{
		entryRepo:   entryRepo,
		historyRepo: historyRepo,
		location:    loc,
		logger:      logger,
		now:         time.Now,
	}
}

// Location returns the reporting time zone
func (s *ReportService) Location() *time.Location {
	return s.location
}

// Today returns the current calendar day in the reporting time zone
func (s *ReportService) Today() time.Time {
	return s.dayStart(s.now())
}

// ParseDate parses a YYYY-MM-DD report date in the reporting time zone
func (s *ReportService) ParseDate(value string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", value, s.location)
	if err != nil {
		return time.Time{}, fieldError(ErrInvalidInput, "date", value, "expected YYYY-MM-DD")
	}
	return day, nil
}

// Daily reports the entries that started on the given calendar day
func (s *ReportService) Daily(ctx context.Context, date time.Time) (*domain.ProductionReport, error) {
	from := s.dayStart(date)
	return s.build(ctx, domain.ReportPeriodDaily, from, from.AddDate(0, 0, 1))
}

// Weekly reports the seven calendar days ending on (and including) endDate
func (s *ReportService) Weekly(ctx context.Context, endDate time.Time) (*domain.ProductionReport, error) {
	to := s.dayStart(endDate).AddDate(0, 0, 1)
	return s.build(ctx, domain.ReportPeriodWeekly, to.AddDate(0, 0, -WeeklyReportDays), to)
}

func (s *ReportService) dayStart(t time.Time) time.Time {
	y, m, d := t.In(s.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.location)
}

func (s *ReportService) build(ctx context.Context, period domain.ReportPeriod, from, to time.Time) (*domain.ProductionReport, error) {
	entries, err := s.entryRepo.ListInWindow(ctx, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to load production entries: %w", err)
	}
	changes, err := s.historyRepo.CountTransitionsToStatus(ctx, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to count status changes: %w", err)
	}

	report := BuildProductionReport(entries)
	report.Period = period
	report.From = from.Format("2006-01-02")
	report.To = to.AddDate(0, 0, -1).Format("2006-01-02")
	report.Timezone = s.location.String()
	report.StatusChanges = changes
	report.GeneratedAt = s.now().UTC().Format(time.RFC3339)

	s.logger.Debug("production report built",
		zap.String("period", string(period)),
		zap.String("from", report.From),
		zap.String("to", report.To),
		zap.Int("entries", len(entries)))

	return report, nil
}

// reportAccumulator collects raw sums before percentages and rates are derived
type reportAccumulator struct {
	count   int
	input   decimal.Decimal
	output  decimal.Decimal
	wastage decimal.Decimal
	hours   decimal.Decimal
}

func (a *reportAccumulator) add(e *domain.ProductionEntry) {
	a.count++
	a.input = a.input.Add(e.InputQuantity)
	a.output = a.output.Add(e.OutputQuantity)
	a.wastage = a.wastage.Add(e.WastageQuantity)
	a.hours = a.hours.Add(ClippedHours(e.StartTime, e.EndTime))
}

func (a *reportAccumulator) merge(b reportAccumulator) {
	a.count += b.count
	a.input = a.input.Add(b.input)
	a.output = a.output.Add(b.output)
	a.wastage = a.wastage.Add(b.wastage)
	a.hours = a.hours.Add(b.hours)
}

func (a reportAccumulator) totals() domain.ReportTotals {
	return domain.ReportTotals{
		EntryCount:     a.count,
		Input:          a.input,
		Output:         a.output,
		Wastage:        a.wastage,
		WastagePercent: WastagePercent(a.wastage, a.input),
		Hours:          a.hours.Round(percentScale),
		HourlyOutput:   HourlyRate(a.output, a.hours),
	}
}

type machineGroup struct {
	machine *domain.Machine
	id      *uuid.UUID
	acc     reportAccumulator
}

// BuildProductionReport groups entries by stage (pipeline order) and then by
// machine (code order). Above-norm flags use each machine's current norm, which
// may differ from the norm stored on the entries.
func BuildProductionReport(entries []domain.ProductionEntry) *domain.ProductionReport {
	byStage := make(map[domain.Stage]map[string]*machineGroup)

	for i := range entries {
		e := &entries[i]
		groups, ok := byStage[e.Stage]
		if !ok {
			groups = make(map[string]*machineGroup)
			byStage[e.Stage] = groups
		}
		key := ""
		if e.MachineID != nil {
			key = e.MachineID.String()
		}
		g, ok := groups[key]
		if !ok {
			g = &machineGroup{machine: e.Machine, id: e.MachineID}
			groups[key] = g
		}
		g.acc.add(e)
	}

	report := &domain.ProductionReport{Stages: []domain.StageReport{}}
	var grand reportAccumulator

	for _, stage := range domain.AllStages() {
		groups, ok := byStage[stage]
		if !ok {
			continue
		}

		ordered := make([]*machineGroup, 0, len(groups))
		for _, g := range groups {
			ordered = append(ordered, g)
		}
		sort.Slice(ordered, func(i, j int) bool {
			ci, cj := groupCode(ordered[i]), groupCode(ordered[j])
			if ci != cj {
				return ci < cj
			}
			return groupKey(ordered[i]) < groupKey(ordered[j])
		})

		stageReport := domain.StageReport{Stage: stage, Machines: make([]domain.MachineReport, 0, len(ordered))}
		var stageAcc reportAccumulator
		for _, g := range ordered {
			line := domain.MachineReport{
				MachineID:    g.id,
				ReportTotals: g.acc.totals(),
			}
			if g.machine != nil {
				line.MachineCode = g.machine.Code
				line.MachineName = g.machine.Name
				line.WastageNormPercent = g.machine.WastageNormPercent
				line.AboveNorm = ExceedsNorm(line.WastagePercent, g.machine.WastageNormPercent)
			}
			stageReport.Machines = append(stageReport.Machines, line)
			stageAcc.merge(g.acc)
		}
		stageReport.Totals = stageAcc.totals()
		grand.merge(stageAcc)
		report.Stages = append(report.Stages, stageReport)
	}

	report.Totals = grand.totals()
	return report
}

func groupCode(g *machineGroup) string {
	if g.machine == nil {
		return ""
	}
	return g.machine.Code
}

func groupKey(g *machineGroup) string {
	if g.id == nil {
		return ""
	}
	return g.id.String()
}
