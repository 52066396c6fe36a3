package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/straye-as/production-api/internal/jobs"
	"github.com/straye-as/production-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_AddRunRemove(t *testing.T) {
	scheduler := jobs.NewScheduler(zap.NewNop())

	var runs atomic.Int32
	var sawDeadline atomic.Bool
	err := scheduler.AddJob("count", "0 0 3 * * *", time.Minute, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		sawDeadline.Store(ok)
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)

	err = scheduler.AddJob("count", "@daily", time.Minute, func(context.Context) error { return nil })
	assert.Error(t, err, "duplicate job names are rejected")

	require.NoError(t, scheduler.RunNow("count"))
	assert.Equal(t, int32(1), runs.Load())
	assert.True(t, sawDeadline.Load(), "each run carries the job timeout")

	assert.Equal(t, []string{"count"}, scheduler.GetJobNames())

	require.NoError(t, scheduler.RemoveJob("count"))
	assert.Empty(t, scheduler.GetJobNames())
	assert.Error(t, scheduler.RemoveJob("count"))
	assert.Error(t, scheduler.RunNow("count"))
}

func TestScheduler_InvalidCron(t *testing.T) {
	scheduler := jobs.NewScheduler(zap.NewNop())

	err := scheduler.AddJob("bad", "not a schedule", time.Minute, func(context.Context) error { return nil })
	assert.Error(t, err)

	err = scheduler.AddJob("five-field", "15 0 * * *", time.Minute, func(context.Context) error { return nil })
	assert.Error(t, err, "expressions need a seconds field")
	assert.Empty(t, scheduler.GetJobNames())
}

func TestScheduler_FailingJobDoesNotPanic(t *testing.T) {
	scheduler := jobs.NewScheduler(zap.NewNop())

	require.NoError(t, scheduler.AddJob("fails", "@hourly", time.Second, func(context.Context) error {
		return errors.New("boom")
	}))
	require.NoError(t, scheduler.AddJob("panics", "@hourly", time.Second, func(context.Context) error {
		panic("boom")
	}))

	assert.NotPanics(t, func() {
		require.NoError(t, scheduler.RunNow("fails"))
		require.NoError(t, scheduler.RunNow("panics"))
	})
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := jobs.NewScheduler(zap.NewNop())
	scheduler.Start()

	select {
	case <-scheduler.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

type fakeExporter struct {
	day    time.Time
	err    error
	called []time.Time
}

func (f *fakeExporter) Yesterday() time.Time {
	return f.day
}

func (f *fakeExporter) ExportDaily(ctx context.Context, date time.Time) (*service.ExportResult, error) {
	f.called = append(f.called, date)
	if f.err != nil {
		return nil, f.err
	}
	return &service.ExportResult{
		Filename:    "dpr-daily-" + date.Format("2006-01-02") + ".xlsx",
		StoragePath: service.ReportKeyPrefix + "dpr-daily-" + date.Format("2006-01-02") + ".xlsx",
		Size:        1024,
	}, nil
}

func TestDPRExportJob_Run(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	exporter := &fakeExporter{day: day}
	job := jobs.NewDPRExportJob(exporter, zap.NewNop())

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, exporter.called, 1)
	assert.Equal(t, day, exporter.called[0])
}

func TestDPRExportJob_RunFailure(t *testing.T) {
	exporter := &fakeExporter{
		day: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		err: service.ErrExportStorageUnavailable,
	}
	job := jobs.NewDPRExportJob(exporter, zap.NewNop())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrExportStorageUnavailable))
	assert.Contains(t, err.Error(), "2026-03-01")
}

func TestRegisterDPRExportJob(t *testing.T) {
	scheduler := jobs.NewScheduler(zap.NewNop())
	exporter := &fakeExporter{day: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}

	require.NoError(t, jobs.RegisterDPRExportJob(scheduler, exporter, zap.NewNop(), "0 15 0 * * *", 0))
	assert.Equal(t, []string{jobs.DPRExportJobName}, scheduler.GetJobNames())

	require.NoError(t, scheduler.RunNow(jobs.DPRExportJobName))
	assert.Len(t, exporter.called, 1)

	err := jobs.RegisterDPRExportJob(scheduler, exporter, zap.NewNop(), "0 15 0 * * *", time.Minute)
	assert.Error(t, err, "the export is registered once")
}
