package service

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/production-api/internal/domain"
	"github.com/straye-as/production-api/internal/mapper"
)

// SortWorkOrders orders work orders by sales order line position and then by
// pipeline stage. Lines missing from positions sort last by reference.
func SortWorkOrders(workOrders []domain.WorkOrder, positions map[string]int) {
	sort.SliceStable(workOrders, func(i, j int) bool {
		a, b := workOrders[i], workOrders[j]
		if a.SalesOrderLineRef != b.SalesOrderLineRef {
			pa, okA := positions[a.SalesOrderLineRef]
			pb, okB := positions[b.SalesOrderLineRef]
			switch {
			case okA && okB && pa != pb:
				return pa < pb
			case okA != okB:
				return okA
			}
			return a.SalesOrderLineRef < b.SalesOrderLineRef
		}
		return a.Stage.Index() < b.Stage.Index()
	})
}

// OrderWiseProgress sums target and completed quantities per sales order line,
// keeping lines in the order they first appear.
func OrderWiseProgress(workOrders []domain.WorkOrder) []domain.OrderLineProgress {
	index := make(map[string]int)
	var out []domain.OrderLineProgress

	for _, wo := range workOrders {
		i, ok := index[wo.SalesOrderLineRef]
		if !ok {
			i = len(out)
			index[wo.SalesOrderLineRef] = i
			out = append(out, domain.OrderLineProgress{
				SalesOrderLineRef: wo.SalesOrderLineRef,
				ItemID:            wo.ItemID,
				ItemName:          wo.ItemName,
				TargetQuantity:    decimal.Zero,
				CompletedQuantity: decimal.Zero,
			})
		}
		line := &out[i]
		line.WorkOrderCount++
		line.TargetQuantity = line.TargetQuantity.Add(wo.TargetQuantity)
		line.CompletedQuantity = line.CompletedQuantity.Add(wo.CompletedQuantity)
	}

	for i := range out {
		out[i].Percent = ProgressPercent(out[i].CompletedQuantity, out[i].TargetQuantity)
	}
	if out == nil {
		out = []domain.OrderLineProgress{}
	}
	return out
}

// ProductWiseProgress builds the per-item pipeline: one bucket for every stage,
// each holding that item's work orders at the stage. The delivered bucket never
// holds work orders; its state follows the sheet's delivery.
func ProductWiseProgress(workOrders []domain.WorkOrder, delivered bool) []domain.ProductProgress {
	stages := domain.AllStages()
	index := make(map[string]int)
	var out []domain.ProductProgress

	for i := range workOrders {
		wo := &workOrders[i]
		p, ok := index[wo.ItemID]
		if !ok {
			p = len(out)
			index[wo.ItemID] = p
			buckets := make([]domain.ProductStageBucket, len(stages))
			for s, stage := range stages {
				buckets[s] = domain.ProductStageBucket{Stage: stage, WorkOrders: []domain.WorkOrderDTO{}}
			}
			out = append(out, domain.ProductProgress{
				ItemID:   wo.ItemID,
				ItemName: wo.ItemName,
				Stages:   buckets,
			})
		}
		s := wo.Stage.Index()
		if s < 0 {
			continue
		}
		out[p].Stages[s].WorkOrders = append(out[p].Stages[s].WorkOrders, mapper.ToWorkOrderDTO(wo))
	}

	for p := range out {
		for s := range out[p].Stages {
			bucket := &out[p].Stages[s]
			if bucket.Stage == domain.StageDelivered {
				bucket.State = domain.BucketStatePending
				if delivered {
					bucket.State = domain.BucketStateDone
				}
				continue
			}
			bucket.State = bucketState(bucket.WorkOrders)
		}
	}
	if out == nil {
		out = []domain.ProductProgress{}
	}
	return out
}

func bucketState(workOrders []domain.WorkOrderDTO) domain.BucketState {
	if len(workOrders) == 0 {
		return domain.BucketStateEmpty
	}
	counts := make(map[domain.WorkOrderStatus]int)
	for _, wo := range workOrders {
		counts[wo.Status]++
	}
	switch {
	case counts[domain.WorkOrderStatusInProgress] > 0:
		return domain.BucketStateActive
	case counts[domain.WorkOrderStatusOnHold] > 0:
		return domain.BucketStateOnHold
	case counts[domain.WorkOrderStatusPending] > 0:
		return domain.BucketStatePending
	case counts[domain.WorkOrderStatusCompleted] > 0:
		return domain.BucketStateDone
	}
	return domain.BucketStateCancelled
}

// MachineWiseProgress sums the work orders assigned to each machine.
// Unassigned work orders are excluded. Machines are ordered by code.
func MachineWiseProgress(workOrders []domain.WorkOrder) []domain.MachineLoad {
	index := make(map[uuid.UUID]int)
	out := []domain.MachineLoad{}

	for _, wo := range workOrders {
		if wo.MachineID == nil {
			continue
		}
		i, ok := index[*wo.MachineID]
		if !ok {
			i = len(out)
			index[*wo.MachineID] = i
			load := domain.MachineLoad{
				MachineID:         *wo.MachineID,
				Stage:             wo.Stage,
				TargetQuantity:    decimal.Zero,
				CompletedQuantity: decimal.Zero,
				RemainingQuantity: decimal.Zero,
			}
			if wo.Machine != nil {
				load.MachineCode = wo.Machine.Code
				load.MachineName = wo.Machine.Name
				load.Stage = wo.Machine.StageType
			}
			out = append(out, load)
		}
		load := &out[i]
		load.WorkOrderCount++
		if wo.Status == domain.WorkOrderStatusInProgress {
			load.ActiveCount++
		}
		load.TargetQuantity = load.TargetQuantity.Add(wo.TargetQuantity)
		load.CompletedQuantity = load.CompletedQuantity.Add(wo.CompletedQuantity)
		load.RemainingQuantity = load.RemainingQuantity.Add(wo.RemainingQuantity())
	}

	for i := range out {
		out[i].Percent = ProgressPercent(out[i].CompletedQuantity, out[i].TargetQuantity)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MachineCode != out[j].MachineCode {
			return out[i].MachineCode < out[j].MachineCode
		}
		return out[i].MachineID.String() < out[j].MachineID.String()
	})
	return out
}

// SheetProgressOf rolls every work order of a sheet into one completion figure
func SheetProgressOf(sheetID uuid.UUID, workOrders []domain.WorkOrder) domain.SheetProgress {
	progress := domain.SheetProgress{
		OrderSheetID:      sheetID,
		TargetQuantity:    decimal.Zero,
		CompletedQuantity: decimal.Zero,
		StatusCounts:      make(map[domain.WorkOrderStatus]int),
		StagePercent:      make(map[domain.Stage]decimal.Decimal),
	}

	stageTarget := make(map[domain.Stage]decimal.Decimal)
	stageCompleted := make(map[domain.Stage]decimal.Decimal)

	for _, wo := range workOrders {
		progress.TargetQuantity = progress.TargetQuantity.Add(wo.TargetQuantity)
		progress.CompletedQuantity = progress.CompletedQuantity.Add(wo.CompletedQuantity)
		progress.StatusCounts[wo.Status]++
		stageTarget[wo.Stage] = stageTarget[wo.Stage].Add(wo.TargetQuantity)
		stageCompleted[wo.Stage] = stageCompleted[wo.Stage].Add(wo.CompletedQuantity)
	}

	progress.Percent = ProgressPercent(progress.CompletedQuantity, progress.TargetQuantity)
	for _, stage := range domain.ProductiveStages() {
		progress.StagePercent[stage] = ProgressPercent(stageCompleted[stage], stageTarget[stage])
	}
	return progress
}
