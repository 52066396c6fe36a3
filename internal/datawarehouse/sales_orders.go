package datawarehouse

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/production-api/internal/domain"
	"go.uber.org/zap"
)

var viewNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)?$`)

// salesOrderQuery selects the lines of one approved sales order, in ERP line order
const salesOrderQuery = `SELECT SalesOrderNo, CustomerNo, CustomerName, OrderDate, DeliveryDate, Priority,
       LineNo, ItemNo, ItemDescription, Quantity, Unit
FROM %s
WHERE SalesOrderNo = @p1
ORDER BY LineNo`

// GetSalesOrder loads an approved sales order with its lines.
// Returns nil, nil when the warehouse has no such order.
func (c *Client) GetSalesOrder(ctx context.Context, ref string) (*domain.SalesOrder, error) {
	if !c.IsEnabled() {
		return nil, ErrNotConnected
	}
	if !viewNamePattern.MatchString(c.salesView) {
		return nil, fmt.Errorf("invalid sales order view name: %q", c.salesView)
	}

	rows, err := c.queryRows(ctx, fmt.Sprintf(salesOrderQuery, c.salesView), ref)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales order %s: %w", ref, err)
	}
	if len(rows) == 0 {
		c.logger.Debug("Sales order not found in data warehouse", zap.String("sales_order", ref))
		return nil, nil
	}

	order, err := salesOrderFromRows(ref, rows)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Sales order loaded from data warehouse",
		zap.String("sales_order", ref),
		zap.Int("lines", len(order.LineItems)),
	)
	return order, nil
}

// salesOrderFromRows folds the denormalised view rows into one sales order.
// Header columns are taken from the first row.
func salesOrderFromRows(ref string, rows []map[string]interface{}) (*domain.SalesOrder, error) {
	first := rows[0]
	order := &domain.SalesOrder{
		ID:           ref,
		CustomerID:   asString(first["CustomerNo"]),
		CustomerName: asString(first["CustomerName"]),
		OrderDate:    asTime(first["OrderDate"]),
		DeliveryDate: asTime(first["DeliveryDate"]),
		Priority:     asPriority(first["Priority"]),
		LineItems:    make([]domain.SalesOrderLineItem, 0, len(rows)),
	}

	for i, row := range rows {
		qty, err := asDecimal(row["Quantity"])
		if err != nil {
			return nil, fmt.Errorf("sales order %s line %d: invalid quantity: %w", ref, i+1, err)
		}
		order.LineItems = append(order.LineItems, domain.SalesOrderLineItem{
			LineRef:  asString(row["LineNo"]),
			ItemID:   asString(row["ItemNo"]),
			ItemName: asString(row["ItemDescription"]),
			Quantity: qty,
			Unit:     asString(row["Unit"]),
		})
	}
	return order, nil
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func asTime(v interface{}) *time.Time {
	t, ok := v.(time.Time)
	if !ok || t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}

// asDecimal handles the driver's DECIMAL encoding ([]byte) as well as float and integer columns
func asDecimal(v interface{}) (decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, nil
	case []byte:
		return decimal.NewFromString(string(t))
	case string:
		return decimal.NewFromString(strings.TrimSpace(t))
	case float64:
		return decimal.NewFromFloat(t), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case int32:
		return decimal.NewFromInt(int64(t)), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported type %T", v)
	}
}

// asPriority maps the ERP priority code; unknown codes fall back to normal
func asPriority(v interface{}) domain.Priority {
	p := domain.Priority(strings.ToLower(asString(v)))
	switch p {
	case "1":
		return domain.PriorityUrgent
	case "2":
		return domain.PriorityHigh
	case "4":
		return domain.PriorityLow
	}
	if p.IsValid() {
		return p
	}
	return domain.PriorityNormal
}
