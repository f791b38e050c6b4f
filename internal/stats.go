package internal

import (
	"time"

	"github.com/printq/printq/internal/model"
)

// the shop runs on IST wall-clock days
var istZone = time.FixedZone("IST", 5*60*60+30*60)

type Stats struct {
	PendingCount   int `json:"pendingCount"`
	CompletedCount int `json:"completedCount"`
}

// ComputeStats derives the dashboard counters from an order list: pending
// orders, and orders completed whose timestamp falls on the current IST
// calendar date. Pure function of its inputs.
func ComputeStats(orders []model.Order, now time.Time) Stats {
	var s Stats
	today := now.In(istZone).Format("2006-01-02")

	for _, o := range orders {
		switch o.Status {
		case model.OrderStatusPending:
			s.PendingCount++
		case model.OrderStatusCompleted:
			if o.Timestamp.In(istZone).Format("2006-01-02") == today {
				s.CompletedCount++
			}
		}
	}

	return s
}
