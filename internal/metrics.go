package internal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printq_orders_submitted_total",
		Help: "Orders accepted for printing.",
	})
	ordersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printq_orders_completed_total",
		Help: "Orders marked completed by staff.",
	})
	ordersDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printq_orders_deleted_total",
		Help: "Orders removed from the queue.",
	})
	queueActivationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printq_queue_activations_total",
		Help: "Runs of the queue head activation.",
	})
)
