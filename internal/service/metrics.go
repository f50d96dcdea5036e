package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricVentas = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posledger_ventas_registradas_total",
		Help: "Committed sales by payment method.",
	}, []string{"metodo"})

	metricStockInsuficiente = promauto.NewCounter(prometheus.CounterOpts{
		Name: "posledger_stock_insuficiente_total",
		Help: "Sale commits rejected for insufficient stock.",
	})

	metricConflictos = promauto.NewCounter(prometheus.CounterOpts{
		Name: "posledger_conflictos_total",
		Help: "Transactions aborted by serialization failures or deadlocks.",
	})
)
