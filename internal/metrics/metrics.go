package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_orders_total", Help: "Entry orders filled"},
		[]string{"mode", "side"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_trades_total", Help: "Closed trades by result"},
		[]string{"result"},
	)
	ExitReasons = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_exit_reasons_total", Help: "Position exits by reason"},
		[]string{"reason", "side"},
	)
	ProtectionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bot_protection_failures_total", Help: "Positions left without TP/SL"},
	)
	Balance = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bot_balance_usd", Help: "Paper or tracked balance"},
	)
	PositionOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bot_position_open", Help: "1 long, -1 short, 0 flat"},
	)
	LossStreak = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bot_loss_streak", Help: "Consecutive losing closes"},
	)
	Paused = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bot_paused", Help: "1 while the loss breaker is active"},
	)
	CyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bot_cycles_total", Help: "Completed orchestration cycles"},
	)
	CycleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_cycle_errors_total", Help: "Failed cycles by kind"},
		[]string{"kind"},
	)
	ModelTrainings = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_model_trainings_total", Help: "Model training runs"},
		[]string{"outcome"},
	)
	ProbUp = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bot_prob_up", Help: "Latest model probability of an up move"},
	)
	ExchangeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_exchange_request_seconds",
			Help:    "Exchange call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"venue", "op", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		OrdersTotal, TradesTotal, ExitReasons, ProtectionFailures,
		Balance, PositionOpen, LossStreak, Paused,
		CyclesTotal, CycleErrors, ModelTrainings, ProbUp,
		ExchangeLatency,
	)
}

// BoolGauge is 1 for true, 0 for false.
func BoolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
