// Package metrics содержит счётчики Prometheus сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — набор счётчиков. Создаётся один раз в приложении и передаётся
// в сервисы явно.
type Metrics struct {
	SquadAssignments  *prometheus.CounterVec
	NoEligibleSquad   *prometheus.CounterVec
	PanelRequests     *prometheus.CounterVec
	MassActionItems   *prometheus.CounterVec
	LedgerTransaction *prometheus.CounterVec
}

// New создаёт счётчики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SquadAssignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "squad_assignments_total",
			Help:      "Assignments of keys to squads.",
		}, []string{"squad"}),
		NoEligibleSquad: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "no_eligible_squad_total",
			Help:      "Key creations rejected because every squad was full or inactive.",
		}, []string{"type"}),
		PanelRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "panel_requests_total",
			Help:      "Requests to the external VPN panel.",
		}, []string{"op", "result"}),
		MassActionItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "mass_action_items_total",
			Help:      "Processed mass action items.",
		}, []string{"action", "result"}),
		LedgerTransaction: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "ledger_transactions_total",
			Help:      "Written ledger transactions.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		m.SquadAssignments,
		m.NoEligibleSquad,
		m.PanelRequests,
		m.MassActionItems,
		m.LedgerTransaction,
	)
	return m
}

// NewNoop возвращает счётчики, не привязанные к реестру. Для тестов.
func NewNoop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Result переводит ошибку в метку result.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
