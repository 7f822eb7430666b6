package permission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "access_management",
		Subsystem: "permission",
		Name:      "mutations_total",
		Help:      "Permission mutations by operation and target kind.",
	}, []string{"operation", "target"})

	scopeChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "access_management",
		Subsystem: "permission",
		Name:      "scope_checks_total",
		Help:      "Scope resolutions by entity type and resulting filter kind.",
	}, []string{"entity_type", "filter"})

	maskedFieldsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "access_management",
		Subsystem: "permission",
		Name:      "masked_fields_total",
		Help:      "Field decisions that hid or masked a value, by mask rule.",
	}, []string{"mask_rule"})

	scopeCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "access_management",
		Subsystem: "permission",
		Name:      "cache_lookups_total",
		Help:      "Permission cache lookups by outcome.",
	}, []string{"outcome"})
)
