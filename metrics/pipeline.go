package metrics

import (
	"log"
	"strconv"

	"github.com/VictoriaMetrics/metrics"
)

// RecordSyncPlan records one computed sync plan by change kind
func RecordSyncPlan(changeKind string, success bool) {
	if !IsEnabled() {
		return
	}

	metricName := `eventflow_sync_plans_total{change_kind="` + changeKind + `",success="` + strconv.FormatBool(success) + `"}`
	counter := metrics.GetOrCreateCounter(metricName)
	counter.Inc()
	log.Printf("[METRICS] Sync plan: kind=%s, success=%t", changeKind, success)
}

// RecordExecutorBatch records one executor batch by operation
func RecordExecutorBatch(operation string, success bool) {
	if !IsEnabled() {
		return
	}

	metricName := `eventflow_executor_batches_total{operation="` + operation + `",success="` + strconv.FormatBool(success) + `"}`
	counter := metrics.GetOrCreateCounter(metricName)
	counter.Inc()
	log.Printf("[METRICS] Executor batch: operation=%s, success=%t", operation, success)
}

// RecordGraceQueue records grace-window queue lifecycle events
func RecordGraceQueue(action string) {
	if !IsEnabled() {
		return
	}

	metricName := `eventflow_grace_queue_total{action="` + action + `"}`
	counter := metrics.GetOrCreateCounter(metricName)
	counter.Inc()
	log.Printf("[METRICS] Grace queue: action=%s", action)
}

// RecordReconcileEntry records the outcome of one reconciled change log entry
func RecordReconcileEntry(changeKind, outcome string) {
	if !IsEnabled() {
		return
	}

	metricName := `eventflow_reconcile_entries_total{change_kind="` + changeKind + `",outcome="` + outcome + `"}`
	counter := metrics.GetOrCreateCounter(metricName)
	counter.Inc()
	log.Printf("[METRICS] Reconcile entry: kind=%s, outcome=%s", changeKind, outcome)
}

// RecordReconcileRun records one reconciliation worker pass
func RecordReconcileRun(success bool) {
	if !IsEnabled() {
		return
	}

	metricName := `eventflow_reconcile_runs_total{success="` + strconv.FormatBool(success) + `"}`
	counter := metrics.GetOrCreateCounter(metricName)
	counter.Inc()
	log.Printf("[METRICS] Reconcile run: success=%t", success)
}
