package metrics

import (
	"log"
	"strconv"

	"github.com/VictoriaMetrics/metrics"
)

// RecordDelivery records one delivery attempt against the WhatsApp gateway
func RecordDelivery(status, errorCode string) {
	if !IsEnabled() {
		return
	}

	// VictoriaMetrics/metrics API: include labels in metric name
	metricName := `eventflow_deliveries_total{status="` + status + `",error_code="` + errorCode + `"}`
	counter := metrics.GetOrCreateCounter(metricName)
	counter.Inc()
	log.Printf("[METRICS] Delivery: status=%s, error=%s", status, errorCode)
}

// RecordDeliveryRetry records the single transient-failure retry of a send
func RecordDeliveryRetry() {
	if !IsEnabled() {
		return
	}

	counter := metrics.GetOrCreateCounter(`eventflow_delivery_retries_total`)
	counter.Inc()
	log.Printf("[METRICS] Delivery retry")
}

// RecordQuotaRejected records a send blocked by the tenant's tier quota
func RecordQuotaRejected(tier string) {
	if !IsEnabled() {
		return
	}

	metricName := `eventflow_quota_rejections_total{tier="` + tier + `"}`
	counter := metrics.GetOrCreateCounter(metricName)
	counter.Inc()
	log.Printf("[METRICS] Quota rejection: tier=%s", tier)
}

// RecordDispatch records one due message handed to the delivery queue
func RecordDispatch(success bool) {
	if !IsEnabled() {
		return
	}

	metricName := `eventflow_dispatched_messages_total{success="` + strconv.FormatBool(success) + `"}`
	counter := metrics.GetOrCreateCounter(metricName)
	counter.Inc()
	log.Printf("[METRICS] Dispatch: success=%t", success)
}
