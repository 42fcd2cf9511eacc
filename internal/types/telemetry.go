package types

// Metric names and dimensions shared by the CloudWatch and Prometheus recorders.
const (
	MetricRunCompleted      = "EscalationRunCompleted"
	MetricRunDuration       = "EscalationRunDuration"
	MetricRunRejected       = "EscalationRunRejected"
	MetricRemindersSent     = "RemindersSent"
	MetricSweepErrors       = "SweepErrors"
	MetricDeliverySuccess   = "DeliverySuccess"
	MetricDeliveryFailed    = "DeliveryFailed"
	MetricSecondaryFailed   = "SecondaryDeliveryFailed"
	MetricExternalAPIFailed = "ExternalAPIFailure"

	DimCategory = "Category"
	DimChannel  = "Channel"
	DimOutcome  = "Outcome"
	DimProvider = "Provider"

	MetricNamespace = "PolicyPortal"
)
