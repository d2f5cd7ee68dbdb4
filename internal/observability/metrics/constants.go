package metrics

import "time"

// Operation names accepted by the pipeline recorder.
const (
	OpCycle        = "cycle"
	OpCollect      = "collect"
	OpValidate     = "validate"
	OpStore        = "store"
	OpDetect       = "detect"
	OpCorrelate    = "correlate"
	OpNewsFetch    = "news_fetch"
	OpHealthCheck  = "health_check"
	OpNotification = "notification"
)

// Operation statuses.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusAbandoned = "abandoned"
	StatusSkipped   = "skipped"
)

// Histogram bucket parameters.
const (
	BucketStart10ms = 0.01
	BucketFactor2   = 2
	BucketCount12   = 12
)

// ShutdownTimeout bounds the graceful shutdown of metric-serving endpoints.
const ShutdownTimeout = 5 * time.Second
