package submit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var uploadFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "attendance_photo_upload_failures_total",
	Help: "Photo uploads that failed after the record was created.",
})
