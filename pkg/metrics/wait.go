/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/chazu/litekube/pkg/kubeerr"
)

// Operation labels
const (
	OperationAwait    = "await"
	OperationAwaitAll = "await_all"
	OperationRetry    = "retry"
)

// Result labels
const (
	ResultSuccess = "success"
	ResultTimeout = "timeout"
	ResultError   = "error"
)

var (
	// Wait metrics
	waitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "litekube_wait_total",
		Help: "Total number of wait operations by outcome",
	}, []string{"operation", "result"})

	waitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "litekube_wait_duration_seconds",
		Help:    "Duration of wait operations",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
	}, []string{"operation"})

	waitWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "litekube_wait_workers",
		Help: "Number of batch wait workers currently running",
	})

	// Retry metrics
	retryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "litekube_retry_attempts_total",
		Help: "Total number of attempts made by bounded retries",
	}, []string{"result"})
)

func init() {
	// Register with controller-runtime's registry
	metrics.Registry.MustRegister(
		waitTotal,
		waitDuration,
		waitWorkers,
		retryAttemptsTotal,
	)
}

// RecordWait records a finished wait
// operation: OperationAwait, OperationAwaitAll or OperationRetry
// result: ResultSuccess, ResultTimeout or ResultError
func RecordWait(operation, result string, durationSeconds float64) {
	waitTotal.WithLabelValues(operation, result).Inc()
	waitDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// WorkerStarted increments the running batch worker gauge
func WorkerStarted() {
	waitWorkers.Inc()
}

// WorkerFinished decrements the running batch worker gauge
func WorkerFinished() {
	waitWorkers.Dec()
}

// RecordRetryAttempts adds the attempts made by one bounded retry
func RecordRetryAttempts(result string, attempts int) {
	retryAttemptsTotal.WithLabelValues(result).Add(float64(attempts))
}

// ResultFor maps an operation error onto a result label
func ResultFor(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case kubeerr.IsTimeout(err):
		return ResultTimeout
	default:
		return ResultError
	}
}
