// Copyright 2026 The LUCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics instruments template operations with Prometheus.
package metrics

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts template operations and measures their latency.
//
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// New creates a Recorder and registers its collectors with reg.
//
// Collectors already registered with reg are reused, so several templates can
// share one registry.
func New(reg prometheus.Registerer) (*Recorder, error) {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gcpdata_operations_total",
		Help: "Number of template operations by store, operation, mode and result.",
	}, []string{"store", "op", "mode", "result"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gcpdata_operation_duration_seconds",
		Help:    "Latency of template operations.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"store", "op", "mode"})

	var err error
	if ops, err = register(reg, ops); err != nil {
		return nil, err
	}
	if latency, err = register(reg, latency); err != nil {
		return nil, err
	}
	return &Recorder{ops: ops, latency: latency}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, errors.Wrap(err, "registering gcpdata metrics")
	}
	return c, nil
}

// Observe records one operation that started at start and finished with err.
func (r *Recorder) Observe(store, op, mode string, start time.Time, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.ops.WithLabelValues(store, op, mode, result).Inc()
	r.latency.WithLabelValues(store, op, mode).Observe(time.Since(start).Seconds())
}
