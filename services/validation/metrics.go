// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// removalsTotal counts removed QA items by removal reason.
	removalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian",
		Subsystem: "vqa_validation",
		Name:      "removals_total",
		Help:      "QA items removed by the validation pipeline, by reason.",
	}, []string{"reason"})

	// oracleFallbacksTotal counts stages skipped because the oracle gave
	// no usable result.
	oracleFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian",
		Subsystem: "vqa_validation",
		Name:      "oracle_fallbacks_total",
		Help:      "Stage-level fallbacks to the input QA set, by stage.",
	}, []string{"stage"})

	// judgeIterationsTotal counts full passes of the iterative loop.
	judgeIterationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aleutian",
		Subsystem: "vqa_validation",
		Name:      "judge_iterations_total",
		Help:      "Completed passes of the iterative judge loop.",
	})
)
