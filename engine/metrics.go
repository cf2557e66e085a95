// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package engine

import "github.com/prometheus/client_golang/prometheus"

var _engineMtc = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "w3e_engine_operation_metrics",
	Help: "engine operation metrics.",
}, []string{"op", "status"})

func init() {
	prometheus.MustRegister(_engineMtc)
}
