// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package fork

import "github.com/ethereum/go-ethereum/metrics"

// Stats summarizes the remote traffic caused by forks.
type Stats struct {
	Requests       int64
	CacheHits      int64
	SharedRequests int64
}

type forkMetrics struct {
	requests       metrics.Counter
	cacheHits      metrics.Counter
	sharedRequests metrics.Counter
}

// newForkMetrics obtains the provider counters from the default registry.
// Counters are only recorded if metrics were enabled before the first
// provider was created.
func newForkMetrics() *forkMetrics {
	return &forkMetrics{
		requests:       metrics.GetOrRegisterCounter("fork/remote/requests", nil),
		cacheHits:      metrics.GetOrRegisterCounter("fork/cache/hits", nil),
		sharedRequests: metrics.GetOrRegisterCounter("fork/remote/shared", nil),
	}
}

func (m *forkMetrics) stats() Stats {
	return Stats{
		Requests:       m.requests.Snapshot().Count(),
		CacheHits:      m.cacheHits.Snapshot().Count(),
		SharedRequests: m.sharedRequests.Snapshot().Count(),
	}
}
