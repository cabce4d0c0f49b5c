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

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// endpoint is a connection to a remote node shared by all forks of the
// same URL. Identical concurrent requests are merged into a single remote
// call.
type endpoint struct {
	url      string
	client   Client
	timeout  time.Duration
	metrics  *forkMetrics
	requests singleflight.Group
	headers  *lru.Cache[uint64, *types.Header]
}

func newEndpoint(url string, client Client, config Config, metrics *forkMetrics) (*endpoint, error) {
	headers, err := lru.New[uint64, *types.Header](config.HeaderCacheSize)
	if err != nil {
		return nil, fmt.Errorf("invalid header cache size %d: %w", config.HeaderCacheSize, err)
	}
	return &endpoint{
		url:     url,
		client:  client,
		timeout: config.RequestTimeout,
		metrics: metrics,
		headers: headers,
	}, nil
}

// do runs the given request unless an identical one is in flight, in which
// case the result of the running one is shared.
func (e *endpoint) do(key string, request func(ctx context.Context) (any, error)) (any, error) {
	res, err, shared := e.requests.Do(key, func() (any, error) {
		ctx := context.Background()
		if e.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}
		e.metrics.requests.Inc(1)
		log.Debug("Remote request", "url", e.url, "request", key)
		return request(ctx)
	})
	if shared {
		e.metrics.sharedRequests.Inc(1)
	}
	return res, err
}

func (e *endpoint) chainID() (*big.Int, error) {
	res, err := e.do("chainId", func(ctx context.Context) (any, error) {
		return e.client.ChainID(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain id from %s: %w", e.url, err)
	}
	return new(big.Int).Set(res.(*big.Int)), nil
}

func (e *endpoint) latestBlock() (uint64, error) {
	res, err := e.do("blockNumber", func(ctx context.Context) (any, error) {
		return e.client.BlockNumber(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch latest block from %s: %w", e.url, err)
	}
	return res.(uint64), nil
}

func (e *endpoint) header(number uint64) (*types.Header, error) {
	if header, found := e.headers.Get(number); found {
		e.metrics.cacheHits.Inc(1)
		return header, nil
	}
	res, err := e.do(fmt.Sprintf("header:%d", number), func(ctx context.Context) (any, error) {
		return e.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch header of block %d from %s: %w", number, e.url, err)
	}
	header := res.(*types.Header)
	if header == nil {
		return nil, fmt.Errorf("block %d not found at %s", number, e.url)
	}
	e.headers.Add(number, header)
	return header, nil
}
