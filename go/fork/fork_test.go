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

import "testing"

func TestForkID_ContainsURLAndBlock(t *testing.T) {
	id := NewForkID("http://localhost:8545", 12)
	if want, got := ForkID("http://localhost:8545@12"), id; want != got {
		t.Errorf("unexpected id, wanted %v, got %v", want, got)
	}
	if want, got := "http://localhost:8545", id.URL(); want != got {
		t.Errorf("unexpected url, wanted %v, got %v", want, got)
	}
	block, found := id.Block()
	if !found {
		t.Fatalf("block not found in %v", id)
	}
	if want, got := uint64(12), block; want != got {
		t.Errorf("unexpected block, wanted %d, got %d", want, got)
	}
}

func TestForkID_BlockOfMalformedID(t *testing.T) {
	for _, id := range []ForkID{"", "http://localhost", "http://localhost@latest"} {
		if _, found := id.Block(); found {
			t.Errorf("unexpected block in %q", id)
		}
	}
}

func TestDefaultConfig_IsUsable(t *testing.T) {
	config := DefaultConfig()
	if config.HeaderCacheSize <= 0 {
		t.Errorf("invalid header cache size: %d", config.HeaderCacheSize)
	}
	if config.RequestTimeout <= 0 {
		t.Errorf("invalid request timeout: %v", config.RequestTimeout)
	}
}
