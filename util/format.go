// Copyright (c) 2019 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util

import "fmt"

// Hashrate unit thresholds, in hashes per second.
const (
	KiloHash = 1000.0
	MegaHash = 1000 * KiloHash
	GigaHash = 1000 * MegaHash
)

// HashString formats the provided network hashrate per the best-fit unit.
func HashString(hash float64) string {
	switch {
	case hash <= 0:
		return "0 H/s"
	case hash >= GigaHash:
		return fmt.Sprintf("%.4f GH/s", hash/GigaHash)
	case hash >= MegaHash:
		return fmt.Sprintf("%.4f MH/s", hash/MegaHash)
	case hash >= KiloHash:
		return fmt.Sprintf("%.4f KH/s", hash/KiloHash)
	default:
		return fmt.Sprintf("%.4f H/s", hash)
	}
}
