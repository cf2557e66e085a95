// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package ledger

import "math/big"

// MaxFeeBasisPoints is 100% expressed in basis points.
const MaxFeeBasisPoints = 10000

// FeeConfig holds the transfer fee settings of a ledger.
type FeeConfig struct {
	// BasisPoints is the fee rate, bounded by MaxFeeBasisPoints
	BasisPoints uint64
	// Collector receives routed fees
	Collector Address

	exempt map[Address]struct{}
}

// IsExempt returns whether the address never pays transfer fees.
func (f *FeeConfig) IsExempt(addr Address) bool {
	_, ok := f.exempt[addr]
	return ok
}

// SetExempt grants or revokes fee exemption for the address.
func (f *FeeConfig) SetExempt(addr Address, exempt bool) {
	if f.exempt == nil {
		f.exempt = make(map[Address]struct{})
	}
	if exempt {
		f.exempt[addr] = struct{}{}
	} else {
		delete(f.exempt, addr)
	}
}

// ExemptAddresses returns the addresses currently exempt from fees.
func (f *FeeConfig) ExemptAddresses() []Address {
	addrs := make([]Address, 0, len(f.exempt))
	for addr := range f.exempt {
		addrs = append(addrs, addr)
	}
	return addrs
}

// Split computes the fee split of a transfer amount. The fee is truncated
// by integer division, so rounding dust always favors the transfer
// recipient over the collector. With exemption, a zero rate, or no
// collector configured, the full amount passes through.
func (f *FeeConfig) Split(amount *big.Int, exempt bool) (net, fee *big.Int) {
	if exempt || f.BasisPoints == 0 || f.Collector == Zero {
		return new(big.Int).Set(amount), new(big.Int)
	}
	fee = new(big.Int).Mul(amount, new(big.Int).SetUint64(f.BasisPoints))
	fee.Quo(fee, big.NewInt(MaxFeeBasisPoints))
	return new(big.Int).Sub(amount, fee), fee
}
