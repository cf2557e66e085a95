// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package unit defines the token denominations. Dust is the smallest unit,
// one W3E is 10^18 Dust. All ledger arithmetic is carried out in Dust.
package unit

import (
	"math/big"

	"github.com/pkg/errors"
)

const (
	// Dust is the smallest token unit
	Dust int64 = 1
	// KDust is 10^3 Dust
	KDust = Dust * 1000
	// MDust is 10^6 Dust
	MDust = KDust * 1000
	// GDust is 10^9 Dust
	GDust = MDust * 1000
	// W3e is 10^18 Dust, the display denomination of the token
	W3e = GDust * GDust
)

// ConvertW3eToDust converts an amount in W3E into a *big.Int amount in Dust.
func ConvertW3eToDust(w3e int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(w3e), big.NewInt(W3e))
}

// ConvertDustToW3e converts an amount in Dust into the whole-W3E part and
// the Dust remainder.
func ConvertDustToW3e(dust *big.Int) (*big.Int, *big.Int) {
	return new(big.Int).QuoRem(dust, big.NewInt(W3e), new(big.Int))
}

// FromString parses a base-10 Dust amount, rejecting negative values.
func FromString(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("failed to parse amount %s", s)
	}
	if amount.Sign() < 0 {
		return nil, errors.Errorf("negative amount %s", s)
	}
	return amount, nil
}
