// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeeSplit(t *testing.T) {
	require := require.New(t)
	f := FeeConfig{BasisPoints: 250, Collector: _collector}

	for _, test := range []struct {
		amount int64
		net    int64
		fee    int64
	}{
		{0, 0, 0},
		{1, 1, 0},   // fee rounds down to zero
		{39, 39, 0}, // 39 * 250 / 10000 = 0
		{40, 39, 1}, // exactly one unit of fee
		{10000, 9750, 250},
		{10001, 9751, 250},
		{999999, 975000, 24999},
	} {
		net, fee := f.Split(big.NewInt(test.amount), false)
		require.Equal(test.net, net.Int64(), "amount %d", test.amount)
		require.Equal(test.fee, fee.Int64(), "amount %d", test.amount)
		// conservation: net + fee == amount
		require.Equal(test.amount, net.Int64()+fee.Int64())
	}
}

func TestFeeSplitExempt(t *testing.T) {
	require := require.New(t)
	f := FeeConfig{BasisPoints: 10000, Collector: _collector}
	net, fee := f.Split(big.NewInt(1000), true)
	require.Equal(int64(1000), net.Int64())
	require.Equal(int64(0), fee.Int64())

	// 100% fee routes everything to the collector
	net, fee = f.Split(big.NewInt(1000), false)
	require.Equal(int64(0), net.Int64())
	require.Equal(int64(1000), fee.Int64())
}

func TestFeeSplitUnconfigured(t *testing.T) {
	require := require.New(t)
	// zero rate
	f := FeeConfig{Collector: _collector}
	net, fee := f.Split(big.NewInt(1000), false)
	require.Equal(int64(1000), net.Int64())
	require.Equal(int64(0), fee.Int64())

	// no collector
	f = FeeConfig{BasisPoints: 250}
	net, fee = f.Split(big.NewInt(1000), false)
	require.Equal(int64(1000), net.Int64())
	require.Equal(int64(0), fee.Int64())
}

func TestFeeExemptSet(t *testing.T) {
	require := require.New(t)
	var f FeeConfig
	require.False(f.IsExempt(_alice))
	f.SetExempt(_alice, true)
	require.True(f.IsExempt(_alice))
	f.SetExempt(_alice, false)
	require.False(f.IsExempt(_alice))
}
