// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package ledger

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDelegate(t *testing.T) {
	require := require.New(t)
	l := testLedger(t)
	require.NoError(l.Transfer(_t0, _owner, _alice, big.NewInt(1000)))
	require.NoError(l.Transfer(_t0, _owner, _bob, big.NewInt(500)))

	// balance alone grants no voting power
	require.Equal(int64(0), l.Votes(_alice).Int64())

	// self-delegation activates one's own power
	require.NoError(l.Delegate(_t0, _alice, _alice))
	require.Equal(int64(1000), l.Votes(_alice).Int64())

	// delegating to another moves the full balance weight
	require.NoError(l.Delegate(_t0.Add(time.Minute), _bob, _alice))
	require.Equal(int64(1500), l.Votes(_alice).Int64())
	require.Equal(int64(0), l.Votes(_bob).Int64())

	// re-delegation moves the weight away again
	require.NoError(l.Delegate(_t0.Add(2*time.Minute), _bob, _bob))
	require.Equal(int64(1000), l.Votes(_alice).Int64())
	require.Equal(int64(500), l.Votes(_bob).Int64())
}

func TestVotesTrackBalances(t *testing.T) {
	require := require.New(t)
	l := testLedger(t)
	require.NoError(l.Transfer(_t0, _owner, _alice, big.NewInt(1000)))
	require.NoError(l.Delegate(_t0, _alice, _alice))
	require.NoError(l.Delegate(_t0, _bob, _bob))

	require.NoError(l.Transfer(_t0.Add(time.Minute), _alice, _bob, big.NewInt(300)))
	require.Equal(int64(700), l.Votes(_alice).Int64())
	require.Equal(int64(300), l.Votes(_bob).Int64())

	// burning reduces the burner's delegated weight
	require.NoError(l.Burn(_t0.Add(2*time.Minute), _bob, big.NewInt(100)))
	require.Equal(int64(200), l.Votes(_bob).Int64())

	// minting credits the recipient's delegatee
	require.NoError(l.Mint(_t0.Add(3*time.Minute), _owner, _alice, big.NewInt(50)))
	require.Equal(int64(750), l.Votes(_alice).Int64())
}

func TestPastVotes(t *testing.T) {
	require := require.New(t)
	l := testLedger(t)
	require.NoError(l.Transfer(_t0, _owner, _alice, big.NewInt(1000)))
	require.NoError(l.Delegate(_t0, _alice, _alice))

	t1 := _t0.Add(time.Hour)
	require.NoError(l.Transfer(t1, _alice, _bob, big.NewInt(400)))
	t2 := _t0.Add(2 * time.Hour)
	require.NoError(l.Transfer(t2, _alice, _bob, big.NewInt(100)))

	// before any checkpoint
	require.Equal(int64(0), l.PastVotes(_alice, _t0.Add(-time.Second)).Int64())
	// at and between checkpoints the last value applies
	require.Equal(int64(1000), l.PastVotes(_alice, _t0).Int64())
	require.Equal(int64(1000), l.PastVotes(_alice, t1.Add(-time.Second)).Int64())
	require.Equal(int64(600), l.PastVotes(_alice, t1).Int64())
	require.Equal(int64(600), l.PastVotes(_alice, t2.Add(-time.Second)).Int64())
	require.Equal(int64(500), l.PastVotes(_alice, t2).Int64())
	require.Equal(int64(500), l.PastVotes(_alice, t2.Add(time.Hour)).Int64())
	// current value agrees with the latest checkpoint
	require.Equal(l.Votes(_alice), l.PastVotes(_alice, t2))
}

func TestCheckpointCollapse(t *testing.T) {
	require := require.New(t)
	l := testLedger(t)
	require.NoError(l.Transfer(_t0, _owner, _alice, big.NewInt(1000)))
	require.NoError(l.Delegate(_t0, _alice, _alice))

	// several updates at one instant collapse into one checkpoint
	require.NoError(l.Transfer(_t0, _alice, _bob, big.NewInt(100)))
	require.NoError(l.Transfer(_t0, _alice, _bob, big.NewInt(100)))
	cps := l.Checkpoints(_alice)
	require.Len(cps, 1)
	require.Equal(int64(800), cps[0].Votes.Int64())
}

func TestDelegateErrors(t *testing.T) {
	require := require.New(t)
	l := testLedger(t)
	require.Error(l.Delegate(_t0, Zero, _alice))
	require.Error(l.Delegate(_t0, _alice, Zero))
	// repeated delegation to the same target is a no-op
	require.NoError(l.Delegate(_t0, _alice, _alice))
	require.NoError(l.Delegate(_t0, _alice, _alice))
	require.Len(l.Checkpoints(_alice), 1)
}
