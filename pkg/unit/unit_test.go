// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package unit

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	require := require.New(t)
	require.Equal("5000000000000000000", ConvertW3eToDust(5).String())

	whole, rem := ConvertDustToW3e(big.NewInt(W3e + 42))
	require.Equal(int64(1), whole.Int64())
	require.Equal(int64(42), rem.Int64())
}

func TestFromString(t *testing.T) {
	require := require.New(t)
	amount, err := FromString("1000000000000000000")
	require.NoError(err)
	require.Equal(big.NewInt(W3e), amount)

	_, err = FromString("-1")
	require.Error(err)
	_, err = FromString("not a number")
	require.Error(err)
}
