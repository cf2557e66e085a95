// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/w3eproject/w3e-core/cmd/w3ectl/cmd"
)

func main() {
	if err := cmd.NewW3ectl().Execute(); err != nil {
		os.Exit(1)
	}
}
