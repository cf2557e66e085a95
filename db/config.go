// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package db

// Config is the config for database
type Config struct {
	// DbPath is the file path of the bolt database
	DbPath string `json:"dbPath" yaml:"dbPath"`
	// NumRetries is the number of retries on a failed write
	NumRetries uint8 `json:"numRetries" yaml:"numRetries"`
}

// DefaultConfig returns the default config
var DefaultConfig = Config{
	DbPath:     "./w3e.db",
	NumRetries: 3,
}
