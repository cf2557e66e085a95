// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package cmd implements the w3ectl command line tool. Every invocation
// opens the engine over the configured bolt database, runs one operation
// and shuts the engine down again, so state is committed on exit.
package cmd

import (
	"context"
	"math/big"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/w3eproject/w3e-core/config"
	"github.com/w3eproject/w3e-core/db"
	"github.com/w3eproject/w3e-core/engine"
	"github.com/w3eproject/w3e-core/pkg/lifecycle"
	"github.com/w3eproject/w3e-core/pkg/log"
	"github.com/w3eproject/w3e-core/pkg/unit"
)

var _configPath string

// NewW3ectl returns the root command of w3ectl.
func NewW3ectl() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "w3ectl",
		Short:        "Command-line interface for the W3E token and staking engine",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&_configPath, "config", "", "path of the config file")
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(poolCmd)
	rootCmd.AddCommand(stakeCmd)
	rootCmd.AddCommand(unstakeCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(emergencyUnstakeCmd)
	rootCmd.AddCommand(pendingCmd)
	return rootCmd
}

// withEngine runs fn against a started engine and persists on shutdown.
func withEngine(fn func(*engine.Engine) error) error {
	cfg, err := config.New([]string{_configPath})
	if err != nil {
		return err
	}
	if err := log.InitLoggers(cfg.Log, cfg.SubLogs); err != nil {
		return errors.Wrap(err, "failed to init logger")
	}
	eng := engine.New(cfg, db.NewBoltDB(cfg.DB))
	var lc lifecycle.Lifecycle
	lc.AddModels(eng)
	ctx := context.Background()
	if err := lc.OnStart(ctx); err != nil {
		return errors.Wrap(err, "failed to start engine")
	}
	defer func() { _ = lc.OnStop(ctx) }()
	return fn(eng)
}

func parseAmount(arg string) (*big.Int, error) {
	amount, err := unit.FromString(arg)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid amount %q", arg)
	}
	return amount, nil
}

func parsePoolID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid pool id %q", arg)
	}
	return id, nil
}
