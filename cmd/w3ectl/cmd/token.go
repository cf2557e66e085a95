// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/w3eproject/w3e-core/engine"
	"github.com/w3eproject/w3e-core/ledger"
)

// tokenCmd groups the token ledger operations.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Deal with token ledgers",
}

func init() {
	tokenCmd.AddCommand(tokenBalanceCmd)
	tokenCmd.AddCommand(tokenSupplyCmd)
	tokenCmd.AddCommand(tokenTransferCmd)
	tokenCmd.AddCommand(tokenMintCmd)
	tokenCmd.AddCommand(tokenBurnCmd)
}

var tokenBalanceCmd = &cobra.Command{
	Use:   "balance SYMBOL ADDRESS",
	Short: "Print the token balance of an address",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return withEngine(func(eng *engine.Engine) error {
			balance, err := eng.BalanceOf(args[0], ledger.Address(args[1]))
			if err != nil {
				return err
			}
			fmt.Println(balance.String())
			return nil
		})
	},
}

var tokenSupplyCmd = &cobra.Command{
	Use:   "supply SYMBOL",
	Short: "Print the total and remaining supply of a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return withEngine(func(eng *engine.Engine) error {
			total, err := eng.TotalSupply(args[0])
			if err != nil {
				return err
			}
			remaining, err := eng.RemainingSupply(args[0])
			if err != nil {
				return err
			}
			circulating, err := eng.CirculatingSupply(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("total: %s\ncirculating: %s\nremaining: %s\n", total, circulating, remaining)
			return nil
		})
	},
}

var tokenTransferCmd = &cobra.Command{
	Use:   "transfer SYMBOL FROM TO AMOUNT",
	Short: "Transfer tokens between addresses",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		amount, err := parseAmount(args[3])
		if err != nil {
			return err
		}
		return withEngine(func(eng *engine.Engine) error {
			return eng.Transfer(args[0], ledger.Address(args[1]), ledger.Address(args[2]), amount)
		})
	},
}

var tokenMintCmd = &cobra.Command{
	Use:   "mint SYMBOL CALLER TO AMOUNT",
	Short: "Mint new tokens to an address",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		amount, err := parseAmount(args[3])
		if err != nil {
			return err
		}
		return withEngine(func(eng *engine.Engine) error {
			return eng.Mint(args[0], ledger.Address(args[1]), ledger.Address(args[2]), amount)
		})
	},
}

var tokenBurnCmd = &cobra.Command{
	Use:   "burn SYMBOL CALLER AMOUNT",
	Short: "Burn tokens from the caller's balance",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		amount, err := parseAmount(args[2])
		if err != nil {
			return err
		}
		return withEngine(func(eng *engine.Engine) error {
			return eng.Burn(args[0], ledger.Address(args[1]), amount)
		})
	},
}
