// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/w3eproject/w3e-core/engine"
	"github.com/w3eproject/w3e-core/ledger"
	"github.com/w3eproject/w3e-core/staking"
)

// poolCmd groups the staking pool administration operations.
var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Deal with staking pools",
}

func init() {
	poolCmd.AddCommand(poolAddCmd)
	poolCmd.AddCommand(poolListCmd)
	poolCmd.AddCommand(poolFundCmd)
	poolAddCmd.Flags().Uint64Var(&_poolLockSeconds, "lock-seconds", 0, "lock period of the pool in seconds")
}

var _poolLockSeconds uint64

var poolAddCmd = &cobra.Command{
	Use:   "add CALLER SYMBOL MAX_LIMIT MIN_STAKE RATE_PER_SECOND",
	Short: "Create a new staking pool",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		maxLimit, err := parseAmount(args[2])
		if err != nil {
			return err
		}
		minStake, err := parseAmount(args[3])
		if err != nil {
			return err
		}
		rate, err := parseAmount(args[4])
		if err != nil {
			return err
		}
		return withEngine(func(eng *engine.Engine) error {
			id, err := eng.AddPool(ledger.Address(args[0]), args[1], maxLimit, minStake, rate,
				time.Duration(_poolLockSeconds)*time.Second)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		})
	},
}

var poolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all staking pools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		return withEngine(func(eng *engine.Engine) error {
			pools, err := eng.AllPools()
			if err != nil {
				return err
			}
			for _, p := range pools {
				printPool(p)
			}
			return nil
		})
	},
}

var poolFundCmd = &cobra.Command{
	Use:   "fund CALLER POOL AMOUNT",
	Short: "Fund a pool's reward reserve",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		id, err := parsePoolID(args[1])
		if err != nil {
			return err
		}
		amount, err := parseAmount(args[2])
		if err != nil {
			return err
		}
		return withEngine(func(eng *engine.Engine) error {
			return eng.FundRewards(ledger.Address(args[0]), id, amount)
		})
	},
}

var stakeCmd = &cobra.Command{
	Use:   "stake USER POOL AMOUNT",
	Short: "Stake tokens into a pool",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		id, err := parsePoolID(args[1])
		if err != nil {
			return err
		}
		amount, err := parseAmount(args[2])
		if err != nil {
			return err
		}
		return withEngine(func(eng *engine.Engine) error {
			return eng.Stake(ledger.Address(args[0]), id, amount)
		})
	},
}

var unstakeCmd = &cobra.Command{
	Use:   "unstake USER POOL AMOUNT",
	Short: "Withdraw unlocked staked tokens",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		id, err := parsePoolID(args[1])
		if err != nil {
			return err
		}
		amount, err := parseAmount(args[2])
		if err != nil {
			return err
		}
		return withEngine(func(eng *engine.Engine) error {
			return eng.Unstake(ledger.Address(args[0]), id, amount)
		})
	},
}

var claimCmd = &cobra.Command{
	Use:   "claim USER POOL",
	Short: "Claim accrued staking rewards",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		id, err := parsePoolID(args[1])
		if err != nil {
			return err
		}
		return withEngine(func(eng *engine.Engine) error {
			claimed, err := eng.ClaimRewards(ledger.Address(args[0]), id)
			if err != nil {
				return err
			}
			fmt.Println(claimed.String())
			return nil
		})
	},
}

var emergencyUnstakeCmd = &cobra.Command{
	Use:   "emergency-unstake USER POOL",
	Short: "Exit a staking position immediately at the penalty fee",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		id, err := parsePoolID(args[1])
		if err != nil {
			return err
		}
		return withEngine(func(eng *engine.Engine) error {
			returned, err := eng.EmergencyUnstake(ledger.Address(args[0]), id)
			if err != nil {
				return err
			}
			fmt.Println(returned.String())
			return nil
		})
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending USER POOL",
	Short: "Print the user's claimable staking reward",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		id, err := parsePoolID(args[1])
		if err != nil {
			return err
		}
		return withEngine(func(eng *engine.Engine) error {
			pending, err := eng.PendingRewards(id, ledger.Address(args[0]))
			if err != nil {
				return err
			}
			fmt.Println(pending.String())
			return nil
		})
	},
}

func printPool(p *staking.PoolInfo) {
	fmt.Printf("pool %d (%s)\n", p.ID, p.Asset)
	fmt.Printf("  active: %t\n", p.IsActive)
	fmt.Printf("  staked: %s / %s\n", p.TotalStaked, p.MaxStakeLimit)
	fmt.Printf("  min stake: %s\n", p.MinStakeAmount)
	fmt.Printf("  reward rate: %s/s\n", p.RewardRatePerSecond)
	fmt.Printf("  lock period: %s\n", p.LockPeriod)
	fmt.Printf("  reward reserve: %s\n", p.RewardReserve)
	fmt.Printf("  rewards paid: %s\n", p.TotalRewardsPaid)
}
