// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package engine binds the token ledgers and the staking system into one
// single-writer state machine. Every mutating operation runs under the
// engine's write lock, reads the injected clock exactly once, and commits
// its state to the KV store as one batch, so a failed operation leaves
// nothing behind.
package engine

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/w3eproject/w3e-core/config"
	"github.com/w3eproject/w3e-core/db"
	"github.com/w3eproject/w3e-core/ledger"
	"github.com/w3eproject/w3e-core/pkg/lifecycle"
	"github.com/w3eproject/w3e-core/pkg/log"
	"github.com/w3eproject/w3e-core/staking"
)

// ErrUnknownToken indicates the symbol does not resolve to a ledger.
var ErrUnknownToken = errors.New("unknown token symbol")

type (
	// Engine is the single entry point to the ledger and staking state.
	Engine struct {
		mu      sync.RWMutex
		cfg     config.Config
		clock   clock.Clock
		kv      db.KVStore
		ledgers map[string]*ledger.Ledger
		staking *staking.StakeLedger
		ready   lifecycle.Readiness
	}

	// Option sets an option on the engine.
	Option func(*Engine)
)

// WithClock overrides the engine's time source. Tests inject a mock clock
// to drive reward accrual deterministically.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New creates an engine over the given KV store. State is loaded from the
// store on Start; an empty store is bootstrapped from the config.
func New(cfg config.Config, kv db.KVStore, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		clock:   clock.New(),
		kv:      kv,
		ledgers: make(map[string]*ledger.Ledger),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start loads persisted state, or bootstraps a fresh one from the config.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.kv.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start KV store")
	}
	loaded, err := e.load()
	if err != nil {
		return errors.Wrap(err, "failed to load persisted state")
	}
	if !loaded {
		if err := e.bootstrap(); err != nil {
			return errors.Wrap(err, "failed to bootstrap state from config")
		}
		if err := e.persistAll(); err != nil {
			return err
		}
		log.L().Info("Bootstrapped fresh engine state.", zap.Int("tokens", len(e.ledgers)))
	} else {
		log.L().Info("Loaded persisted engine state.",
			zap.Int("tokens", len(e.ledgers)),
			zap.Uint64("pools", e.staking.Registry().PoolCount()))
	}
	return e.ready.TurnOn()
}

// Stop persists a final snapshot and closes the KV store.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready.TurnOff(); err != nil {
		return err
	}
	if err := e.persistAll(); err != nil {
		return err
	}
	return e.kv.Stop(ctx)
}

// bootstrap builds fresh ledgers and the staking system from the config.
func (e *Engine) bootstrap() error {
	for _, t := range e.cfg.Tokens {
		lcfg, err := t.LedgerConfig()
		if err != nil {
			return err
		}
		l, err := ledger.New(lcfg)
		if err != nil {
			return err
		}
		e.ledgers[l.Symbol()] = l
	}
	sl, err := staking.NewStakeLedger(
		staking.NewPoolRegistry(),
		ledger.Address(e.cfg.Staking.Admin),
		ledger.Address(e.cfg.Staking.Custody),
	)
	if err != nil {
		return err
	}
	if e.cfg.Staking.EmergencyFeeBps > 0 {
		if err := sl.SetEmergencyWithdrawFee(sl.Admin(), e.cfg.Staking.EmergencyFeeBps); err != nil {
			return err
		}
	}
	e.staking = sl
	// custody transfers must move tokens at face value
	for _, l := range e.ledgers {
		if err := l.SetFeeExemption(l.Owner(), sl.Custody(), true); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) token(symbol string) (*ledger.Ledger, error) {
	if l, ok := e.ledgers[symbol]; ok {
		return l, nil
	}
	return nil, errors.Wrapf(ErrUnknownToken, "%q", symbol)
}

// Tokens returns the symbols of all registered token ledgers.
func (e *Engine) Tokens() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.ledgers))
	for symbol := range e.ledgers {
		out = append(out, symbol)
	}
	return out
}

// mutate runs a mutating operation under the write lock and commits the
// resulting state. The operation must not partially apply on error.
func (e *Engine) mutate(op string, fn func(now time.Time) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready.IsReady() {
		return lifecycle.ErrWrongState
	}
	now := e.clock.Now()
	if err := fn(now); err != nil {
		_engineMtc.WithLabelValues(op, "rejected").Inc()
		log.Logger("engine").Debug("Operation rejected.", zap.String("op", op), zap.Error(err))
		return err
	}
	if err := e.persistAll(); err != nil {
		_engineMtc.WithLabelValues(op, "persist_error").Inc()
		// the caller is told the operation failed, so the in-memory
		// mutation must not survive either
		if rerr := e.reloadCommitted(); rerr != nil {
			_ = e.ready.TurnOff()
			log.L().Error("Failed to restore committed state, stopping the engine.",
				zap.String("op", op), zap.Error(rerr))
			return errors.Wrap(err, "failed to persist, engine stopped")
		}
		log.Logger("engine").Warn("Operation rolled back on persist error.",
			zap.String("op", op), zap.Error(err))
		return err
	}
	_engineMtc.WithLabelValues(op, "ok").Inc()
	return nil
}

// reloadCommitted discards the in-memory state and rebuilds it from the last
// committed snapshot.
func (e *Engine) reloadCommitted() error {
	e.ledgers = make(map[string]*ledger.Ledger)
	loaded, err := e.load()
	if err != nil {
		return err
	}
	if !loaded {
		return errors.New("no committed snapshot to restore")
	}
	return nil
}

func (e *Engine) view(fn func(now time.Time) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ready.IsReady() {
		return lifecycle.ErrWrongState
	}
	return fn(e.clock.Now())
}

// Mint mints new tokens of the given symbol.
func (e *Engine) Mint(symbol string, caller, to ledger.Address, amount *big.Int) error {
	return e.mutate("mint", func(now time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		return l.Mint(now, caller, to, amount)
	})
}

// Burn destroys tokens from the caller's balance.
func (e *Engine) Burn(symbol string, caller ledger.Address, amount *big.Int) error {
	return e.mutate("burn", func(now time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		return l.Burn(now, caller, amount)
	})
}

// Transfer moves tokens between accounts.
func (e *Engine) Transfer(symbol string, from, to ledger.Address, amount *big.Int) error {
	return e.mutate("transfer", func(now time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		return l.Transfer(now, from, to, amount)
	})
}

// Approve sets spender's allowance over the caller's balance.
func (e *Engine) Approve(symbol string, owner, spender ledger.Address, amount *big.Int) error {
	return e.mutate("approve", func(time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		return l.Approve(owner, spender, amount)
	})
}

// TransferFrom moves tokens on behalf of their owner within the allowance.
func (e *Engine) TransferFrom(symbol string, spender, from, to ledger.Address, amount *big.Int) error {
	return e.mutate("transfer_from", func(now time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		return l.TransferFrom(now, spender, from, to, amount)
	})
}

// Delegate delegates the caller's voting power.
func (e *Engine) Delegate(symbol string, from, to ledger.Address) error {
	return e.mutate("delegate", func(now time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		return l.Delegate(now, from, to)
	})
}

// SetAuthorizedMinter grants or revokes minting rights.
func (e *Engine) SetAuthorizedMinter(symbol string, caller, minter ledger.Address, authorized bool) error {
	return e.mutate("set_authorized_minter", func(time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		return l.SetAuthorizedMinter(caller, minter, authorized)
	})
}

// SetMintingCap adjusts the per-event minting cap.
func (e *Engine) SetMintingCap(symbol string, caller ledger.Address, cap *big.Int) error {
	return e.mutate("set_minting_cap", func(time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		return l.SetMintingCap(caller, cap)
	})
}

// SetTransferFee sets the transfer fee rate.
func (e *Engine) SetTransferFee(symbol string, caller ledger.Address, basisPoints uint64) error {
	return e.mutate("set_transfer_fee", func(time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		return l.SetTransferFee(caller, basisPoints)
	})
}

// SetFeeCollector changes the fee collector address.
func (e *Engine) SetFeeCollector(symbol string, caller, collector ledger.Address) error {
	return e.mutate("set_fee_collector", func(time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		return l.SetFeeCollector(caller, collector)
	})
}

// SetFeeExemption grants or revokes fee exemption.
func (e *Engine) SetFeeExemption(symbol string, caller, addr ledger.Address, exempt bool) error {
	return e.mutate("set_fee_exemption", func(time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		return l.SetFeeExemption(caller, addr, exempt)
	})
}

// SetBlacklisted bars or re-admits an address.
func (e *Engine) SetBlacklisted(symbol string, caller, addr ledger.Address, blacklisted bool) error {
	return e.mutate("set_blacklisted", func(time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		return l.SetBlacklisted(caller, addr, blacklisted)
	})
}

// Pause stops all transfers of the token.
func (e *Engine) Pause(symbol string, caller ledger.Address) error {
	return e.mutate("pause", func(time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		return l.Pause(caller)
	})
}

// Unpause re-enables transfers of the token.
func (e *Engine) Unpause(symbol string, caller ledger.Address) error {
	return e.mutate("unpause", func(time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		return l.Unpause(caller)
	})
}

// AddPool creates a staking pool for the given token.
func (e *Engine) AddPool(
	caller ledger.Address,
	symbol string,
	maxStakeLimit, minStakeAmount, rewardRatePerSecond *big.Int,
	lockPeriod time.Duration,
) (uint64, error) {
	var id uint64
	err := e.mutate("add_pool", func(now time.Time) error {
		asset, err := e.token(symbol)
		if err != nil {
			return err
		}
		id, err = e.staking.AddPool(now, caller, asset, maxStakeLimit, minStakeAmount, rewardRatePerSecond, lockPeriod)
		return err
	})
	return id, err
}

// UpdatePool adjusts a pool's mutable fields.
func (e *Engine) UpdatePool(caller ledger.Address, id uint64, upd staking.PoolUpdate) error {
	return e.mutate("update_pool", func(now time.Time) error {
		return e.staking.UpdatePool(now, caller, id, upd)
	})
}

// SetEmergencyWithdrawFee sets the emergency withdraw penalty rate.
func (e *Engine) SetEmergencyWithdrawFee(caller ledger.Address, basisPoints uint64) error {
	return e.mutate("set_emergency_withdraw_fee", func(time.Time) error {
		return e.staking.SetEmergencyWithdrawFee(caller, basisPoints)
	})
}

// Stake stakes tokens into a pool.
func (e *Engine) Stake(user ledger.Address, id uint64, amount *big.Int) error {
	return e.mutate("stake", func(now time.Time) error {
		return e.staking.Stake(now, user, id, amount)
	})
}

// Unstake withdraws unlocked staked tokens.
func (e *Engine) Unstake(user ledger.Address, id uint64, amount *big.Int) error {
	return e.mutate("unstake", func(now time.Time) error {
		return e.staking.Unstake(now, user, id, amount)
	})
}

// ClaimRewards pays out accrued staking rewards and returns the amount.
func (e *Engine) ClaimRewards(user ledger.Address, id uint64) (*big.Int, error) {
	var claimed *big.Int
	err := e.mutate("claim_rewards", func(now time.Time) error {
		var err error
		claimed, err = e.staking.ClaimRewards(now, user, id)
		return err
	})
	return claimed, err
}

// EmergencyUnstake exits a position immediately at the penalty fee, and
// returns the amount sent back to the user.
func (e *Engine) EmergencyUnstake(user ledger.Address, id uint64) (*big.Int, error) {
	var returned *big.Int
	err := e.mutate("emergency_unstake", func(now time.Time) error {
		var err error
		returned, err = e.staking.EmergencyUnstake(now, user, id)
		return err
	})
	return returned, err
}

// FundRewards funds a pool's reward reserve from the caller's balance.
func (e *Engine) FundRewards(caller ledger.Address, id uint64, amount *big.Int) error {
	return e.mutate("fund_rewards", func(now time.Time) error {
		return e.staking.FundRewards(now, caller, id, amount)
	})
}

// CollectFees withdraws accumulated emergency penalty fees to the admin.
func (e *Engine) CollectFees(caller ledger.Address, id uint64, amount *big.Int) error {
	return e.mutate("collect_fees", func(now time.Time) error {
		return e.staking.CollectFees(now, caller, id, amount)
	})
}

// BalanceOf returns the token balance of an account.
func (e *Engine) BalanceOf(symbol string, addr ledger.Address) (*big.Int, error) {
	var out *big.Int
	err := e.view(func(time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		out = l.BalanceOf(addr)
		return nil
	})
	return out, err
}

// TotalSupply returns the token's current total supply.
func (e *Engine) TotalSupply(symbol string) (*big.Int, error) {
	var out *big.Int
	err := e.view(func(time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		out = l.TotalSupply()
		return nil
	})
	return out, err
}

// RemainingSupply returns maxSupply - totalSupply of the token.
func (e *Engine) RemainingSupply(symbol string) (*big.Int, error) {
	var out *big.Int
	err := e.view(func(time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		out = l.RemainingSupply()
		return nil
	})
	return out, err
}

// CirculatingSupply returns the total supply minus tokens held by the
// staking custody address.
func (e *Engine) CirculatingSupply(symbol string) (*big.Int, error) {
	var out *big.Int
	err := e.view(func(time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		out = new(big.Int).Sub(l.TotalSupply(), l.BalanceOf(e.staking.Custody()))
		return nil
	})
	return out, err
}

// Allowance returns the remaining allowance granted by owner to spender.
func (e *Engine) Allowance(symbol string, owner, spender ledger.Address) (*big.Int, error) {
	var out *big.Int
	err := e.view(func(time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		out = l.Allowance(owner, spender)
		return nil
	})
	return out, err
}

// Votes returns the current voting power delegated to the address.
func (e *Engine) Votes(symbol string, addr ledger.Address) (*big.Int, error) {
	var out *big.Int
	err := e.view(func(time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		out = l.Votes(addr)
		return nil
	})
	return out, err
}

// PastVotes returns the voting power delegated to the address at a past
// instant.
func (e *Engine) PastVotes(symbol string, addr ledger.Address, at time.Time) (*big.Int, error) {
	var out *big.Int
	err := e.view(func(time.Time) error {
		l, err := e.token(symbol)
		if err != nil {
			return err
		}
		out = l.PastVotes(addr, at)
		return nil
	})
	return out, err
}

// PoolInfo returns the read model of a pool.
func (e *Engine) PoolInfo(id uint64) (*staking.PoolInfo, error) {
	var out *staking.PoolInfo
	err := e.view(func(time.Time) error {
		var err error
		out, err = e.staking.Registry().PoolInfo(id)
		return err
	})
	return out, err
}

// AllPools returns the read models of all pools.
func (e *Engine) AllPools() ([]*staking.PoolInfo, error) {
	var out []*staking.PoolInfo
	err := e.view(func(time.Time) error {
		out = e.staking.Registry().AllPools()
		return nil
	})
	return out, err
}

// PoolUtilization returns the integer percentage of the pool's capacity
// currently filled.
func (e *Engine) PoolUtilization(id uint64) (uint64, error) {
	var out uint64
	err := e.view(func(time.Time) error {
		var err error
		out, err = e.staking.Registry().Utilization(id)
		return err
	})
	return out, err
}

// UserInfo returns the user's position in the pool.
func (e *Engine) UserInfo(id uint64, user ledger.Address) (*staking.UserInfo, error) {
	var out *staking.UserInfo
	err := e.view(func(now time.Time) error {
		var err error
		out, err = e.staking.UserInfo(now, id, user)
		return err
	})
	return out, err
}

// PendingRewards returns the user's claimable reward in the pool as of now.
// The accrual cursor is not advanced, so repeated reads at the same instant
// return the same value.
func (e *Engine) PendingRewards(id uint64, user ledger.Address) (*big.Int, error) {
	var out *big.Int
	err := e.view(func(now time.Time) error {
		var err error
		out, err = e.staking.PendingRewards(now, id, user)
		return err
	})
	return out, err
}

// UserStakedPools returns the pool ids where the user holds a stake.
func (e *Engine) UserStakedPools(user ledger.Address) ([]uint64, error) {
	var out []uint64
	err := e.view(func(time.Time) error {
		out = e.staking.UserStakedPools(user)
		return nil
	})
	return out, err
}

// CollectedFees returns the pool's accumulated, unwithdrawn emergency fees.
func (e *Engine) CollectedFees(id uint64) (*big.Int, error) {
	var out *big.Int
	err := e.view(func(time.Time) error {
		out = e.staking.CollectedFees(id)
		return nil
	})
	return out, err
}
