// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package ledger implements the fungible token ledger: balance accounting
// with a hard supply cap, rate-limited minting, transfer fees, blacklist,
// pause switch, allowances, and checkpointed vote delegation.
//
// The ledger is not internally synchronized. The engine owning it serializes
// every mutating call, and each operation either fully applies or returns an
// error with no state change.
package ledger

import (
	"math/big"
	"time"

	"github.com/pkg/errors"
)

// Address identifies an account on the ledger.
type Address string

// Zero is the empty address. It is never a valid party of a transfer.
const Zero Address = ""

// Errors of the ledger state machine. Every rejection is deterministic,
// callers must treat a failed operation as if nothing happened.
var (
	ErrUnauthorized          = errors.New("caller is not authorized")
	ErrPaused                = errors.New("token transfers are paused")
	ErrBlacklistedAddress    = errors.New("address is blacklisted")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrCooldownActive        = errors.New("minting cooldown is active")
	ErrMintingCapExceeded    = errors.New("amount exceeds minting cap")
	ErrSupplyCapExceeded     = errors.New("amount exceeds remaining supply")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidAddress        = errors.New("invalid address")
	ErrInvalidFee            = errors.New("invalid fee setting")
)

// MintCooldown is the minimum interval between two scheduled mints.
const MintCooldown = 30 * 24 * time.Hour

type (
	// Config carries the immutable parameters of a ledger.
	Config struct {
		Name           string
		Symbol         string
		Decimals       uint8
		MaxSupply      *big.Int
		InitialSupply  *big.Int
		MintingCap     *big.Int
		FeeBasisPoints uint64
		FeeCollector   Address
		Owner          Address
	}

	// Ledger is the token ledger aggregate.
	Ledger struct {
		name     string
		symbol   string
		decimals uint8
		owner    Address

		balances    map[Address]*big.Int
		allowances  map[Address]map[Address]*big.Int
		totalSupply *big.Int
		maxSupply   *big.Int

		mintingCap   *big.Int
		lastMintTime time.Time
		mintCooldown time.Duration
		minters      map[Address]struct{}

		paused    bool
		blacklist map[Address]struct{}
		fees      FeeConfig

		checkpoints map[Address][]Checkpoint
		delegatee   map[Address]Address
	}
)

// New creates a ledger. The initial supply is credited to the owner outside
// of the minting schedule, so the first scheduled mint is not throttled.
func New(cfg Config) (*Ledger, error) {
	if cfg.Owner == Zero {
		return nil, errors.Wrap(ErrInvalidAddress, "empty owner")
	}
	if cfg.MaxSupply == nil || cfg.MaxSupply.Sign() <= 0 {
		return nil, errors.Wrap(ErrInvalidAmount, "max supply must be positive")
	}
	if cfg.FeeBasisPoints > MaxFeeBasisPoints {
		return nil, errors.Wrapf(ErrInvalidFee, "fee %d exceeds %d basis points", cfg.FeeBasisPoints, MaxFeeBasisPoints)
	}
	initial := cfg.InitialSupply
	if initial == nil {
		initial = new(big.Int)
	}
	if initial.Sign() < 0 {
		return nil, errors.Wrap(ErrInvalidAmount, "negative initial supply")
	}
	if initial.Cmp(cfg.MaxSupply) > 0 {
		return nil, errors.Wrap(ErrSupplyCapExceeded, "initial supply exceeds max supply")
	}
	mintingCap := cfg.MintingCap
	if mintingCap == nil {
		mintingCap = new(big.Int).Set(cfg.MaxSupply)
	}
	l := &Ledger{
		name:         cfg.Name,
		symbol:       cfg.Symbol,
		decimals:     cfg.Decimals,
		owner:        cfg.Owner,
		balances:     make(map[Address]*big.Int),
		allowances:   make(map[Address]map[Address]*big.Int),
		totalSupply:  new(big.Int).Set(initial),
		maxSupply:    new(big.Int).Set(cfg.MaxSupply),
		mintingCap:   new(big.Int).Set(mintingCap),
		mintCooldown: MintCooldown,
		minters:      map[Address]struct{}{cfg.Owner: {}},
		blacklist:    make(map[Address]struct{}),
		fees: FeeConfig{
			BasisPoints: cfg.FeeBasisPoints,
			Collector:   cfg.FeeCollector,
			exempt:      map[Address]struct{}{cfg.Owner: {}},
		},
		checkpoints: make(map[Address][]Checkpoint),
		delegatee:   make(map[Address]Address),
	}
	if initial.Sign() > 0 {
		l.balances[cfg.Owner] = new(big.Int).Set(initial)
	}
	return l, nil
}

// Name returns the token name.
func (l *Ledger) Name() string { return l.name }

// Symbol returns the token symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// Decimals returns the number of fractional digits of the display unit.
func (l *Ledger) Decimals() uint8 { return l.decimals }

// Owner returns the admin address of the ledger.
func (l *Ledger) Owner() Address { return l.owner }

// BalanceOf returns the balance of an account.
func (l *Ledger) BalanceOf(addr Address) *big.Int {
	if b, ok := l.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// TotalSupply returns the current total supply.
func (l *Ledger) TotalSupply() *big.Int { return new(big.Int).Set(l.totalSupply) }

// MaxSupply returns the immutable supply ceiling.
func (l *Ledger) MaxSupply() *big.Int { return new(big.Int).Set(l.maxSupply) }

// RemainingSupply returns maxSupply - totalSupply.
func (l *Ledger) RemainingSupply() *big.Int {
	return new(big.Int).Sub(l.maxSupply, l.totalSupply)
}

// MintingCap returns the per-event minting cap.
func (l *Ledger) MintingCap() *big.Int { return new(big.Int).Set(l.mintingCap) }

// LastMintTime returns the time of the last scheduled mint.
func (l *Ledger) LastMintTime() time.Time { return l.lastMintTime }

// IsPaused returns whether transfers are globally paused.
func (l *Ledger) IsPaused() bool { return l.paused }

// IsBlacklisted returns whether the address is barred from transfers.
func (l *Ledger) IsBlacklisted(addr Address) bool {
	_, ok := l.blacklist[addr]
	return ok
}

// IsAuthorizedMinter returns whether the address may mint.
func (l *Ledger) IsAuthorizedMinter(addr Address) bool {
	_, ok := l.minters[addr]
	return ok
}

// Allowance returns the remaining allowance granted by owner to spender.
func (l *Ledger) Allowance(owner, spender Address) *big.Int {
	if m, ok := l.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return new(big.Int).Set(a)
		}
	}
	return new(big.Int)
}

// Mint credits amount to the recipient. The caller must be an authorized
// minter, the cooldown must have elapsed, and the amount must respect both
// the per-event cap and the supply ceiling.
func (l *Ledger) Mint(now time.Time, caller, to Address, amount *big.Int) error {
	if !l.IsAuthorizedMinter(caller) {
		return errors.Wrapf(ErrUnauthorized, "%s is not an authorized minter", caller)
	}
	if to == Zero {
		return errors.Wrap(ErrInvalidAddress, "mint to the zero address")
	}
	if amount == nil || amount.Sign() <= 0 {
		return errors.Wrap(ErrInvalidAmount, "mint amount must be positive")
	}
	if !l.lastMintTime.IsZero() && now.Sub(l.lastMintTime) < l.mintCooldown {
		return errors.Wrapf(ErrCooldownActive, "%s remaining", l.mintCooldown-now.Sub(l.lastMintTime))
	}
	if amount.Cmp(l.mintingCap) > 0 {
		return errors.Wrapf(ErrMintingCapExceeded, "amount %s > cap %s", amount, l.mintingCap)
	}
	if new(big.Int).Add(l.totalSupply, amount).Cmp(l.maxSupply) > 0 {
		return errors.Wrapf(ErrSupplyCapExceeded, "amount %s > remaining %s", amount, l.RemainingSupply())
	}

	l.credit(to, amount)
	l.totalSupply.Add(l.totalSupply, amount)
	l.lastMintTime = now
	l.moveVotes(now, Zero, to, amount)
	return nil
}

// Burn destroys amount from the caller's balance and reduces total supply.
func (l *Ledger) Burn(now time.Time, caller Address, amount *big.Int) error {
	if l.paused {
		return ErrPaused
	}
	if l.IsBlacklisted(caller) {
		return errors.Wrapf(ErrBlacklistedAddress, "burner %s", caller)
	}
	if amount == nil || amount.Sign() <= 0 {
		return errors.Wrap(ErrInvalidAmount, "burn amount must be positive")
	}
	if l.BalanceOf(caller).Cmp(amount) < 0 {
		return errors.Wrapf(ErrInsufficientBalance, "balance %s < %s", l.BalanceOf(caller), amount)
	}

	l.debit(caller, amount)
	l.totalSupply.Sub(l.totalSupply, amount)
	l.moveVotes(now, caller, Zero, amount)
	return nil
}

// Transfer moves amount from the caller to the recipient, routing the
// transfer fee to the collector unless either party is fee exempt.
func (l *Ledger) Transfer(now time.Time, from, to Address, amount *big.Int) error {
	if err := l.checkTransfer(from, to, amount); err != nil {
		return err
	}
	l.doTransfer(now, from, to, amount)
	return nil
}

// Approve sets spender's allowance over the caller's balance.
func (l *Ledger) Approve(owner, spender Address, amount *big.Int) error {
	if owner == Zero || spender == Zero {
		return errors.Wrap(ErrInvalidAddress, "approve with the zero address")
	}
	if amount == nil || amount.Sign() < 0 {
		return errors.Wrap(ErrInvalidAmount, "negative allowance")
	}
	if _, ok := l.allowances[owner]; !ok {
		l.allowances[owner] = make(map[Address]*big.Int)
	}
	l.allowances[owner][spender] = new(big.Int).Set(amount)
	return nil
}

// TransferFrom moves amount from the owner to the recipient on behalf of
// the spender, decrementing the spender's allowance.
func (l *Ledger) TransferFrom(now time.Time, spender, from, to Address, amount *big.Int) error {
	if err := l.checkTransfer(from, to, amount); err != nil {
		return err
	}
	allowance := l.Allowance(from, spender)
	if allowance.Cmp(amount) < 0 {
		return errors.Wrapf(ErrInsufficientAllowance, "allowance %s < %s", allowance, amount)
	}
	l.allowances[from][spender] = allowance.Sub(allowance, amount)
	l.doTransfer(now, from, to, amount)
	return nil
}

// checkTransfer runs every transfer precondition without mutating state.
func (l *Ledger) checkTransfer(from, to Address, amount *big.Int) error {
	if l.paused {
		return ErrPaused
	}
	if from == Zero || to == Zero {
		return errors.Wrap(ErrInvalidAddress, "transfer with the zero address")
	}
	if l.IsBlacklisted(from) {
		return errors.Wrapf(ErrBlacklistedAddress, "sender %s", from)
	}
	if l.IsBlacklisted(to) {
		return errors.Wrapf(ErrBlacklistedAddress, "recipient %s", to)
	}
	if amount == nil || amount.Sign() <= 0 {
		return errors.Wrap(ErrInvalidAmount, "transfer amount must be positive")
	}
	if l.BalanceOf(from).Cmp(amount) < 0 {
		return errors.Wrapf(ErrInsufficientBalance, "balance %s < %s", l.BalanceOf(from), amount)
	}
	return nil
}

// doTransfer applies a checked transfer. Preconditions hold.
func (l *Ledger) doTransfer(now time.Time, from, to Address, amount *big.Int) {
	net, fee := l.fees.Split(amount, l.fees.IsExempt(from) || l.fees.IsExempt(to))
	l.debit(from, amount)
	l.credit(to, net)
	l.moveVotes(now, from, to, net)
	if fee.Sign() > 0 {
		l.credit(l.fees.Collector, fee)
		l.moveVotes(now, from, l.fees.Collector, fee)
	}
}

func (l *Ledger) credit(addr Address, amount *big.Int) {
	if b, ok := l.balances[addr]; ok {
		b.Add(b, amount)
		return
	}
	l.balances[addr] = new(big.Int).Set(amount)
}

func (l *Ledger) debit(addr Address, amount *big.Int) {
	l.balances[addr].Sub(l.balances[addr], amount)
}

// SetAuthorizedMinter grants or revokes minting rights. Admin only.
func (l *Ledger) SetAuthorizedMinter(caller, minter Address, authorized bool) error {
	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if minter == Zero {
		return errors.Wrap(ErrInvalidAddress, "empty minter address")
	}
	if authorized {
		l.minters[minter] = struct{}{}
	} else {
		delete(l.minters, minter)
	}
	return nil
}

// SetMintingCap adjusts the per-event minting cap. Admin only.
func (l *Ledger) SetMintingCap(caller Address, cap *big.Int) error {
	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if cap == nil || cap.Sign() <= 0 {
		return errors.Wrap(ErrInvalidAmount, "minting cap must be positive")
	}
	l.mintingCap = new(big.Int).Set(cap)
	return nil
}

// SetTransferFee sets the transfer fee in basis points. Admin only.
func (l *Ledger) SetTransferFee(caller Address, basisPoints uint64) error {
	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if basisPoints > MaxFeeBasisPoints {
		return errors.Wrapf(ErrInvalidFee, "fee %d exceeds %d basis points", basisPoints, MaxFeeBasisPoints)
	}
	l.fees.BasisPoints = basisPoints
	return nil
}

// SetFeeCollector changes the fee collector address. Admin only.
func (l *Ledger) SetFeeCollector(caller, collector Address) error {
	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if collector == Zero {
		return errors.Wrap(ErrInvalidAddress, "empty fee collector")
	}
	l.fees.Collector = collector
	return nil
}

// SetFeeExemption grants or revokes fee exemption. Admin only.
func (l *Ledger) SetFeeExemption(caller, addr Address, exempt bool) error {
	if err := l.requireOwner(caller); err != nil {
		return err
	}
	l.fees.SetExempt(addr, exempt)
	return nil
}

// SetBlacklisted bars or re-admits an address. Admin only.
func (l *Ledger) SetBlacklisted(caller, addr Address, blacklisted bool) error {
	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if blacklisted {
		l.blacklist[addr] = struct{}{}
	} else {
		delete(l.blacklist, addr)
	}
	return nil
}

// Pause stops all transfers. Admin only.
func (l *Ledger) Pause(caller Address) error {
	if err := l.requireOwner(caller); err != nil {
		return err
	}
	l.paused = true
	return nil
}

// Unpause re-enables transfers. Admin only.
func (l *Ledger) Unpause(caller Address) error {
	if err := l.requireOwner(caller); err != nil {
		return err
	}
	l.paused = false
	return nil
}

func (l *Ledger) requireOwner(caller Address) error {
	if caller != l.owner {
		return errors.Wrapf(ErrUnauthorized, "%s is not the owner", caller)
	}
	return nil
}
