// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package ledger

import (
	"math/big"
	"time"

	"github.com/pkg/errors"
)

type (
	// CheckpointState is the serializable form of a vote checkpoint.
	CheckpointState struct {
		Timestamp time.Time `json:"timestamp"`
		Votes     string    `json:"votes"`
	}

	// State is the serializable snapshot of a ledger. Amounts are base-10
	// strings so the encoding is independent of native integer width.
	State struct {
		Name         string                         `json:"name"`
		Symbol       string                         `json:"symbol"`
		Decimals     uint8                          `json:"decimals"`
		Owner        Address                        `json:"owner"`
		Balances     map[Address]string             `json:"balances"`
		Allowances   map[Address]map[Address]string `json:"allowances,omitempty"`
		TotalSupply  string                         `json:"totalSupply"`
		MaxSupply    string                         `json:"maxSupply"`
		MintingCap   string                         `json:"mintingCap"`
		LastMintTime time.Time                      `json:"lastMintTime"`
		Paused       bool                           `json:"paused"`
		Minters      []Address                      `json:"minters"`
		Blacklist    []Address                      `json:"blacklist,omitempty"`
		FeeBps       uint64                         `json:"feeBasisPoints"`
		FeeCollector Address                        `json:"feeCollector,omitempty"`
		FeeExempt    []Address                      `json:"feeExempt,omitempty"`
		Checkpoints  map[Address][]CheckpointState  `json:"checkpoints,omitempty"`
		Delegatee    map[Address]Address            `json:"delegatee,omitempty"`
	}
)

// Snapshot captures the full ledger state.
func (l *Ledger) Snapshot() *State {
	s := &State{
		Name:         l.name,
		Symbol:       l.symbol,
		Decimals:     l.decimals,
		Owner:        l.owner,
		Balances:     make(map[Address]string, len(l.balances)),
		TotalSupply:  l.totalSupply.String(),
		MaxSupply:    l.maxSupply.String(),
		MintingCap:   l.mintingCap.String(),
		LastMintTime: l.lastMintTime,
		Paused:       l.paused,
		FeeBps:       l.fees.BasisPoints,
		FeeCollector: l.fees.Collector,
		FeeExempt:    l.fees.ExemptAddresses(),
	}
	for addr, b := range l.balances {
		s.Balances[addr] = b.String()
	}
	if len(l.allowances) > 0 {
		s.Allowances = make(map[Address]map[Address]string, len(l.allowances))
		for owner, m := range l.allowances {
			inner := make(map[Address]string, len(m))
			for spender, a := range m {
				inner[spender] = a.String()
			}
			s.Allowances[owner] = inner
		}
	}
	for minter := range l.minters {
		s.Minters = append(s.Minters, minter)
	}
	for addr := range l.blacklist {
		s.Blacklist = append(s.Blacklist, addr)
	}
	if len(l.checkpoints) > 0 {
		s.Checkpoints = make(map[Address][]CheckpointState, len(l.checkpoints))
		for addr, cps := range l.checkpoints {
			out := make([]CheckpointState, len(cps))
			for i, cp := range cps {
				out[i] = CheckpointState{Timestamp: cp.Timestamp, Votes: cp.Votes.String()}
			}
			s.Checkpoints[addr] = out
		}
	}
	if len(l.delegatee) > 0 {
		s.Delegatee = make(map[Address]Address, len(l.delegatee))
		for from, to := range l.delegatee {
			s.Delegatee[from] = to
		}
	}
	return s
}

// FromState rebuilds a ledger from a snapshot.
func FromState(s *State) (*Ledger, error) {
	totalSupply, err := parseAmount(s.TotalSupply)
	if err != nil {
		return nil, err
	}
	maxSupply, err := parseAmount(s.MaxSupply)
	if err != nil {
		return nil, err
	}
	mintingCap, err := parseAmount(s.MintingCap)
	if err != nil {
		return nil, err
	}
	l := &Ledger{
		name:         s.Name,
		symbol:       s.Symbol,
		decimals:     s.Decimals,
		owner:        s.Owner,
		balances:     make(map[Address]*big.Int, len(s.Balances)),
		allowances:   make(map[Address]map[Address]*big.Int),
		totalSupply:  totalSupply,
		maxSupply:    maxSupply,
		mintingCap:   mintingCap,
		lastMintTime: s.LastMintTime,
		mintCooldown: MintCooldown,
		paused:       s.Paused,
		minters:      make(map[Address]struct{}, len(s.Minters)),
		blacklist:    make(map[Address]struct{}, len(s.Blacklist)),
		fees: FeeConfig{
			BasisPoints: s.FeeBps,
			Collector:   s.FeeCollector,
			exempt:      make(map[Address]struct{}, len(s.FeeExempt)),
		},
		checkpoints: make(map[Address][]Checkpoint, len(s.Checkpoints)),
		delegatee:   make(map[Address]Address, len(s.Delegatee)),
	}
	sum := new(big.Int)
	for addr, raw := range s.Balances {
		b, err := parseAmount(raw)
		if err != nil {
			return nil, err
		}
		l.balances[addr] = b
		sum.Add(sum, b)
	}
	if sum.Cmp(totalSupply) != 0 {
		return nil, errors.Errorf("balance sum %s != total supply %s", sum, totalSupply)
	}
	for owner, m := range s.Allowances {
		inner := make(map[Address]*big.Int, len(m))
		for spender, raw := range m {
			a, err := parseAmount(raw)
			if err != nil {
				return nil, err
			}
			inner[spender] = a
		}
		l.allowances[owner] = inner
	}
	for _, minter := range s.Minters {
		l.minters[minter] = struct{}{}
	}
	for _, addr := range s.Blacklist {
		l.blacklist[addr] = struct{}{}
	}
	for _, addr := range s.FeeExempt {
		l.fees.exempt[addr] = struct{}{}
	}
	for addr, cps := range s.Checkpoints {
		out := make([]Checkpoint, len(cps))
		for i, cp := range cps {
			votes, err := parseAmount(cp.Votes)
			if err != nil {
				return nil, err
			}
			out[i] = Checkpoint{Timestamp: cp.Timestamp, Votes: votes}
		}
		l.checkpoints[addr] = out
	}
	for from, to := range s.Delegatee {
		l.delegatee[from] = to
	}
	return l, nil
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("failed to parse amount %q", s)
	}
	return v, nil
}
