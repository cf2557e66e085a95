// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package config

import (
	"os"

	"github.com/pkg/errors"
	uconfig "go.uber.org/config"

	"github.com/w3eproject/w3e-core/db"
	"github.com/w3eproject/w3e-core/ledger"
	"github.com/w3eproject/w3e-core/pkg/log"
	"github.com/w3eproject/w3e-core/pkg/unit"
)

// IMPORTANT: to define a config, add a field or a new config type to the
// existing config types. In addition, provide the default value in Default.

// Error strings
var (
	// ErrInvalidCfg indicates the invalid config value
	ErrInvalidCfg = errors.New("invalid config value")
)

type (
	// Token defines one token ledger. Amounts are base-10 strings in the
	// smallest denomination (18 decimals).
	Token struct {
		Name           string `json:"name" yaml:"name"`
		Symbol         string `json:"symbol" yaml:"symbol"`
		Decimals       uint8  `json:"decimals" yaml:"decimals"`
		MaxSupply      string `json:"maxSupply" yaml:"maxSupply"`
		InitialSupply  string `json:"initialSupply" yaml:"initialSupply"`
		MintingCap     string `json:"mintingCap" yaml:"mintingCap"`
		FeeBasisPoints uint64 `json:"feeBasisPoints" yaml:"feeBasisPoints"`
		FeeCollector   string `json:"feeCollector" yaml:"feeCollector"`
		Owner          string `json:"owner" yaml:"owner"`
	}

	// Staking defines the staking system settings.
	Staking struct {
		Admin           string `json:"admin" yaml:"admin"`
		Custody         string `json:"custody" yaml:"custody"`
		EmergencyFeeBps uint64 `json:"emergencyFeeBps" yaml:"emergencyFeeBps"`
	}

	// Config is the root config struct.
	Config struct {
		Tokens  []Token                     `json:"tokens" yaml:"tokens"`
		Staking Staking                     `json:"staking" yaml:"staking"`
		DB      db.Config                   `json:"db" yaml:"db"`
		Log     log.GlobalConfig            `json:"log" yaml:"log"`
		SubLogs map[string]log.GlobalConfig `json:"subLogs" yaml:"subLogs"`
	}

	// Validate is the interface of validating the config
	Validate func(Config) error
)

// Default is the default config
var Default = Config{
	Tokens: []Token{
		{
			Name:           "W3E Token",
			Symbol:         "W3E",
			Decimals:       18,
			MaxSupply:      "1000000000000000000000000000", // 1e9 W3E
			InitialSupply:  "100000000000000000000000000",  // 1e8 W3E
			MintingCap:     "10000000000000000000000000",   // 1e7 W3E
			FeeBasisPoints: 0,
			Owner:          "w3e1admin",
		},
	},
	Staking: Staking{
		Admin:           "w3e1admin",
		Custody:         "w3e1stakingpool",
		EmergencyFeeBps: 500,
	},
	DB: db.DefaultConfig,
}

// Validates is the default set of validation functions
var Validates = []Validate{
	ValidateTokens,
	ValidateStaking,
}

// New creates a config instance. It first loads the default configs, and
// then overwrites them with the values from the given config files. By
// default it applies all validation functions.
func New(configPaths []string, validates ...Validate) (Config, error) {
	opts := make([]uconfig.YAMLOption, 0)
	opts = append(opts, uconfig.Static(Default))
	opts = append(opts, uconfig.Expand(os.LookupEnv))
	for _, path := range configPaths {
		if path != "" {
			opts = append(opts, uconfig.File(path))
		}
	}
	yaml, err := uconfig.NewYAML(opts...)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to init config")
	}

	var cfg Config
	if err := yaml.Get(uconfig.Root).Populate(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal YAML config to struct")
	}

	if len(validates) == 0 {
		validates = Validates
	}
	for _, validate := range validates {
		if validate == nil {
			continue
		}
		if err := validate(cfg); err != nil {
			return Config{}, errors.Wrap(err, "failed to validate config")
		}
	}
	return cfg, nil
}

// ValidateTokens validates the token configs
func ValidateTokens(cfg Config) error {
	if len(cfg.Tokens) == 0 {
		return errors.Wrap(ErrInvalidCfg, "at least one token is required")
	}
	seen := make(map[string]struct{}, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		if t.Symbol == "" {
			return errors.Wrap(ErrInvalidCfg, "token symbol cannot be empty")
		}
		if _, ok := seen[t.Symbol]; ok {
			return errors.Wrapf(ErrInvalidCfg, "duplicate token symbol %s", t.Symbol)
		}
		seen[t.Symbol] = struct{}{}
		if t.Owner == "" {
			return errors.Wrapf(ErrInvalidCfg, "token %s requires an owner", t.Symbol)
		}
		if _, err := t.LedgerConfig(); err != nil {
			return errors.Wrapf(err, "invalid config of token %s", t.Symbol)
		}
	}
	return nil
}

// ValidateStaking validates the staking config
func ValidateStaking(cfg Config) error {
	if cfg.Staking.Admin == "" {
		return errors.Wrap(ErrInvalidCfg, "staking admin cannot be empty")
	}
	if cfg.Staking.Custody == "" {
		return errors.Wrap(ErrInvalidCfg, "staking custody cannot be empty")
	}
	if cfg.Staking.EmergencyFeeBps > ledger.MaxFeeBasisPoints {
		return errors.Wrapf(ErrInvalidCfg, "emergency fee %d exceeds %d basis points",
			cfg.Staking.EmergencyFeeBps, ledger.MaxFeeBasisPoints)
	}
	return nil
}

// LedgerConfig converts the token config into a ledger config.
func (t Token) LedgerConfig() (ledger.Config, error) {
	maxSupply, err := unit.FromString(t.MaxSupply)
	if err != nil {
		return ledger.Config{}, err
	}
	cfg := ledger.Config{
		Name:           t.Name,
		Symbol:         t.Symbol,
		Decimals:       t.Decimals,
		MaxSupply:      maxSupply,
		FeeBasisPoints: t.FeeBasisPoints,
		FeeCollector:   ledger.Address(t.FeeCollector),
		Owner:          ledger.Address(t.Owner),
	}
	if t.InitialSupply != "" {
		if cfg.InitialSupply, err = unit.FromString(t.InitialSupply); err != nil {
			return ledger.Config{}, err
		}
	}
	if t.MintingCap != "" {
		if cfg.MintingCap, err = unit.FromString(t.MintingCap); err != nil {
			return ledger.Config{}, err
		}
	}
	return cfg, nil
}
