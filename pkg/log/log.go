// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package log provides a global logger for the whole process, backed by zap.
// Sub loggers can be configured per subsystem and retrieved by name.
package log

import (
	stdlog "log"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GlobalConfig defines the global logger configurations.
type GlobalConfig struct {
	Zap            *zap.Config `json:"zap" yaml:"zap"`
	RedirectStdLog bool        `json:"stdLogRedirect" yaml:"stdLogRedirect"`
}

var (
	_globalCfg  GlobalConfig
	_logMu      sync.RWMutex
	_logger     *zap.Logger
	_subLoggers map[string]*zap.Logger
)

func init() {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zapCfg.Level.SetLevel(zap.InfoLevel)
	l, err := zapCfg.Build()
	if err != nil {
		stdlog.Panic("Failed to initialize default logger.")
	}
	_logger = l
	_subLoggers = make(map[string]*zap.Logger)
}

// L wraps the global logger.
func L() *zap.Logger {
	_logMu.RLock()
	l := _logger
	_logMu.RUnlock()
	return l
}

// S wraps the sugared global logger.
func S() *zap.SugaredLogger { return L().Sugar() }

// Logger returns the logger of the given name, or the global logger if no
// sub logger with the name was configured.
func Logger(name string) *zap.Logger {
	_logMu.RLock()
	defer _logMu.RUnlock()
	if l, ok := _subLoggers[name]; ok {
		return l
	}
	return _logger
}

// InitLoggers initializes the global logger and other sub loggers.
func InitLoggers(globalCfg GlobalConfig, subCfgs map[string]GlobalConfig) error {
	if _, exists := subCfgs["global"]; exists {
		return errors.New("'global' is a reserved name for the global logger")
	}
	if subCfgs == nil {
		subCfgs = make(map[string]GlobalConfig, 1)
	}
	subCfgs["global"] = globalCfg
	for name, cfg := range subCfgs {
		if _, exists := _subLoggers[name]; exists {
			return errors.Errorf("duplicate sub logger name: %s", name)
		}
		if cfg.Zap == nil {
			zapCfg := zap.NewProductionConfig()
			cfg.Zap = &zapCfg
		} else {
			cfg.Zap.EncoderConfig = zap.NewProductionEncoderConfig()
		}
		logger, err := cfg.Zap.Build()
		if err != nil {
			return err
		}

		_logMu.Lock()
		if name == "global" {
			_globalCfg = cfg
			_logger = logger
			if cfg.RedirectStdLog {
				zap.RedirectStdLog(_logger)
			}
		} else {
			_subLoggers[name] = logger
		}
		_logMu.Unlock()
	}
	return nil
}
