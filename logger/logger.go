// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

// Package logger provides helper functions to configure and use a global logger
package logger

import (
	"log"

	"go.uber.org/zap"

	"github.com/tamago-labs/bodhi-tree-ai/config"
)

// init sets up reasonable logging defaults for tests / non-main
func init() {
	Init(config.Default())
}

// Init configures global loggers accessed with logging functions in this module.
// The level stays tied to cfg.Log.Level, so changing that level later (for
// example from the control server) takes effect immediately.
func Init(cfg *config.Config) {
	z, err := cfg.Log.Build(zap.AddCallerSkip(1))
	if err != nil {
		log.Fatalf("zap init: %v", err)
	}
	Replace(z)
}

// Replace installs z as the global logger and returns a function restoring the
// previous one.
func Replace(z *zap.Logger) (restore func()) {
	return zap.ReplaceGlobals(z)
}

// With returns a logger with some bound key/value pairs
func With(keysAndValues ...interface{}) *Logger {
	return &Logger{zap.S().With(keysAndValues...)}
}

// Sync flushes any buffered logs. Applications should call Sync before program exit.
func Sync() {
	zap.L().Sync()
}

// Logger is a sugared logger carrying bound fields, such as a connection id.
type Logger struct {
	*zap.SugaredLogger
}

// wrappers around sugared zap logging methods that use the zap global logger

func Infow(msg string, keysAndValues ...interface{})  { zap.S().Infow(msg, keysAndValues...) }
func Infof(template string, args ...interface{})      { zap.S().Infof(template, args...) }
func Debugw(msg string, keysAndValues ...interface{}) { zap.S().Debugw(msg, keysAndValues...) }
func Warnw(msg string, keysAndValues ...interface{})  { zap.S().Warnw(msg, keysAndValues...) }
func Errorw(msg string, keysAndValues ...interface{}) { zap.S().Errorw(msg, keysAndValues...) }
func Errorf(template string, args ...interface{})     { zap.S().Errorf(template, args...) }
func Fatalw(msg string, keysAndValues ...interface{}) { zap.S().Fatalw(msg, keysAndValues...) }
