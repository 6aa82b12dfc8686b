// SPDX-License-Identifier: Apache-2.0

// Package glog is the gateway's structured logger, following the shape of
// the teacher's pkg/migrations logger: a small interface with a
// pterm-backed implementation for real use and a no-op implementation for
// tests.
package glog

import "github.com/pterm/pterm"

// Logger is responsible for logging every reconcile phase, every change
// the differ classifies, and every pool-manager lifecycle event.
type Logger interface {
	LogReconcileStart(database string)
	LogReconcileComplete(database string)
	LogReconcileBlocked(database string, dataLoss, incompatible int)

	LogPhaseStart(database, phase string)
	LogPhaseComplete(database, phase string)

	LogChange(database, changeType, objectName string, forced bool)

	LogPoolCreated(database string)
	LogPoolEvicted(database string)

	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type logger struct {
	l pterm.Logger
}

// New returns a Logger backed by pterm's default structured logger.
func New() Logger {
	return &logger{l: pterm.DefaultLogger}
}

func (g *logger) LogReconcileStart(database string) {
	g.l.Info("reconcile started", g.l.Args("database", database))
}

func (g *logger) LogReconcileComplete(database string) {
	g.l.Info("reconcile completed", g.l.Args("database", database))
}

func (g *logger) LogReconcileBlocked(database string, dataLoss, incompatible int) {
	g.l.Warn("reconcile blocked", g.l.Args(
		"database", database,
		"data_loss_changes", dataLoss,
		"incompatible_changes", incompatible,
	))
}

func (g *logger) LogPhaseStart(database, phase string) {
	g.l.Info("phase started", g.l.Args("database", database, "phase", phase))
}

func (g *logger) LogPhaseComplete(database, phase string) {
	g.l.Info("phase completed", g.l.Args("database", database, "phase", phase))
}

func (g *logger) LogChange(database, changeType, objectName string, forced bool) {
	g.l.Info("change applied", g.l.Args(
		"database", database,
		"change_type", changeType,
		"object", objectName,
		"forced", forced,
	))
}

func (g *logger) LogPoolCreated(database string) {
	g.l.Info("pool created", g.l.Args("database", database))
}

func (g *logger) LogPoolEvicted(database string) {
	g.l.Info("pool evicted", g.l.Args("database", database))
}

func (g *logger) Info(msg string, args ...any) {
	g.l.Info(msg, g.l.Args(args...))
}

func (g *logger) Warn(msg string, args ...any) {
	g.l.Warn(msg, g.l.Args(args...))
}

func (g *logger) Error(msg string, args ...any) {
	g.l.Error(msg, g.l.Args(args...))
}

type noopLogger struct{}

// NewNoop returns a Logger whose methods are no-ops, for use in tests.
func NewNoop() Logger {
	return &noopLogger{}
}

func (noopLogger) LogReconcileStart(string)                 {}
func (noopLogger) LogReconcileComplete(string)               {}
func (noopLogger) LogReconcileBlocked(string, int, int)      {}
func (noopLogger) LogPhaseStart(string, string)              {}
func (noopLogger) LogPhaseComplete(string, string)           {}
func (noopLogger) LogChange(string, string, string, bool)    {}
func (noopLogger) LogPoolCreated(string)                     {}
func (noopLogger) LogPoolEvicted(string)                     {}
func (noopLogger) Info(string, ...any)                       {}
func (noopLogger) Warn(string, ...any)                        {}
func (noopLogger) Error(string, ...any)                       {}
