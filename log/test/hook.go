// Package test provides log assertions for code logging to the standard
// logger.
package test

import (
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// NewHook attaches a recording hook to the standard logger. The returned
// function restores the hooks installed before.
//
// Prefer passing a logrus.FieldLogger and a local hook; this is for code
// that only reaches the standard logger, such as command actions.
func NewHook() (*test.Hook, func()) {
	previous := make(logrus.LevelHooks, len(logrus.StandardLogger().Hooks))
	for level, hooks := range logrus.StandardLogger().Hooks {
		previous[level] = append([]logrus.Hook(nil), hooks...)
	}

	hook := test.NewGlobal()

	return hook, func() {
		logrus.StandardLogger().ReplaceHooks(previous)
	}
}
