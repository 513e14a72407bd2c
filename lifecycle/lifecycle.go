// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package lifecycle provides helpers for composing shutdown and other
// actions executed relative to the application's run.
package lifecycle

import (
	"context"
	"errors"
)

// Hook represents functionality that needs to be performed at a
// specific time relative to the execution of the application.
type Hook interface {
	Run(context.Context) error
}

// HookFunc is a func variant of the [Hook] interface.
type HookFunc func(context.Context) error

// Run implements the [Hook] interface.
func (f HookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type multiHook []Hook

func (mh multiHook) Run(ctx context.Context) error {
	errs := make([]error, 0, len(mh))
	for _, h := range mh {
		err := h.Run(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

// MultiHook returns a [Hook] that's the logical concatenation of the
// provided [Hook]s. They're applied sequentially and every hook runs
// even when an earlier one fails.
func MultiHook(hooks ...Hook) Hook {
	return multiHook(hooks)
}

type shutdowner interface {
	Shutdown(context.Context) error
}

// ShutdownHook wraps any value in a [Hook] which calls its
// Shutdown(context.Context) error method if it has one. Values
// without such a method, including nil, run as a no-op. This is how
// provider shutdown is tied to application shutdown without knowing
// the concrete provider types.
func ShutdownHook(v any) HookFunc {
	return func(ctx context.Context) error {
		if v == nil {
			return nil
		}

		s, ok := v.(shutdowner)
		if !ok {
			return nil
		}
		return s.Shutdown(ctx)
	}
}
