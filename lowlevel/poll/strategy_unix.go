//go:build unix && !linux

// File: lowlevel/poll/strategy_unix.go
// Author: momentics <momentics@gmail.com>
//
// Strategy selection on non-Linux Unix, where only poll(2) is available.

package poll

import (
	"fmt"

	"github.com/momentics/hioload-link/api"
)

// DefaultStrategy is the per-channel layout without epoll.
func DefaultStrategy() api.PollStrategy {
	return api.PollStrategyPerChannel
}

// Supported reports whether the strategy can run on this platform.
func Supported(strategy api.PollStrategy) bool {
	return strategy == api.PollStrategyPerChannel
}

// New builds a poller for the strategy.
func New(strategy api.PollStrategy) (api.Poller, error) {
	if strategy != api.PollStrategyPerChannel {
		return nil, fmt.Errorf("%w: poll strategy %q not available on this platform",
			api.ErrInvalidArgument, strategy)
	}
	return NewPollSet(), nil
}
