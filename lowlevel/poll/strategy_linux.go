//go:build linux
// +build linux

// File: lowlevel/poll/strategy_linux.go
// Author: momentics <momentics@gmail.com>
//
// Strategy selection on Linux, where both pollers are available.

package poll

import (
	"fmt"

	"github.com/momentics/hioload-link/api"
)

// DefaultStrategy is epoll on Linux.
func DefaultStrategy() api.PollStrategy {
	return api.PollStrategyEpoll
}

// Supported reports whether the strategy can run on this platform.
func Supported(strategy api.PollStrategy) bool {
	switch strategy {
	case api.PollStrategyEpoll, api.PollStrategyPerChannel:
		return true
	}
	return false
}

// New builds a poller for the strategy.
func New(strategy api.PollStrategy) (api.Poller, error) {
	switch strategy {
	case api.PollStrategyEpoll:
		return NewEpoll()
	case api.PollStrategyPerChannel:
		return NewPollSet(), nil
	}
	return nil, fmt.Errorf("%w: unknown poll strategy %q", api.ErrInvalidArgument, strategy)
}
