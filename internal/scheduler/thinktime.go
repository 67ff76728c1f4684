package scheduler

import (
	"math/rand"
	"time"
)

// ThinkTime is the policy for how long a VU pauses between iterations.
type ThinkTime interface {
	// Pause returns the next pause duration.
	Pause() time.Duration
}

type noThink struct{}

func (noThink) Pause() time.Duration { return 0 }

// NoThinkTime returns a policy with no pause between iterations.
func NoThinkTime() ThinkTime { return noThink{} }

type constantThink struct {
	d time.Duration
}

func (c constantThink) Pause() time.Duration { return c.d }

// ConstantThinkTime pauses a fixed duration between iterations.
func ConstantThinkTime(d time.Duration) ThinkTime {
	if d <= 0 {
		return noThink{}
	}
	return constantThink{d: d}
}

type uniformThink struct {
	min time.Duration
	max time.Duration
}

func (u uniformThink) Pause() time.Duration {
	diff := u.max - u.min
	if diff <= 0 {
		return u.min
	}
	return u.min + time.Duration(rand.Int63n(int64(diff)))
}

// UniformThinkTime pauses a random duration in [min, max) between
// iterations, emulating human pacing jitter.
func UniformThinkTime(min, max time.Duration) ThinkTime {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return uniformThink{min: min, max: max}
}
