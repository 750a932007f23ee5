package ratelimit

import "time"

func (l *MemoryLimiter) SetClock(now func() time.Time) { l.now = now }

func (l *MemoryLimiter) Size() int { return l.size() }
