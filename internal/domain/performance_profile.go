package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RunProfile times the phases of one backtest run (week-by-week
// processing, reporting) the way the teacher profiles a rebalance.
type RunProfile struct {
	StartTime time.Time         `json:"-"`
	Events    []RunProfileEvent `json:"events"`
	TotalMs   int64             `json:"totalMs"`
}

type RunProfileEvent struct {
	Name      string    `json:"name"`
	ElapsedMs int64     `json:"elapsedMs"`
	Time      time.Time `json:"time"`
}

const ContextProfileKey = "runProfile"

func NewRunProfile() *RunProfile {
	return &RunProfile{StartTime: time.Now()}
}

func GetRunProfile(ctx context.Context) *RunProfile {
	p, ok := ctx.Value(ContextProfileKey).(*RunProfile)
	if !ok {
		return NewRunProfile()
	}
	return p
}

func (p *RunProfile) End() {
	p.TotalMs = time.Since(p.StartTime).Milliseconds()
}

// Add records the elapsed time since the previous event (or run start
// for the first event).
func (p *RunProfile) Add(name string) {
	last := p.StartTime
	if n := len(p.Events); n > 0 {
		last = p.Events[n-1].Time
	}
	now := time.Now()
	p.Events = append(p.Events, RunProfileEvent{
		Name:      name,
		ElapsedMs: now.Sub(last).Milliseconds(),
		Time:      now,
	})
}

func (p RunProfile) ToJSONBytes() ([]byte, error) {
	bytes, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run profile: %w", err)
	}
	return bytes, nil
}
