// Package escalation maps a sensor's recent alert count to the notification
// tiers that should fire. Tiers are cumulative: a higher count activates
// every tier below it as well.
package escalation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/coldchain/coldchain-monitor/internal/config"
	"github.com/coldchain/coldchain-monitor/internal/notify"
)

var ErrEmptyPolicy = errors.New("escalation policy has no tiers")

// Route sends through one named channel to a fixed set of targets.
type Route struct {
	Channel string
	Targets []string
}

type Tier struct {
	Level    int
	MinCount int
	Severity notify.Severity
	Routes   []Route
}

// Policy is an ordered lookup table of tiers.
type Policy struct {
	tiers []Tier
}

// New sorts tiers by MinCount and rejects duplicate thresholds.
func New(tiers []Tier) (*Policy, error) {
	if len(tiers) == 0 {
		return nil, ErrEmptyPolicy
	}
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinCount < sorted[j].MinCount })

	for i := range sorted {
		if sorted[i].MinCount < 1 {
			return nil, fmt.Errorf("tier %d: min_count must be at least 1", sorted[i].Level)
		}
		if i > 0 && sorted[i].MinCount == sorted[i-1].MinCount {
			return nil, fmt.Errorf("tiers %d and %d share min_count %d", sorted[i-1].Level, sorted[i].Level, sorted[i].MinCount)
		}
		if sorted[i].Severity == "" {
			sorted[i].Severity = notify.SeverityWarning
		}
	}
	return &Policy{tiers: sorted}, nil
}

// FromConfig builds a policy from the configured tier table.
func FromConfig(cfg []config.TierConfig) (*Policy, error) {
	tiers := make([]Tier, 0, len(cfg))
	for _, tc := range cfg {
		t := Tier{Level: tc.Level, MinCount: tc.MinCount, Severity: notify.Severity(tc.Severity)}
		for _, rc := range tc.Routes {
			t.Routes = append(t.Routes, Route{Channel: rc.Channel, Targets: rc.Targets})
		}
		tiers = append(tiers, t)
	}
	return New(tiers)
}

// Resolve returns every tier whose threshold count has reached, lowest first.
// A count of zero still yields the baseline tier: any alert is notified.
func (p *Policy) Resolve(count int) []Tier {
	if count < 1 {
		count = 1
	}
	var out []Tier
	for _, t := range p.tiers {
		if count >= t.MinCount {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		out = append(out, p.tiers[0])
	}
	return out
}

// Highest returns the most severe tier active at count.
func (p *Policy) Highest(count int) Tier {
	active := p.Resolve(count)
	return active[len(active)-1]
}

func (p *Policy) Tiers() []Tier {
	out := make([]Tier, len(p.tiers))
	copy(out, p.tiers)
	return out
}
