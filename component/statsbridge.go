package component

import (
	"encoding/json"
	"fmt"

	"github.com/mcf-go/mcf/ports"
	"github.com/mcf-go/mcf/value"
)

// StatsValue carries a snapshot of every handler's statistics, republished
// on a component's stats topic (spec.md §4.3 "Statistics": "Updated under
// the component's own lock and republished on '<stats-prefix>/<instance>'").
type StatsValue struct {
	value.Base
	Handlers map[string]Snapshot
}

// TypeID implements value.Value.
func (StatsValue) TypeID() string { return "mcf.stats" }

// WithID implements ports.Stampable.
func (v StatsValue) WithID(id value.ID) value.Value {
	v.Base = value.NewBase(id)
	return v
}

// RegisterStatsType registers StatsValue's pack/unpack pair with reg.
func RegisterStatsType(reg *value.Registry) {
	reg.Register("mcf.stats", packStatsValue, unpackStatsValue)
}

func packStatsValue(v value.Value) ([]byte, error) {
	sv, ok := v.(StatsValue)
	if !ok {
		return nil, fmt.Errorf("component: packStatsValue: not a StatsValue: %T", v)
	}
	return json.Marshal(sv.Handlers)
}

func unpackStatsValue(data []byte) (value.Value, error) {
	var handlers map[string]Snapshot
	if err := json.Unmarshal(data, &handlers); err != nil {
		return nil, fmt.Errorf("component: unpackStatsValue: %w", err)
	}
	return StatsValue{Handlers: handlers}, nil
}

// statsBridge owns a component's stats-out sender port, auto-bound at
// Configure to "<stats-prefix>/<instance-name>".
type statsBridge struct {
	out *ports.SenderPort[StatsValue]
}

func newStatsBridge(c *Component, statsPrefix string) *statsBridge {
	out := ports.NewSenderPort[StatsValue]("stats-out", c.store, c.ids)
	out.Map(statsPrefix + c.name)
	return &statsBridge{out: out}
}

// PublishStats republishes the current handler statistics snapshot on the
// component's stats topic. Non-blocking: a full subscriber drops this
// cycle's update rather than stalling the worker (stats are a best-effort
// introspection feed, not part of the data plane spec.md §4.1 governs).
func (c *Component) PublishStats() error {
	if c.statsBridge == nil {
		return nil
	}
	return c.statsBridge.out.SetValue(StatsValue{Handlers: c.Snapshot()}, false)
}
