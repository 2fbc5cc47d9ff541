package component

import (
	"encoding/json"
	"fmt"

	"github.com/mcf-go/mcf/mcfconfig"
	"github.com/mcf-go/mcf/ports"
	"github.com/mcf-go/mcf/value"
)

// ConfigValue carries a merged JSON configuration document, published on
// a component's config-out topic and read from its config-in topic
// (spec.md §4.3 "Configuration (§1) bridge"). Config contents are opaque
// to the core: the framework publishes the document as is and does not
// interpret any of its keys, log-level keys included.
type ConfigValue struct {
	value.Base
	Payload map[string]any
}

// TypeID implements value.Value.
func (ConfigValue) TypeID() string { return "mcf.config" }

// WithID implements ports.Stampable.
func (v ConfigValue) WithID(id value.ID) value.Value {
	v.Base = value.NewBase(id)
	return v
}

// RegisterConfigType registers ConfigValue's pack/unpack pair with reg.
// Call once per process before any component's config bridge is expected
// to serialize through the recorder or remote bridge.
func RegisterConfigType(reg *value.Registry) {
	reg.Register("mcf.config", packConfigValue, unpackConfigValue)
}

func packConfigValue(v value.Value) ([]byte, error) {
	cv, ok := v.(ConfigValue)
	if !ok {
		return nil, fmt.Errorf("component: packConfigValue: not a ConfigValue: %T", v)
	}
	return json.Marshal(cv.Payload)
}

func unpackConfigValue(data []byte) (value.Value, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("component: unpackConfigValue: %w", err)
	}
	return ConfigValue{Payload: payload}, nil
}

// configBridge owns a component's config-out sender and config-in
// receiver ports, auto-bound at Configure to
// "<config-prefix>/<instance-name>" (spec.md §4.3).
type configBridge struct {
	out *ports.SenderPort[ConfigValue]
	in  *ports.ReceiverPort[ConfigValue]
}

func newConfigBridge(c *Component, configPrefix string) *configBridge {
	topic := configPrefix + c.name
	out := ports.NewSenderPort[ConfigValue]("config-out", c.store, c.ids)
	in := ports.NewReceiverPort[ConfigValue]("config-in", c.store)
	out.Map(topic)
	in.Map(topic)
	return &configBridge{out: out, in: in}
}

// LoadConfig merges name across searchPath — leaves override roots — and
// republishes the merged document on the component's config-out topic
// (spec.md §4.3: "the merged document is then republished on the
// config-out topic"). Configure must have run first.
func (c *Component) LoadConfig(name string, searchPath []string) (map[string]any, error) {
	if c.configBridge == nil {
		return nil, fmt.Errorf("component %s: LoadConfig called before Configure", c.name)
	}
	merged, err := mcfconfig.MergeJSON(name, searchPath)
	if err != nil {
		return nil, err
	}
	if err := c.configBridge.out.SetValue(ConfigValue{Payload: merged}, true); err != nil {
		return nil, fmt.Errorf("component %s: publish config: %w", c.name, err)
	}
	return merged, nil
}

// Config returns the component's current config-in value, if one has been
// published on its config topic.
func (c *Component) Config() (map[string]any, bool) {
	if c.configBridge == nil {
		return nil, false
	}
	v := c.configBridge.in.GetValue()
	if v.Payload == nil {
		return nil, false
	}
	return v.Payload, true
}

// ConfigTopic returns the topic the component's config bridge is bound to,
// or "" if Configure has not run.
func (c *Component) ConfigTopic() string {
	if c.configBridge == nil {
		return ""
	}
	return c.configBridge.out.Topic()
}
