package ports

import "github.com/mcf-go/mcf/trigger"

// PortTriggerHandler pairs an EventFlag with a callback, satisfying
// component.PortHandler. The same handler instance may be registered with
// several ports: its flag collapses any number of events arriving between
// dispatches into a single activation (spec.md §4.3 "Handler
// registration").
type PortTriggerHandler struct {
	flag     *trigger.EventFlag
	callback func()
}

// NewPortTriggerHandler returns a handler that invokes callback on
// dispatch whenever its flag has been activated since the last dispatch.
func NewPortTriggerHandler(callback func()) *PortTriggerHandler {
	return &PortTriggerHandler{flag: trigger.NewEventFlag(), callback: callback}
}

// Flag returns the handler's EventFlag, the object ports register with the
// Value Store.
func (h *PortTriggerHandler) Flag() *trigger.EventFlag { return h.flag }

// Dispatch resets the flag and invokes the callback iff the flag was
// active, matching the worker main loop's "for every port trigger handler
// whose flag is active, reset the flag and invoke the handler" (spec.md
// §4.3).
func (h *PortTriggerHandler) Dispatch() {
	if h.flag.Active(true) {
		h.callback()
	}
}
