package remote

import (
	"sync"
	"time"

	"github.com/mcf-go/mcf/trigger"
	"github.com/mcf-go/mcf/value"
	"github.com/mcf-go/mcf/valuestore"
)

// SendRule mirrors one local topic onto a remote topic (spec.md §4.5:
// "{topic_local → topic_remote, queue_len, blocking, priority}").
type SendRule struct {
	TopicLocal  string
	TopicRemote string
	QueueLen    int
	Blocking    bool
	Priority    int

	queue *trigger.ValueQueue

	mu          sync.Mutex
	forcedSend  bool
	sendPending bool
}

// ReceiveRule mirrors one remote topic onto a local topic (spec.md §4.5:
// "{topic_remote → topic_local}").
type ReceiveRule struct {
	TopicRemote string
	TopicLocal  string

	mu      sync.Mutex
	pending *pendingValue
}

// pendingValue is a ReceiveRule's single outstanding "accepted for later
// injection" value (spec.md §4.5 per-rule receive protocol: "Blocked...
// store as the rule's single pending value").
type pendingValue struct {
	val value.Value
}

// newSendRule binds rule to store's local topic through a ValueQueue sized
// by QueueLen/Blocking (spec.md §4.5 queue_len/blocking fields).
func newSendRule(r SendRule, store *valuestore.Store) *SendRule {
	r.queue = trigger.NewValueQueue(r.QueueLen, r.Blocking)
	store.AddReceiver(r.TopicLocal, r.queue)
	return &r
}

func (r *SendRule) setForcedSend(v bool) {
	r.mu.Lock()
	r.forcedSend = v
	r.mu.Unlock()
}

func (r *SendRule) isForcedSend() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forcedSend
}

func (r *SendRule) setSendPending(v bool) {
	r.mu.Lock()
	r.sendPending = v
	r.mu.Unlock()
}

func (r *SendRule) isSendPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sendPending
}

// ruleSet owns every send/receive rule for one RemotePair (spec.md §4.5:
// "Topic pairs must be unique per direction"). Send rules are kept in a
// slice in the order they were added; receive rules are keyed by their
// remote topic for O(1) dispatch.
type ruleSet struct {
	store *valuestore.Store

	sendMu sync.RWMutex
	send   []*SendRule

	recvMu sync.RWMutex
	recv   map[string]*ReceiveRule // keyed by TopicRemote
}

func newRuleSet(store *valuestore.Store) *ruleSet {
	return &ruleSet{store: store, recv: make(map[string]*ReceiveRule)}
}

// AddSendRule registers a new send rule, binding its local queue.
func (rs *ruleSet) AddSendRule(r SendRule) *SendRule {
	sr := newSendRule(r, rs.store)
	rs.sendMu.Lock()
	rs.send = append(rs.send, sr)
	rs.sendMu.Unlock()
	return sr
}

// AddReceiveRule registers a new receive rule.
func (rs *ruleSet) AddReceiveRule(r ReceiveRule) *ReceiveRule {
	rr := &ReceiveRule{TopicRemote: r.TopicRemote, TopicLocal: r.TopicLocal}
	rs.recvMu.Lock()
	rs.recv[rr.TopicRemote] = rr
	rs.recvMu.Unlock()
	return rr
}

func (rs *ruleSet) sendRules() []*SendRule {
	rs.sendMu.RLock()
	defer rs.sendMu.RUnlock()
	out := make([]*SendRule, len(rs.send))
	copy(out, rs.send)
	return out
}

func (rs *ruleSet) receiveRule(topicRemote string) (*ReceiveRule, bool) {
	rs.recvMu.RLock()
	defer rs.recvMu.RUnlock()
	rr, ok := rs.recv[topicRemote]
	return rr, ok
}

func (rs *ruleSet) receiveRules() []*ReceiveRule {
	rs.recvMu.RLock()
	defer rs.recvMu.RUnlock()
	out := make([]*ReceiveRule, 0, len(rs.recv))
	for _, r := range rs.recv {
		out = append(out, r)
	}
	return out
}

// resetPendingSends clears every send rule's sendPending flag (spec.md
// §4.5: "On any transition out of UP, pending 'sent but un-acked' send
// rules are reset (their value will be re-sent)"). forcedSend is set so
// the next cycle re-sends even without a fresh queue entry.
func (rs *ruleSet) resetPendingSends() {
	for _, r := range rs.sendRules() {
		if r.isSendPending() {
			r.setSendPending(false)
			r.setForcedSend(true)
		}
	}
}

// forceSendAll marks every send rule for a forced send. Invoked when this
// endpoint receives a CommandSendAll from its peer (spec.md §4.5: "On
// entering UP for the first time, the endpoint sends sendAll to pull one
// value per remote send rule") — the peer asks, this side pushes.
func (rs *ruleSet) forceSendAll() {
	for _, r := range rs.sendRules() {
		r.setForcedSend(true)
	}
}

// pendingRetryInterval is the spec-mandated retry cadence for a blocked
// receive rule's pending value (spec.md §4.5: "retries publication at ~1
// ms intervals").
const pendingRetryInterval = time.Millisecond
