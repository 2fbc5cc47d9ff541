package remote

import (
	"runtime"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rs/zerolog"

	"github.com/mcf-go/mcf/mcfsched"
	"github.com/mcf-go/mcf/value"
	"github.com/mcf-go/mcf/valuestore"
)

// cycleInterval paces the sender/receiver dispatch loops so they poll
// their conn channels and rule list at a steady rate instead of spinning
// (spec.md §5 suspension-point table's ~10ms class of interval).
const cycleInterval = 10 * time.Millisecond

// Config selects one RemotePair's behavior. TypeID names the single value
// type this pair mirrors — spec.md's RemotePair<V> is generic over exactly
// one value type per bridge instance.
type Config struct {
	TypeID string

	PingIntervalMin time.Duration
	PingIntervalMax time.Duration
	PongTimeout     time.Duration
	SendTimeout     time.Duration

	// Scheduling is the owning component's scheduling class; the receiver
	// and pending-value threads inherit it stepped by +1 priority on a
	// real-time policy (spec.md §4.5 "Scheduling").
	Scheduling mcfsched.Params
	Caps       mcfsched.Capabilities
	Warn       mcfsched.Warner

	// Name identifies this pair in metrics and logs (e.g. "lidar-bridge").
	Name string
	// Metrics optionally mirrors liveness/throughput onto mcfmetrics.
	Metrics Metrics
}

// Metrics is the subset of mcfmetrics.Registry the remote bridge touches,
// expressed structurally like valuestore.Metrics and recorder.Metrics.
type Metrics interface {
	ObserveRemoteLiveness(pair, state string)
	ObserveRemoteSendTimeout(pair string)
	ObserveRemoteValueForwarded(pair, direction string)
}

func (c Config) withDefaults() Config {
	if c.PingIntervalMin <= 0 {
		c.PingIntervalMin = 200 * time.Millisecond
	}
	if c.PingIntervalMax <= 0 {
		c.PingIntervalMax = 5 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = c.PingIntervalMax
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = time.Second
	}
	return c
}

// RemotePair implements spec.md §4.5: a bridge endpoint mirroring declared
// topics with a peer process over a Transport, with its own liveness FSM,
// per-rule send/receive protocols and a pending-value retry thread.
type RemotePair struct {
	cfg    Config
	store  *valuestore.Store
	reg    *value.Registry
	logger zerolog.Logger

	conn  *conn
	rules *ruleSet
	fsm   *livenessFSM

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRemotePair wires store/reg/transport together. Call Start to spawn
// its worker threads.
func NewRemotePair(cfg Config, store *valuestore.Store, reg *value.Registry, transport Transport, logger zerolog.Logger) *RemotePair {
	cfg = cfg.withDefaults()
	p := &RemotePair{
		cfg:    cfg,
		store:  store,
		reg:    reg,
		logger: logger.With().Str("remote_type", cfg.TypeID).Logger(),
		rules:  newRuleSet(store),
		stopCh: make(chan struct{}),
	}
	p.fsm = newLivenessFSM(cfg.PingIntervalMin, cfg.PingIntervalMax, p.onEnterUp)
	p.conn = newConn(transport, func(e Envelope) { p.fsm.onAnyMessage() })
	return p
}

// AddSendRule registers a send rule mirroring topicLocal onto topicRemote.
func (p *RemotePair) AddSendRule(topicLocal, topicRemote string, queueLen int, blocking bool, priority int) *SendRule {
	return p.rules.AddSendRule(SendRule{
		TopicLocal:  topicLocal,
		TopicRemote: topicRemote,
		QueueLen:    queueLen,
		Blocking:    blocking,
		Priority:    priority,
	})
}

// AddReceiveRule registers a receive rule mirroring topicRemote onto
// topicLocal.
func (p *RemotePair) AddReceiveRule(topicRemote, topicLocal string) *ReceiveRule {
	return p.rules.AddReceiveRule(ReceiveRule{TopicRemote: topicRemote, TopicLocal: topicLocal})
}

// State reports the pair's current liveness FSM state (spec.md §4.5
// "Liveness FSM"), exposed so callers and tests can observe UP/DOWN/UNSURE
// transitions directly rather than inferring them from forwarding
// behavior.
func (p *RemotePair) State() LivenessState { return p.fsm.State() }

// Start spawns the pair's four worker threads: ping, sender, receiver and
// pending-value retry (spec.md §4.5 "Scheduling": "each endpoint owns
// three [plus the ping probe]").
func (p *RemotePair) Start() {
	p.wg.Add(4)
	go p.runPinned("remote-ping", p.cfg.Scheduling, p.pingLoop)
	go p.runPinned("remote-sender", p.cfg.Scheduling, p.senderLoop)
	go p.runPinned("remote-receiver", steppedPriority(p.cfg.Scheduling), p.receiverLoop)
	go p.runPinned("remote-pending", steppedPriority(p.cfg.Scheduling), p.pendingValueLoop)
}

// Stop signals every worker thread to exit and waits for them to join,
// then closes the underlying transport.
func (p *RemotePair) Stop() error {
	close(p.stopCh)
	p.wg.Wait()
	return p.conn.Close()
}

// steppedPriority implements spec.md §4.5: "receiver = component+1,
// pending = component+1 on RT".
func steppedPriority(base mcfsched.Params) mcfsched.Params {
	if base.Policy == mcfsched.PolicyDefault {
		return base
	}
	return mcfsched.Params{Policy: base.Policy, Priority: base.Priority + 1}
}

func (p *RemotePair) runPinned(name string, params mcfsched.Params, fn func()) {
	defer p.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if p.cfg.Caps != nil {
		if _, err := mcfsched.ApplyWithFallback(p.cfg.Caps, params, p.cfg.Warn); err != nil {
			p.logger.Warn().Err(err).Str("thread", name).Msg("remote: scheduling request failed")
		}
	}
	fn()
}

// onEnterUp implements spec.md §4.5: "On entering UP for the first time,
// the endpoint sends sendAll to pull one value per remote send rule."
// Per the original mcf_remote source (RemoteService::handleTriggers, which
// calls _transceiver.sendRequestAll() once the transceiver first connects),
// reaching UP asks the *peer* to push its current values by sending a
// CommandSendAll envelope; forcing this side's own send rules happens only
// when handleCommand later receives that same command from the peer.
func (p *RemotePair) onEnterUp() {
	if err := p.conn.send(Envelope{Kind: KindCommand, Command: CommandSendAll}); err != nil {
		p.logger.Debug().Err(err).Msg("remote: sendAll request failed")
	}
}

func (p *RemotePair) pingLoop() {
	ticker := time.NewTicker(p.fsm.currentPingInterval())
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
		}

		fresh := p.fsm.nextPing()
		if err := p.conn.send(Envelope{Kind: KindPing, Freshness: fresh}); err != nil {
			p.logger.Debug().Err(err).Msg("remote: ping send failed")
		}

		select {
		case pong := <-p.conn.Pongs:
			p.fsm.onPong(pong.Freshness)
		case <-time.After(p.cfg.PongTimeout):
			p.fsm.onPingTimeout()
		case <-p.stopCh:
			return
		}
		p.reportLiveness()

		ticker.Reset(p.fsm.currentPingInterval())
	}
}

func (p *RemotePair) reportLiveness() {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.ObserveRemoteLiveness(p.cfg.Name, p.fsm.State().String())
	}
}

// senderLoop implements spec.md §4.5's per-rule send protocol, cycling
// while the pair is UP and otherwise leaving rules queued locally.
func (p *RemotePair) senderLoop() {
	limiter := rate.NewLimiter(rate.Every(cycleInterval), 1)
	ctx := waitContext(p.stopCh)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		select {
		case <-p.stopCh:
			return
		default:
		}
		if p.fsm.State() != StateUp {
			p.rules.resetPendingSends()
			continue
		}
		for _, rule := range p.rules.sendRules() {
			if rule.isSendPending() {
				continue
			}
			p.sendRuleCycle(rule)
		}
	}
}

func (p *RemotePair) sendRuleCycle(rule *SendRule) {
	if v, ok := rule.queue.Peek(); ok {
		resp := p.sendValue(rule.TopicRemote, v)
		switch resp {
		case ResponseInjected, ResponseRejected:
			rule.queue.Pop()
			rule.setForcedSend(false)
		case ResponseReceived:
			rule.queue.Pop()
			rule.setSendPending(true)
		case ResponseTimeout:
			p.fsm.onSendTimeout()
			p.reportSendTimeout()
		}
		return
	}
	if !rule.isForcedSend() {
		return
	}
	v, ok := valuestore.GetValue[value.Value](p.store, rule.TopicLocal)
	if !ok {
		return
	}
	resp := p.sendValue(rule.TopicRemote, v)
	switch resp {
	case ResponseInjected, ResponseRejected:
		rule.setForcedSend(false)
	case ResponseReceived:
		rule.setForcedSend(false)
		rule.setSendPending(true)
	case ResponseTimeout:
		p.fsm.onSendTimeout()
		p.reportSendTimeout()
	}
}

func (p *RemotePair) reportSendTimeout() {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.ObserveRemoteSendTimeout(p.cfg.Name)
	}
}

func (p *RemotePair) sendValue(topicRemote string, v value.Value) string {
	data, err := p.reg.Pack(v)
	if err != nil {
		p.logger.Warn().Err(err).Str("topic", topicRemote).Msg("remote: pack failed, treating as rejected")
		return ResponseRejected
	}
	var ext []byte
	if em, ok := v.(value.ExtMemValue); ok {
		ext = em.ExtMem().Bytes()
	}
	resp, err := p.conn.sendAwait(Envelope{Kind: KindValue, Topic: topicRemote, Payload: data, ExtMem: ext}, p.cfg.SendTimeout)
	if err != nil {
		p.logger.Debug().Err(err).Str("topic", topicRemote).Msg("remote: send failed")
		return ResponseTimeout
	}
	if resp == ResponseInjected && p.cfg.Metrics != nil {
		p.cfg.Metrics.ObserveRemoteValueForwarded(p.cfg.Name, "send")
	}
	return resp
}

// receiverLoop implements spec.md §4.5's per-rule receive protocol and the
// sendAll/valueInjected/valueRejected control commands.
func (p *RemotePair) receiverLoop() {
	for {
		select {
		case <-p.stopCh:
			return
		case e := <-p.conn.Pings:
			_ = p.conn.send(Envelope{Kind: KindPong, Freshness: e.Freshness})
		case e := <-p.conn.Values:
			p.handleValue(e)
		case e := <-p.conn.Commands:
			p.handleCommand(e)
		}
	}
}

func (p *RemotePair) handleValue(e Envelope) {
	rule, ok := p.rules.receiveRule(e.Topic)
	if !ok {
		_ = p.conn.respond(e.Topic, ResponseRejected)
		return
	}
	v, err := p.reg.Unpack(p.cfg.TypeID, e.Payload)
	if err != nil {
		p.logger.Debug().Err(err).Str("topic", e.Topic).Msg("remote: unknown type, rejecting")
		_ = p.conn.respond(e.Topic, ResponseRejected)
		return
	}
	result := p.store.SetValue(rule.TopicLocal, v, false, nil)
	switch result {
	case valuestore.Ok:
		_ = p.conn.respond(e.Topic, ResponseInjected)
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.ObserveRemoteValueForwarded(p.cfg.Name, "receive")
		}
	case valuestore.Again:
		rule.mu.Lock()
		rule.pending = &pendingValue{val: v}
		rule.mu.Unlock()
		_ = p.conn.respond(e.Topic, ResponseReceived)
	default:
		_ = p.conn.respond(e.Topic, ResponseRejected)
	}
}

func (p *RemotePair) handleCommand(e Envelope) {
	switch e.Command {
	case CommandSendAll:
		p.rules.forceSendAll()
	case CommandValueInjected, CommandValueRejected:
		for _, rule := range p.rules.sendRules() {
			if rule.TopicRemote == e.Topic {
				rule.setSendPending(false)
			}
		}
	}
}

// pendingValueLoop implements spec.md §4.5: "a dedicated thread retries
// publication at ~1 ms intervals and, on success/failure, enqueues the
// topic for a valueInjected/valueRejected command back to the peer."
func (p *RemotePair) pendingValueLoop() {
	ticker := time.NewTicker(pendingRetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
		}
		p.retryPending()
	}
}

func (p *RemotePair) retryPending() {
	for _, rule := range p.rules.receiveRules() {
		rule.mu.Lock()
		pv := rule.pending
		rule.mu.Unlock()
		if pv == nil {
			continue
		}
		result := p.store.SetValue(rule.TopicLocal, pv.val, false, nil)
		if result == valuestore.Again {
			continue
		}
		rule.mu.Lock()
		rule.pending = nil
		rule.mu.Unlock()

		command := CommandValueInjected
		if result != valuestore.Ok {
			command = CommandValueRejected
		} else if p.cfg.Metrics != nil {
			p.cfg.Metrics.ObserveRemoteValueForwarded(p.cfg.Name, "receive")
		}
		_ = p.conn.send(Envelope{Kind: KindCommand, Topic: rule.TopicRemote, Command: command})
	}
}
