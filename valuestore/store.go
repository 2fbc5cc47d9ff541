// Package valuestore implements MCF's process-wide, type-erased
// topic → value map (spec.md §4.1): the single synchronization point
// every publication and subscription passes through. Its lock discipline
// and receiver fan-out are grounded on the teacher's sharded Hub
// (go-server-3/internal/session/hub.go: a lock-protected registry of
// subscribers per shard, broadcast-to-all-then-count-drops, lazily sized
// worker pools), generalized from connections/shards to topics/receivers
// and from byte broadcasts to typed Value fan-out with back-pressure.
package valuestore

import (
	"sync"
	"time"

	"github.com/mcf-go/mcf/trigger"
	"github.com/mcf-go/mcf/value"
)

// WriteResult is set_value's outcome, matching spec.md §4.1/§4.2's
// Ok/Again/Cancelled (NotConnected is a port-level outcome, not the
// store's — see ports.SenderPort).
type WriteResult int

const (
	Ok WriteResult = iota
	Again
	Cancelled
)

func (r WriteResult) String() string {
	switch r {
	case Ok:
		return "Ok"
	case Again:
		return "Again"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Locker is satisfied by sync.Mutex and mcfsched.CeilingLock alike, so the
// store's map lock and every per-topic entry lock can be swapped from an
// ordinary mutex to a priority-ceiling lock (spec.md §4.1 "Lock
// discipline") without changing Store's code.
type Locker interface {
	Lock()
	Unlock()
}

// LockFactory constructs a fresh Locker for one TopicEntry. New (and
// NewWithLocks given a nil factory) uses plain *sync.Mutex locks; the zero
// Store has no locks and is not usable. Pass a factory returning
// mcfsched.CeilingLock instances to opt into priority-ceiling locking.
type LockFactory func() Locker

func defaultLockFactory() Locker { return &sync.Mutex{} }

// Metrics is the subset of mcfmetrics.Registry the store touches,
// expressed as an interface so valuestore does not import mcfmetrics
// directly (avoiding an import cycle with packages that depend on both).
type Metrics interface {
	ObservePublication(topic string)
	ObserveFanout(topic string)
	ObserveAgain(topic string)
}

// TopicEntry is one topic's last-published value plus its registered
// receivers, each behind its own lock (spec.md §3 "Topic").
type TopicEntry struct {
	lock Locker

	mu        sync.RWMutex
	current   value.Value
	receivers map[trigger.Receiver]struct{}
}

func newTopicEntry(lf LockFactory) *TopicEntry {
	return &TopicEntry{
		lock:      lf(),
		receivers: make(map[trigger.Receiver]struct{}),
	}
}

// Store is MCF's value store (spec.md §4.1).
type Store struct {
	mapLock Locker
	lf      LockFactory
	metrics Metrics

	mu     sync.RWMutex
	topics map[string]*TopicEntry

	allMu  sync.RWMutex
	allRcv map[trigger.Receiver]struct{}
}

// New returns an empty Store using plain mutexes for map and entry locks.
func New() *Store {
	return NewWithLocks(defaultLockFactory, nil)
}

// NewWithLocks returns an empty Store using lf to construct the map lock
// and every future TopicEntry's lock, and optionally reporting counters
// through m (pass nil to skip metrics).
func NewWithLocks(lf LockFactory, m Metrics) *Store {
	if lf == nil {
		lf = defaultLockFactory
	}
	return &Store{
		mapLock: lf(),
		lf:      lf,
		metrics: m,
		topics:  make(map[string]*TopicEntry),
		allRcv:  make(map[trigger.Receiver]struct{}),
	}
}

// entryFor returns topic's TopicEntry, creating it under the map lock if
// absent (spec.md §4.1 write-protocol step 1 and §3 "created lazily").
func (s *Store) entryFor(topic string) *TopicEntry {
	s.mu.RLock()
	e, ok := s.topics[topic]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mapLock.Lock()
	defer s.mapLock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.topics[topic]; ok {
		return e
	}
	e = newTopicEntry(s.lf)
	s.topics[topic] = e
	return e
}

// AddReceiver registers r against topic. Idempotent.
func (s *Store) AddReceiver(topic string, r trigger.Receiver) {
	e := s.entryFor(topic)
	e.mu.Lock()
	e.receivers[r] = struct{}{}
	e.mu.Unlock()
}

// RemoveReceiver unregisters r from topic. Idempotent.
func (s *Store) RemoveReceiver(topic string, r trigger.Receiver) {
	e := s.entryFor(topic)
	e.mu.Lock()
	delete(e.receivers, r)
	e.mu.Unlock()
}

// AddAllTopicReceiver registers r to receive every publication on every
// topic (spec.md §3 "AllTopicsReceiver"; used by the recorder and the
// remote bridge's sender side).
func (s *Store) AddAllTopicReceiver(r trigger.Receiver) {
	s.allMu.Lock()
	s.allRcv[r] = struct{}{}
	s.allMu.Unlock()
}

// RemoveAllTopicReceiver unregisters r. Idempotent.
func (s *Store) RemoveAllTopicReceiver(r trigger.Receiver) {
	s.allMu.Lock()
	delete(s.allRcv, r)
	s.allMu.Unlock()
}

// SetValue is the store's primary write path (spec.md §4.1 six-step
// protocol). abort is polled roughly every 10ms while waiting on a full
// blocking receiver; pass nil to never abort. blocking selects whether a
// blocked receiver causes SetValue to wait (true) or to immediately
// return Again (false).
func (s *Store) SetValue(topic string, v value.Value, blocking bool, abort func() bool) WriteResult {
	e := s.entryFor(topic)

	e.lock.Lock()
	defer e.lock.Unlock()

	if s.anyBlocked(e, topic) {
		if !blocking {
			if s.metrics != nil {
				s.metrics.ObserveAgain(topic)
			}
			return Again
		}
		for s.anyBlocked(e, topic) {
			if abort != nil && abort() {
				return Cancelled
			}
			e.lock.Unlock()
			s.waitOnBlockedReceivers(e, topic, abort)
			e.lock.Lock()
			if abort != nil && abort() {
				return Cancelled
			}
		}
	}

	e.mu.Lock()
	e.current = v
	e.mu.Unlock()

	s.fanOut(e, topic, v)

	if s.metrics != nil {
		s.metrics.ObservePublication(topic)
	}
	return Ok
}

// anyBlocked reports whether any all-topics or topic-specific receiver
// currently reports IsBlocked for topic.
func (s *Store) anyBlocked(e *TopicEntry, topic string) bool {
	s.allMu.RLock()
	for r := range s.allRcv {
		if r.IsBlocked(topic) {
			s.allMu.RUnlock()
			return true
		}
	}
	s.allMu.RUnlock()

	e.mu.RLock()
	defer e.mu.RUnlock()
	for r := range e.receivers {
		if r.IsBlocked(topic) {
			return true
		}
	}
	return false
}

// waitOnBlockedReceivers snapshots the receiver list and calls
// WaitBlocked on each still-blocked receiver outside the entry lock
// (spec.md §4.1 step 3: "release the entry lock, call wait_blocked on
// each"). The caller (SetValue) releases the entry lock before this call
// and reacquires it afterwards; each receiver's WaitBlocked uses its own
// internal condvar and polling loop, so it never needs the entry lock.
func (s *Store) waitOnBlockedReceivers(e *TopicEntry, topic string, abort func() bool) {
	e.mu.RLock()
	blocked := make([]trigger.Receiver, 0, len(e.receivers))
	for r := range e.receivers {
		if r.IsBlocked(topic) {
			blocked = append(blocked, r)
		}
	}
	e.mu.RUnlock()

	s.allMu.RLock()
	for r := range s.allRcv {
		if r.IsBlocked(topic) {
			blocked = append(blocked, r)
		}
	}
	s.allMu.RUnlock()

	if len(blocked) == 0 {
		time.Sleep(time.Millisecond)
		return
	}
	for _, r := range blocked {
		r.WaitBlocked(topic, abort)
		if abort != nil && abort() {
			return
		}
	}
}

// fanOut delivers v to every all-topics receiver, then every
// topic-specific receiver, purging any receiver whose Receive panics
// (spec.md §4.1 step 6, §4.1 "Failure semantics": "a throwing receiver is
// treated as expired and removed").
func (s *Store) fanOut(e *TopicEntry, topic string, v value.Value) {
	s.allMu.RLock()
	all := make([]trigger.Receiver, 0, len(s.allRcv))
	for r := range s.allRcv {
		all = append(all, r)
	}
	s.allMu.RUnlock()
	for _, r := range all {
		s.safeReceive(r, topic, v, func() { s.RemoveAllTopicReceiver(r) })
	}

	e.mu.RLock()
	topicRcv := make([]trigger.Receiver, 0, len(e.receivers))
	for r := range e.receivers {
		topicRcv = append(topicRcv, r)
	}
	e.mu.RUnlock()
	for _, r := range topicRcv {
		s.safeReceive(r, topic, v, func() {
			e.mu.Lock()
			delete(e.receivers, r)
			e.mu.Unlock()
		})
	}

	if s.metrics != nil && (len(all)+len(topicRcv)) > 0 {
		s.metrics.ObserveFanout(topic)
	}
}

// safeReceive calls r.Receive, invoking purge (which removes r from its
// registry) if Receive panics.
func (s *Store) safeReceive(r trigger.Receiver, topic string, v value.Value, purge func()) {
	defer func() {
		if recover() != nil {
			purge()
		}
	}()
	r.Receive(topic, v)
}

// HasValue reports whether topic currently holds a published value.
func (s *Store) HasValue(topic string) bool {
	s.mu.RLock()
	e, ok := s.topics[topic]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current != nil
}

// rawValue returns topic's current value and whether one is present,
// without blocking on any publisher (spec.md §4.1 get_value never
// blocks).
func (s *Store) rawValue(topic string) (value.Value, bool) {
	s.mu.RLock()
	e, ok := s.topics[topic]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current, e.current != nil
}

// Keys returns every topic name the store currently knows about,
// including topics with no current value (created only by receiver
// registration).
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.topics))
	for k := range s.topics {
		keys = append(keys, k)
	}
	return keys
}

// GetSerialized packs topic's current value through reg, returning the
// bytes, the value's registered type-id, and whether a value was present.
func (s *Store) GetSerialized(topic string, reg *value.Registry) (data []byte, typeID string, ok bool, err error) {
	v, present := s.rawValue(topic)
	if !present {
		return nil, "", false, nil
	}
	data, err = reg.Pack(v)
	if err != nil {
		return nil, v.TypeID(), true, err
	}
	return data, v.TypeID(), true, nil
}

// GetValue returns topic's current value downcast to T, or the zero T if
// absent or of a different concrete type (spec.md §4.1 get_value<T>:
// "returns ... a default-constructed T if absent or type mismatch", and
// never blocks).
func GetValue[T value.Value](s *Store, topic string) (T, bool) {
	var zero T
	v, ok := s.rawValue(topic)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
