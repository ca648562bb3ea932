package mqtt

import (
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-mqtt/packet"
)

// result is what a pending request eventually receives: the terminal
// acknowledgement packet, or the error that ended the wait.
type result struct {
	pkt packet.Packet
	err error
}

// pending is one in-flight request: an allocated packet identifier, the
// acknowledgement kinds still expected (in handshake order), and the
// single-use channel that delivers the outcome to the waiting caller.
type pending struct {
	id      uint16
	want    []packet.Type
	created time.Time

	// done is buffered so the run loop never blocks delivering a result,
	// even if the caller has already given up.
	done chan result
}

// resolution describes what resolving an incoming packet against the
// table produced.
type resolution int

const (
	// resolutionUnmatched means no entry exists for the identifier.
	// Brokers may legitimately resend acknowledgements, so this is
	// tolerated (logged and dropped) rather than fatal.
	resolutionUnmatched resolution = iota

	// resolutionDelivered means the terminal handshake phase completed:
	// the waiter has been fulfilled and the identifier freed.
	resolutionDelivered

	// resolutionAdvanced means a non-terminal phase completed (PUBREC in a
	// QoS 2 flow): the entry remains, now expecting the next kind, and the
	// run loop must emit the release packet.
	resolutionAdvanced

	// resolutionMismatched means the packet kind contradicts the phase the
	// entry expects. Fatal: the broker and client disagree about the
	// handshake state.
	resolutionMismatched
)

// table is the correlation table mapping outstanding packet identifiers to
// pending requests. It is shared between the run loop and every concurrent
// request operation; the mutex is held only across map mutation, never
// across a send or a wait.
type table struct {
	mu      sync.Mutex
	entries map[uint16]*pending

	// last is the most recently allocated identifier; allocation scans
	// monotonically from last+1 with wraparound, skipping values still in
	// use, so identifiers are not reused immediately after release.
	last uint16
}

func newTable() *table {
	return &table{entries: make(map[uint16]*pending)}
}

// add allocates a free non-zero identifier and registers a pending entry
// expecting the given acknowledgement kinds in order.
//
// Returns ErrPacketIDsExhausted when all 65535 identifiers are outstanding.
func (t *table) add(want ...packet.Type) (*pending, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) >= 0xFFFF {
		return nil, ErrPacketIDsExhausted
	}

	id := t.last
	for {
		id++
		if id == 0 {
			id = 1
		}
		if _, used := t.entries[id]; !used {
			break
		}
	}
	t.last = id

	p := t.newEntryLocked(id, want)
	return p, nil
}

// register registers a pending entry under a caller-chosen identifier.
//
// Returns ErrPacketIDInUse if the identifier is already outstanding; with
// correct allocation this cannot happen and indicates a defect.
func (t *table) register(id uint16, want ...packet.Type) (*pending, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, used := t.entries[id]; used {
		return nil, fmt.Errorf("%w: id %d", ErrPacketIDInUse, id)
	}
	return t.newEntryLocked(id, want), nil
}

func (t *table) newEntryLocked(id uint16, want []packet.Type) *pending {
	p := &pending{
		id:      id,
		want:    want,
		created: time.Now(),
		done:    make(chan result, 1),
	}
	t.entries[id] = p
	return p
}

// resolve matches an incoming acknowledgement against the table.
//
// On the terminal phase the entry is removed and the waiter fulfilled
// exactly once: whichever of resolve and cancel deletes the entry under
// the lock owns the fulfilment.
func (t *table) resolve(id uint16, pkt packet.Packet) resolution {
	t.mu.Lock()
	p, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return resolutionUnmatched
	}
	if pkt.Type() != p.want[0] {
		t.mu.Unlock()
		return resolutionMismatched
	}
	if len(p.want) > 1 {
		// A PUBREC carrying an error reason code ends the QoS 2 flow
		// right here: no PUBREL follows and the identifier is freed.
		if rec, isRec := pkt.(*packet.Pubrec); isRec && rec.ReasonCode.IsError() {
			delete(t.entries, id)
			t.mu.Unlock()
			p.done <- result{pkt: pkt}
			return resolutionDelivered
		}

		// Non-terminal phase: keep the entry, expect the next kind.
		p.want = p.want[1:]
		t.mu.Unlock()
		return resolutionAdvanced
	}
	delete(t.entries, id)
	t.mu.Unlock()

	p.done <- result{pkt: pkt}
	return resolutionDelivered
}

// cancel releases an identifier without fulfilling its waiter. Used when
// the caller abandons the request; the identifier becomes eligible for
// reuse immediately.
func (t *table) cancel(id uint16) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

// drainAll fulfils every outstanding waiter with err and empties the
// table. Called exactly once per connection, on termination. Returns the
// number of requests drained.
func (t *table) drainAll(err error) int {
	t.mu.Lock()
	drained := make([]*pending, 0, len(t.entries))
	for _, p := range t.entries {
		drained = append(drained, p)
	}
	t.entries = make(map[uint16]*pending)
	t.mu.Unlock()

	for _, p := range drained {
		p.done <- result{err: err}
	}
	return len(drained)
}

// outstanding returns the number of in-flight identifiers.
func (t *table) outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
