package ice

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/kmansoft/srtc-go/clock"
)

// rttEMAFactor is the exponential moving average weight spec.md section 3
// assigns new RTT samples.
const rttEMAFactor = 0.2

// transactionExpiry is how long an outstanding STUN transaction is kept
// before being silently dropped, per spec.md section 3's STUN Transaction.
const transactionExpiry = 5 * time.Second

type transaction struct {
	id TransactionID
	at time.Time
}

// Agent tracks one peer candidate's outstanding STUN transactions, its
// ICE-CONTROLLING tie-breaker, and an RTT estimate derived from binding
// response round trips. Grounded on original_source/ice_agent.cpp's
// IceAgent (mTie, mTransactionList, forgetTransaction/forgetExpired).
type Agent struct {
	tie          uint64
	transactions []transaction
	rtt          time.Duration
	hasRTT       bool
	clock        clock.Source
}

// NewAgent creates an Agent with a fresh random ICE-CONTROLLING tie.
func NewAgent(src clock.Source) *Agent {
	if src == nil {
		src = clock.Default
	}
	return &Agent{tie: randomTie(), clock: src}
}

func randomTie() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:]) // crypto/rand.Read never errors on this platform's Reader
	return binary.BigEndian.Uint64(b[:])
}

// Tie returns this agent's ICE-CONTROLLING tie-breaker.
func (a *Agent) Tie() uint64 {
	return a.tie
}

// NewTransactionID generates a fresh random 96-bit STUN transaction ID.
func NewTransactionID() TransactionID {
	var tid TransactionID
	_, _ = rand.Read(tid[:])
	return tid
}

// RegisterTransaction records id as an outstanding request, to be matched
// against a later response by ForgetTransaction.
func (a *Agent) RegisterTransaction(id TransactionID) {
	a.transactions = append(a.transactions, transaction{id: id, at: a.clock.Now()})
}

// ForgetTransaction removes id from the outstanding set if present and
// reports whether it was found, plus the RTT it implies. The RTT estimate
// EMA is updated as a side effect when found.
func (a *Agent) ForgetTransaction(id TransactionID) (found bool, rtt time.Duration) {
	for i, tr := range a.transactions {
		if tr.id == id {
			a.transactions = append(a.transactions[:i], a.transactions[i+1:]...)
			rtt = a.clock.Now().Sub(tr.at)
			a.updateRTT(rtt)
			return true, rtt
		}
	}
	return false, 0
}

func (a *Agent) updateRTT(sample time.Duration) {
	if !a.hasRTT {
		a.rtt = sample
		a.hasRTT = true
		return
	}
	a.rtt = time.Duration(float64(a.rtt)*(1-rttEMAFactor) + float64(sample)*rttEMAFactor)
}

// RTT returns the current smoothed RTT estimate (zero if no response has
// ever been observed).
func (a *Agent) RTT() time.Duration {
	return a.rtt
}

// ForgetExpiredTransactions drops any outstanding transaction older than
// transactionExpiry, matching the 1-second expiry sweep of spec.md
// section 5's event loop.
func (a *Agent) ForgetExpiredTransactions() {
	now := a.clock.Now()
	kept := a.transactions[:0]
	for _, tr := range a.transactions {
		if now.Sub(tr.at) < transactionExpiry {
			kept = append(kept, tr)
		}
	}
	a.transactions = kept
}

// PendingCount reports how many transactions are currently outstanding.
func (a *Agent) PendingCount() int {
	return len(a.transactions)
}
