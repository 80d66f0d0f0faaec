package ice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) MicrosSinceEpoch() int64 { return f.now.UnixMicro() }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func TestAgentTieIsNonZeroAndStable(t *testing.T) {
	a := NewAgent(newFakeClock())
	tie := a.Tie()
	assert.NotZero(t, tie)
	assert.Equal(t, tie, a.Tie())
}

func TestAgentTwoAgentsGetDifferentTies(t *testing.T) {
	a1 := NewAgent(newFakeClock())
	a2 := NewAgent(newFakeClock())
	assert.NotEqual(t, a1.Tie(), a2.Tie())
}

func TestAgentForgetTransactionComputesRTT(t *testing.T) {
	fc := newFakeClock()
	a := NewAgent(fc)

	tid := NewTransactionID()
	a.RegisterTransaction(tid)
	fc.advance(25 * time.Millisecond)

	found, rtt := a.ForgetTransaction(tid)
	require.True(t, found)
	assert.Equal(t, 25*time.Millisecond, rtt)
	assert.Equal(t, 25*time.Millisecond, a.RTT())
	assert.Equal(t, 0, a.PendingCount())
}

func TestAgentForgetTransactionUnknownIDNotFound(t *testing.T) {
	a := NewAgent(newFakeClock())
	found, rtt := a.ForgetTransaction(NewTransactionID())
	assert.False(t, found)
	assert.Equal(t, time.Duration(0), rtt)
}

func TestAgentRTTIsExponentialMovingAverage(t *testing.T) {
	fc := newFakeClock()
	a := NewAgent(fc)

	tid1 := NewTransactionID()
	a.RegisterTransaction(tid1)
	fc.advance(100 * time.Millisecond)
	_, _ = a.ForgetTransaction(tid1)
	assert.Equal(t, 100*time.Millisecond, a.RTT())

	tid2 := NewTransactionID()
	a.RegisterTransaction(tid2)
	fc.advance(50 * time.Millisecond)
	_, _ = a.ForgetTransaction(tid2)

	// new = old*(1-0.2) + sample*0.2 = 100*0.8 + 50*0.2 = 90ms
	assert.Equal(t, 90*time.Millisecond, a.RTT())
}

func TestAgentForgetExpiredTransactionsDropsOldOnes(t *testing.T) {
	fc := newFakeClock()
	a := NewAgent(fc)

	oldTid := NewTransactionID()
	a.RegisterTransaction(oldTid)
	fc.advance(6 * time.Second)

	freshTid := NewTransactionID()
	a.RegisterTransaction(freshTid)

	a.ForgetExpiredTransactions()
	assert.Equal(t, 1, a.PendingCount())

	found, _ := a.ForgetTransaction(freshTid)
	assert.True(t, found)

	found, _ = a.ForgetTransaction(oldTid)
	assert.False(t, found)
}

func TestAgentForgetExpiredTransactionsKeepsRecentOnes(t *testing.T) {
	fc := newFakeClock()
	a := NewAgent(fc)

	tid := NewTransactionID()
	a.RegisterTransaction(tid)
	fc.advance(1 * time.Second)

	a.ForgetExpiredTransactions()
	assert.Equal(t, 1, a.PendingCount())
}
