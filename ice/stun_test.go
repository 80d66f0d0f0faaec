package ice

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStunPacket(t *testing.T) {
	tid := NewTransactionID()
	req := BuildBindingRequest(tid, "user", "pass", 0xC8000AFF, 1, false)
	assert.True(t, IsStunPacket(req))

	assert.False(t, IsStunPacket([]byte{0x14, 0, 0, 0}))
	assert.False(t, IsStunPacket(make([]byte, 10)))
}

func TestBuildAndVerifyBindingRequestRoundTrip(t *testing.T) {
	tid := NewTransactionID()
	req := BuildBindingRequest(tid, "aaa:bbb", "secret", Priority(HostCandidateTypePreference, HostCandidateLocalPreference, HostCandidateComponentID), 0x1122334455667788, true)

	m, ok := VerifyRequestMessage(req, "aaa:bbb", "secret")
	require.True(t, ok)
	assert.Equal(t, BindingRequest, m.Type)
	assert.Equal(t, tid, m.TransactionID)

	got, ok := m.Username()
	require.True(t, ok)
	assert.Equal(t, "aaa:bbb", got)
}

func TestVerifyBindingRequestRejectsWrongUsername(t *testing.T) {
	tid := NewTransactionID()
	req := BuildBindingRequest(tid, "aaa:bbb", "secret", 1, 1, false)

	_, ok := VerifyRequestMessage(req, "different", "secret")
	assert.False(t, ok)
}

func TestVerifyBindingRequestRejectsWrongPassword(t *testing.T) {
	tid := NewTransactionID()
	req := BuildBindingRequest(tid, "aaa:bbb", "secret", 1, 1, false)

	_, ok := VerifyRequestMessage(req, "aaa:bbb", "wrong-secret")
	assert.False(t, ok)
}

func TestVerifyBindingRequestRejectsTamperedBytes(t *testing.T) {
	tid := NewTransactionID()
	req := BuildBindingRequest(tid, "aaa:bbb", "secret", 1, 1, false)
	req[len(req)-1] ^= 0xFF

	_, ok := VerifyRequestMessage(req, "aaa:bbb", "secret")
	assert.False(t, ok)
}

func TestBuildAndVerifyBindingSuccessResponseRoundTrip(t *testing.T) {
	tid := NewTransactionID()
	addr := &net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 54321}
	resp := BuildBindingSuccessResponse(tid, "secret", addr)

	m, ok, errCode := VerifyResponseMessage(resp, "secret")
	require.True(t, ok)
	assert.Equal(t, 0, errCode)
	assert.Equal(t, BindingSuccessResponse, m.Type)

	mapped, ok := m.XorMappedAddress()
	require.True(t, ok)
	assert.Equal(t, 54321, mapped.Port)
	assert.True(t, mapped.IP.Equal(addr.IP.To4()))
}

func TestBuildAndVerifyBindingSuccessResponseIPv6(t *testing.T) {
	tid := NewTransactionID()
	addr := &net.UDPAddr{IP: net.ParseIP("2001:db8::1"), Port: 12345}
	resp := BuildBindingSuccessResponse(tid, "secret", addr)

	m, ok, _ := VerifyResponseMessage(resp, "secret")
	require.True(t, ok)

	mapped, ok := m.XorMappedAddress()
	require.True(t, ok)
	assert.Equal(t, 12345, mapped.Port)
	assert.True(t, mapped.IP.Equal(addr.IP.To16()))
}

func TestPriorityFormulaMatchesHostCandidateDefaults(t *testing.T) {
	got := Priority(HostCandidateTypePreference, HostCandidateLocalPreference, HostCandidateComponentID)
	assert.Equal(t, uint32(0xC8000AFF), got)
}
