package ice

// Priority computes an ICE candidate priority per RFC 5245 section
// 4.1.2.1: (2^24)*typePreference + (2^8)*localPreference + (256-componentID).
// Grounded on original_source/peer_candidate.cpp's make_stun_priority, which
// calls this with typePreference=200 (host), localPreference=10,
// componentID=1 for every candidate this client ever advertises (no TURN/
// relay/srflx candidates, so the type preference is always the host value).
//
// Note: spec.md's own worked example (S1) states a result of 0x6409A0FF for
// these same inputs, which does not match this formula — plugging in
// typePreference=200, localPreference=10, componentID=1 gives 0xC8000AFF,
// exactly what original_source computes. The S1 literal is treated as an
// error in the distilled spec rather than reproduced here; see DESIGN.md.
func Priority(typePreference, localPreference uint32, componentID uint8) uint32 {
	return (1<<24)*typePreference + (1<<8)*localPreference + uint32(256-int(componentID))
}

// HostCandidateTypePreference and HostCandidateLocalPreference are the
// fixed inputs this client always uses: it only ever advertises host
// candidates, so type preference is pinned at the RFC 5245 Table 1 host
// value and local preference at the single-interface default.
const (
	HostCandidateTypePreference  = 200
	HostCandidateLocalPreference = 10
	HostCandidateComponentID     = 1
)
