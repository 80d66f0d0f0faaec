// Package sdpadapter maps an already-parsed *sdp.SessionDescription
// (github.com/pion/sdp/v3 does the text parsing) into the srtc.Answer
// data model of sdp.go, per spec.md section 1's Non-goals: full SDP
// generation/parsing lives outside this core, but the core still needs
// a typed view of the handful of attributes it cares about — ICE
// credentials, DTLS fingerprint/setup role, RTP header extension map,
// and per-track SSRC/payload-type/codec assignment. Grounded on
// original_source/include/srtc/sdp_answer.h and src/sdp_answer.cpp,
// which is the original's equivalent attribute-walking adapter (there,
// over a hand-rolled SDP tokenizer rather than pion/sdp's parser).
package sdpadapter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"

	srtc "github.com/kmansoft/srtc-go"
	"github.com/kmansoft/srtc-go/errs"
)

// Parse converts desc into an srtc.Answer. seeds supplies, per mid, the
// SSRC/payload-type/packetizer-seed values this client originally
// offered, since an answer's a=ssrc lines (if present at all) describe
// the answerer's own view, not authoritative new values for a publish
// track. Each track takes its direction, SSRC and payload type from its
// seed; the answer's a=ssrc lines are not read, for publish and
// subscribe tracks alike.
func Parse(desc *sdp.SessionDescription, seeds map[string]TrackSeed) (srtc.Answer, error) {
	if desc == nil {
		return srtc.Answer{}, errs.New(errs.InvalidData, "sdpadapter: nil session description")
	}

	answer := srtc.Answer{
		ExtensionMaps: make(map[string]*srtc.ExtensionMap),
	}

	sessAttrs := attrMap(desc.Attributes)
	answer.IceUfrag = sessAttrs["ice-ufrag"]
	answer.IcePassword = sessAttrs["ice-pwd"]

	if fp, ok := sessAttrs["fingerprint"]; ok {
		rf, err := parseFingerprint(fp)
		if err != nil {
			return srtc.Answer{}, err
		}
		answer.RemoteFingerprint = rf
	}
	if setup, ok := sessAttrs["setup"]; ok {
		answer.SetupRole = parseSetupRole(setup)
	}

	for _, md := range desc.MediaDescriptions {
		attrs := attrMap(md.Attributes)

		mid := attrs["mid"]

		if ufrag, ok := attrs["ice-ufrag"]; ok {
			answer.IceUfrag = ufrag
		}
		if pwd, ok := attrs["ice-pwd"]; ok {
			answer.IcePassword = pwd
		}
		if fp, ok := attrs["fingerprint"]; ok {
			rf, err := parseFingerprint(fp)
			if err != nil {
				return srtc.Answer{}, err
			}
			answer.RemoteFingerprint = rf
		}
		if setup, ok := attrs["setup"]; ok {
			answer.SetupRole = parseSetupRole(setup)
		}

		for _, raw := range rawValues(md.Attributes, "candidate") {
			cand, ok := parseCandidate(raw)
			if ok {
				answer.Candidates = append(answer.Candidates, cand)
			}
		}

		em := &srtc.ExtensionMap{}
		for _, raw := range rawValues(md.Attributes, "extmap") {
			id, uri, ok := parseExtmap(raw)
			if ok {
				em.Add(id, uri)
			}
		}
		if mid != "" {
			answer.ExtensionMaps[mid] = em
		}

		seed, hasSeed := seeds[mid]
		if !hasSeed {
			continue
		}

		track, err := buildTrack(md, mid, attrs, seed)
		if err != nil {
			return srtc.Answer{}, err
		}
		if track != nil {
			answer.Tracks = append(answer.Tracks, track)
		}
	}

	return answer, nil
}

// TrackSeed carries, for one mid, the media type, SSRCs, payload type,
// packetizer start values and direction that Parse uses to build that
// mid's track.
type TrackSeed struct {
	Media          srtc.MediaType
	SSRC           uint32
	RtxSSRC        uint32
	PayloadType    uint8
	StartSeq       uint32
	StartTimestamp uint32
	Direction      srtc.Direction
}

func buildTrack(md *sdp.MediaDescription, mid string, attrs map[string]string, seed TrackSeed) (*srtc.Track, error) {
	clockRate, codec := mediaCodec(md, seed.PayloadType)

	track := srtc.NewTrack(seed.Direction, seed.Media, mid, seed.SSRC, seed.PayloadType, codec, clockRate, seed.StartSeq, seed.StartTimestamp)

	if rtxPT, ok := findRtxPayloadType(md, seed.PayloadType); ok {
		track.SetRtx(seed.RtxSSRC, rtxPT)
	}

	for _, fb := range rawValues(md.Attributes, "rtcp-fb") {
		fields := strings.Fields(fb)
		if len(fields) < 2 {
			continue
		}
		switch fields[1] {
		case "nack":
			if len(fields) == 2 {
				track.NackSupported = true
			}
		case "pli":
			track.PliSupported = true
		}
	}

	return track, nil
}

// mediaCodec finds the rtpmap line matching pt and returns its clock
// rate and the corresponding srtc.Codec, defaulting to CodecNone/90000
// if the payload type isn't described (never expected once negotiation
// succeeds, but kept non-fatal per spec.md section 7's lenient-parse
// posture for this external-collaborator boundary).
func mediaCodec(md *sdp.MediaDescription, pt uint8) (uint32, srtc.Codec) {
	for _, raw := range rawValues(md.Attributes, "rtpmap") {
		fields := strings.SplitN(raw, " ", 2)
		if len(fields) != 2 {
			continue
		}
		if parsePT(fields[0]) != pt {
			continue
		}
		parts := strings.Split(fields[1], "/")
		clockRate := uint32(90000)
		if len(parts) > 1 {
			if v, err := strconv.Atoi(parts[1]); err == nil {
				clockRate = uint32(v)
			}
		}
		switch strings.ToUpper(parts[0]) {
		case "H264":
			return clockRate, srtc.CodecH264
		case "OPUS":
			return clockRate, srtc.CodecOpus
		}
		return clockRate, srtc.CodecNone
	}
	return 90000, srtc.CodecNone
}

// findRtxPayloadType looks for an "apt=<primaryPT>" fmtp line and
// returns the RTX payload type that declares it, per RFC 4588.
func findRtxPayloadType(md *sdp.MediaDescription, primaryPT uint8) (uint8, bool) {
	for _, raw := range rawValues(md.Attributes, "fmtp") {
		fields := strings.SplitN(raw, " ", 2)
		if len(fields) != 2 || !strings.Contains(fields[1], "apt=") {
			continue
		}
		aptStr := fields[1][strings.Index(fields[1], "apt=")+4:]
		if idx := strings.IndexAny(aptStr, "; "); idx >= 0 {
			aptStr = aptStr[:idx]
		}
		apt, err := strconv.Atoi(strings.TrimSpace(aptStr))
		if err != nil || uint8(apt) != primaryPT {
			continue
		}
		return parsePT(fields[0]), true
	}
	return 0, false
}

func parsePT(s string) uint8 {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return uint8(v)
}

// attrMap collapses an attribute list to a last-value-wins map, for the
// attributes this adapter only ever expects once per section (mid,
// ice-ufrag, ice-pwd, fingerprint, setup).
func attrMap(attrs []sdp.Attribute) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value
	}
	return m
}

// rawValues returns every value for attributes with the given key, in
// document order, for attributes that legitimately repeat (candidate,
// rtpmap, fmtp, rtcp-fb, extmap, ssrc-group).
func rawValues(attrs []sdp.Attribute, key string) []string {
	var out []string
	for _, a := range attrs {
		if a.Key == key {
			out = append(out, a.Value)
		}
	}
	return out
}

// parseFingerprint parses an "a=fingerprint:<alg> <hex>" value.
func parseFingerprint(v string) (srtc.RemoteFingerprint, error) {
	fields := strings.SplitN(v, " ", 2)
	if len(fields) != 2 {
		return srtc.RemoteFingerprint{}, errs.New(errs.InvalidData, "sdpadapter: malformed fingerprint attribute")
	}
	hex := strings.ReplaceAll(strings.ToLower(fields[1]), ":", "")
	bin := make([]byte, len(hex)/2)
	for i := 0; i < len(bin); i++ {
		var b uint64
		_, err := fmt.Sscanf(hex[i*2:i*2+2], "%02x", &b)
		if err != nil {
			return srtc.RemoteFingerprint{}, errs.Wrap(errs.InvalidData, "sdpadapter: parsing fingerprint hex", err)
		}
		bin[i] = byte(b)
	}
	return srtc.RemoteFingerprint{Algorithm: fields[0], Binary: bin, Hex: fields[1]}, nil
}

func parseSetupRole(v string) srtc.SetupRole {
	if strings.EqualFold(v, "active") {
		return srtc.SetupRoleActive
	}
	return srtc.SetupRolePassive
}

// parseCandidate parses the small subset of RFC 5245's candidate-attribute
// grammar this client cares about — UDP host candidates only, per spec.md
// section 6's Non-goals (no TURN/relay, no srflx).
func parseCandidate(v string) (srtc.IceCandidate, bool) {
	fields := strings.Fields(v)
	// foundation component transport priority ip port typ <type> ...
	if len(fields) < 8 {
		return srtc.IceCandidate{}, false
	}
	if !strings.EqualFold(fields[2], "udp") {
		return srtc.IceCandidate{}, false
	}
	if fields[6] != "typ" || fields[7] != "host" {
		return srtc.IceCandidate{}, false
	}
	port, err := strconv.Atoi(fields[5])
	if err != nil {
		return srtc.IceCandidate{}, false
	}
	return srtc.IceCandidate{IP: fields[4], Port: port}, true
}

// parseExtmap parses an "a=extmap:<id>[/<direction>] <uri>" value.
func parseExtmap(v string) (uint8, string, bool) {
	fields := strings.Fields(v)
	if len(fields) < 2 {
		return 0, "", false
	}
	idStr := fields[0]
	if idx := strings.IndexByte(idStr, '/'); idx >= 0 {
		idStr = idStr[:idx]
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, "", false
	}
	return uint8(id), fields[1], true
}
