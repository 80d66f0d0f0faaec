package twcc

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kmansoft/srtc-go/clock"
	"github.com/kmansoft/srtc-go/errs"
)

// ExtensionID is the negotiated one-byte header extension id this pipeline
// writes its placeholder/assigned sequence number into, set by the caller
// once the answer's extension map resolves
// "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01".
type ExtensionID = uint8

// probeStartDelay, probePeriod and probeDuration are the cadence
// constants of spec.md section 5.
const (
	probeStartDelay = 10 * time.Second
	probePeriod     = 5 * time.Second
	probeDuration   = 1 * time.Second
)

// probeOveruseLossPercent is the instant-loss threshold that ends a probe
// early, per spec.md section 4.3.
const probeOveruseLossPercent = 10.0

// defaultPacingSpreadMillis is returned by GetPacingSpreadMillis when the
// pacing formula does not apply and the caller's default is not positive.
const defaultPacingSpreadMillis = 15.0

// minBandwidthForPacingKbps is the floor below which the pacing formula
// falls back to the caller-supplied default, per spec.md section 4.3.
const minBandwidthForPacingKbps = 10.0

// Pipeline is the publish-side TWCC state for one peer connection: one
// Pipeline serves every track, since feedback sequence numbers are shared
// across the whole transport per spec.md section 4.3.
type Pipeline struct {
	enabled bool

	seqAlloc *SeqAllocator
	history  *History
	analyzer *Analyzer
	clock    clock.Source
	logger   *logrus.Entry

	probeActive    bool
	probeDeadline  time.Time
	nextProbeAt    time.Time
}

// NewPipeline creates a Pipeline. enabled should reflect spec.md section
// 4.3's gating rule: both the offer's enable_bwe flag and the answer
// carrying the extension URI in every present media section.
func NewPipeline(enabled bool, src clock.Source, logger *logrus.Entry) *Pipeline {
	if src == nil {
		src = clock.Default
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pipeline{
		enabled:  enabled,
		seqAlloc: NewSeqAllocator(0),
		history:  NewHistory(),
		analyzer: NewAnalyzer(),
		clock:    src,
		logger:   logger.WithField("component", "twcc"),
	}
}

// Enabled reports whether the pipeline is active for this connection.
func (p *Pipeline) Enabled() bool {
	return p.enabled
}

// OnBeforeGeneratingRtpPacket allocates the next TWCC sequence number for
// an outgoing packet, per spec.md section 4.3's "Outgoing stamping". It
// returns 0 when disabled; 0 is also the first sequence number an enabled
// pipeline hands out, so callers check Enabled to decide whether to write
// the extension.
func (p *Pipeline) OnBeforeGeneratingRtpPacket() uint16 {
	if !p.enabled {
		return 0
	}
	return p.seqAlloc.Next()
}

// OnBeforeSendingRtpPacket records a just-sent packet's accounting entry,
// per spec.md section 4.3's "Outgoing accounting".
func (p *Pipeline) OnBeforeSendingRtpPacket(seq uint16, media MediaType, paddingSize, payloadSize, generatedSize, encryptedSize int) {
	if !p.enabled {
		return
	}
	p.history.Save(PublishPacket{
		Seq:            seq,
		SentTimeMicros: p.clock.MicrosSinceEpoch(),
		PaddingSize:    paddingSize,
		PayloadSize:    payloadSize,
		GeneratedSize:  generatedSize,
		EncryptedSize:  encryptedSize,
		Media:          media,
	})
}

// OnPacketWasNacked records that a NACK arrived for seq, feeding the loss
// analysis pass even if no TWCC feedback packet ever reports it directly.
func (p *Pipeline) OnPacketWasNacked(seq uint16) {
	if !p.enabled {
		return
	}
	p.history.Update(seq, func(e *PublishPacket) {
		e.NackCount++
	})
}

// IngestResult is returned by OnReceivedRtcpPacket and carries the freshly
// computed Stats. It does not report whether they changed since the
// previous ingest.
type IngestResult struct {
	Stats Stats
}

// OnReceivedRtcpPacket parses and applies a transport-wide-cc feedback
// packet's body (see rtcp.RawPacket.Body / IsTWCCFeedback for how a
// caller identifies and strips one from a compound buffer) and re-runs
// the analysis passes.
func (p *Pipeline) OnReceivedRtcpPacket(body []byte) (IngestResult, error) {
	if !p.enabled {
		return IngestResult{}, errs.New(errs.InvalidData, "twcc: pipeline disabled")
	}
	fb, err := ParseFeedback(body)
	if err != nil {
		return IngestResult{}, err
	}

	for _, e := range fb.Entries {
		p.history.Update(e.Seq, func(pub *PublishPacket) {
			pub.ReportedChecked = true
			switch e.Status {
			case StatusNotReceived:
				pub.ReportedAsNotRecv = true
				pub.ReportedStatus = StatusNotReceived
			case StatusReceivedSmallDelta, StatusReceivedLargeDelta:
				pub.ReportedStatus = e.Status
				pub.ReceivedTimePresent = true
				pub.ReceivedTimeMicros = e.ReceivedTimeMicros
			}
		})
	}

	stats := p.analyzer.Analyze(p.history)

	if p.probeActive {
		now := p.clock.Now()
		if stats.PacketsLostPercent >= probeOveruseLossPercent || stats.Trendline == TrendlineOverusing || now.After(p.probeDeadline) {
			p.probeActive = false
			p.logger.Debug("twcc probe ended")
		}
	}

	return IngestResult{Stats: stats}, nil
}

// Stats re-runs the analysis passes over the current history without
// ingesting new feedback and returns the result; like every Analyze call,
// this also feeds the smoothed loss and bandwidth averages once more.
func (p *Pipeline) Stats() Stats {
	return p.analyzer.Analyze(p.history)
}

// ArmProbing schedules the first bandwidth probe per spec.md section 5
// ("probe start 10 s after connect"), to be called once the candidate
// reaches onConnected.
func (p *Pipeline) ArmProbing(connectedAt time.Time) {
	p.nextProbeAt = connectedAt.Add(probeStartDelay)
}

// MaybeStartProbe starts a new probe window if now has reached the next
// scheduled probe time, per spec.md section 5's 5 s probe period, and
// reports whether a probe is (now) active.
func (p *Pipeline) MaybeStartProbe(now time.Time) bool {
	if !p.enabled {
		return false
	}
	if !p.probeActive && !p.nextProbeAt.IsZero() && !now.Before(p.nextProbeAt) {
		p.probeActive = true
		p.probeDeadline = now.Add(probeDuration)
		p.nextProbeAt = now.Add(probePeriod)
		p.logger.Debug("twcc probe started")
	}
	if p.probeActive && now.After(p.probeDeadline) {
		p.probeActive = false
	}
	return p.probeActive
}

// GetPadding returns the RTP padding byte count to add to an outgoing
// packet while a probe is active, per spec.md section 4.3: video packets
// are inflated by about 10%, audio opportunistically when its payload
// leaves MTU room. remainingMTU bounds the result so the pacer's overhead
// budget is never exceeded.
func (p *Pipeline) GetPadding(media MediaType, payloadSize, remainingMTU int) int {
	if !p.probeActive {
		return 0
	}
	var want int
	switch media {
	case MediaVideo:
		want = int(math.Round(float64(payloadSize) * 0.10))
	case MediaAudio:
		want = remainingMTU
	}
	if want > remainingMTU {
		want = remainingMTU
	}
	if want < 0 {
		want = 0
	}
	if want > 255 {
		want = 255 // RTP padding count is a single byte
	}
	return want
}

// GetPacingSpreadMillis computes how many milliseconds sendPaced should
// spread totalPayloadBytes across, per spec.md section 4.3's formula,
// scaled by layerScale (a simulcast layer's share of total bandwidth).
func (p *Pipeline) GetPacingSpreadMillis(totalPayloadBytes int, layerScale float64, defaultMillis float64) float64 {
	stats := p.analyzer.Analyze(p.history)
	if !stats.HasBandwidthEstimate || stats.BandwidthActualKbps < minBandwidthForPacingKbps {
		if defaultMillis <= 0 {
			return defaultPacingSpreadMillis
		}
		return defaultMillis
	}
	bitsPerSecond := stats.BandwidthActualKbps * 1000 * layerScale
	spread := 1000 * float64(totalPayloadBytes) * 8 / bitsPerSecond
	spread = clampFloat(spread, 16, 66.6)
	return spread * 0.8
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
