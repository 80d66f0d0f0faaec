package twcc

import (
	"sort"
)

// TrendlineState is the smoothed bandwidth-overuse classification spec.md
// section 4.3 "analysis pass 3" produces.
type TrendlineState int

const (
	TrendlineNormal TrendlineState = iota
	TrendlineOverusing
	TrendlineUnderusing
)

// emaFactor is the exponential-moving-average weight spec.md section 4.3
// assigns new samples for both loss percent and actual bandwidth.
const emaFactor = 0.2

// Stats is the snapshot of analysis outputs spec.md section 4.3 delivers
// to the stats consumer, mirrored 1:1 into the PublishConnectionStats
// surface of spec.md section 7.
type Stats struct {
	PacketsLostPercent            float64
	BandwidthActualKbps           float64
	BandwidthSuggestedKbps        float64
	HasBandwidthEstimate          bool
	Trendline                     TrendlineState
}

// analysisState carries the running smoothed values and the trendline
// persistence counters between successive Analyze calls.
type analysisState struct {
	hasLoss     bool
	lossPercent float64

	hasActual   bool
	actualKbps  float64

	trendline        TrendlineState
	overuseSince     int64 // micros, 0 if not currently accumulating
	overuseSamples   int
	underuseSince    int64
	underuseSamples  int
}

// minPacketsForBandwidth and minSpanMicrosForBW are the thresholds
// spec.md section 4.3 pass 2 requires before trusting an actual-bandwidth
// estimate.
const (
	minPacketsForBandwidth = 30
	minSpanMicrosForBW     = 1_000_000
)

// minPacketsForTrendline and minSpanMicrosTrendline gate pass 3.
const (
	minPacketsForTrendline = 15
	minSpanMicrosTrendline = 100_000
)

// trendlineSlopeThreshold is the +-0.1 ms/ms slope spec.md section 4.3
// uses to call overuse/underuse candidates.
const trendlineSlopeThreshold = 0.1

// overusePersistMicros and overusePersistSamples are the joint
// requirements spec.md section 4.3 sets before a trendline candidate
// overuse flips the smoothed state.
const (
	overusePersistMicros  = 2_000_000
	overusePersistSamples = 10
)

// probeMinPackets, probeMinPaddedFraction and probeMinSpanMicros are pass
// 4's thresholds for accepting a probe run as a valid bandwidth sample.
const (
	probeMinPackets        = 10
	probeMinPaddedFraction = 0.8
	probeMinSpanMicros     = 800_000
)

// Analyzer runs the four analysis passes of spec.md section 4.3 over a
// History snapshot and produces pacing/bandwidth guidance.
type Analyzer struct {
	state analysisState
}

// NewAnalyzer creates an Analyzer with no prior smoothed state.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze runs all four passes over h and returns the resulting Stats. It
// should be called after every feedback ingest (gated by the caller at a
// minimum interval/count, per spec.md section 4.3).
func (a *Analyzer) Analyze(h *History) Stats {
	loss := a.analyzeLoss(h)
	actualKbps, haveActual := a.analyzeActualBandwidth(h)
	a.analyzeTrendline(h)
	probeKbps, haveProbe := a.analyzeProbeBandwidth(h)

	suggested := actualKbps
	if loss >= 10.0 || a.state.trendline == TrendlineOverusing {
		suggested *= 0.9
	} else if haveProbe && probeKbps > actualKbps {
		suggested = probeKbps
	}

	return Stats{
		PacketsLostPercent:     loss,
		BandwidthActualKbps:    actualKbps,
		BandwidthSuggestedKbps: suggested,
		HasBandwidthEstimate:   haveActual,
		Trendline:              a.state.trendline,
	}
}

// analyzeLoss implements pass 1: loss% = max(not_received, nack)/total*100,
// EMA-smoothed.
func (a *Analyzer) analyzeLoss(h *History) float64 {
	var total, notReceived, nacked int
	h.Range(func(p PublishPacket) {
		if !p.ReportedChecked {
			return
		}
		total++
		if p.ReportedAsNotRecv {
			notReceived++
		}
		if p.NackCount > 0 {
			nacked++
		}
	})
	if total == 0 {
		if a.state.hasLoss {
			return a.state.lossPercent
		}
		return 0
	}

	worst := notReceived
	if nacked > worst {
		worst = nacked
	}
	sample := float64(worst) / float64(total) * 100

	if !a.state.hasLoss {
		a.state.lossPercent = sample
		a.state.hasLoss = true
	} else {
		a.state.lossPercent = a.state.lossPercent*(1-emaFactor) + sample*emaFactor
	}
	return a.state.lossPercent
}

// analyzeActualBandwidth implements pass 2: anchor at the most recently
// received packet, walk backwards accumulating received packets until
// both count and span thresholds are met, then compute bits/sec.
func (a *Analyzer) analyzeActualBandwidth(h *History) (kbps float64, ok bool) {
	type sample struct {
		recvMicros int64
		size       int
	}
	var received []sample
	h.Range(func(p PublishPacket) {
		if p.ReceivedTimePresent {
			received = append(received, sample{p.ReceivedTimeMicros, p.PayloadSize + p.PaddingSize})
		}
	})
	if len(received) == 0 {
		if a.state.hasActual {
			return a.state.actualKbps, true
		}
		return 0, false
	}

	sort.Slice(received, func(i, j int) bool { return received[i].recvMicros < received[j].recvMicros })

	// Walk backwards from the newest sample until both thresholds hold, or
	// we exhaust the window.
	end := len(received) - 1
	start := end
	for start > 0 {
		count := end - start + 1
		span := received[end].recvMicros - received[start].recvMicros
		if count >= minPacketsForBandwidth && span >= minSpanMicrosForBW {
			break
		}
		start--
	}

	count := end - start + 1
	span := received[end].recvMicros - received[start].recvMicros
	if count < minPacketsForBandwidth || span < minSpanMicrosForBW || span <= 0 {
		if a.state.hasActual {
			return a.state.actualKbps, true
		}
		return 0, false
	}

	var totalBytes int
	for i := start; i <= end; i++ {
		totalBytes += received[i].size
	}
	bitsPerSecond := float64(totalBytes) * 8 * 1_000_000 / float64(span)
	sampleKbps := bitsPerSecond / 1000

	if !a.state.hasActual {
		a.state.actualKbps = sampleKbps
		a.state.hasActual = true
	} else {
		a.state.actualKbps = a.state.actualKbps*(1-emaFactor) + sampleKbps*emaFactor
	}
	return a.state.actualKbps, true
}

// analyzeTrendline implements pass 3: a simple linear regression of
// inter-arrival delay against send time over received packets, requiring
// the candidate overuse/underuse direction to persist for both a duration
// and a sample count before flipping the smoothed state.
func (a *Analyzer) analyzeTrendline(h *History) {
	type sample struct {
		sentMicros int64
		recvMicros int64
	}
	var pts []sample
	h.Range(func(p PublishPacket) {
		if p.ReceivedTimePresent {
			pts = append(pts, sample{p.SentTimeMicros, p.ReceivedTimeMicros})
		}
	})
	if len(pts) < minPacketsForTrendline {
		return
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].sentMicros < pts[j].sentMicros })
	span := pts[len(pts)-1].sentMicros - pts[0].sentMicros
	if span < minSpanMicrosTrendline {
		return
	}

	// Linear regression of inter-arrival delay (ms) on absolute send time
	// (ms) across consecutive received pairs.
	var n float64
	var sumX, sumY, sumXY, sumXX float64
	for i := 1; i < len(pts); i++ {
		sentDeltaMicros := pts[i].sentMicros - pts[i-1].sentMicros
		recvDeltaMicros := pts[i].recvMicros - pts[i-1].recvMicros
		interArrivalMs := float64(recvDeltaMicros-sentDeltaMicros) / 1000
		xMs := float64(pts[i].sentMicros-pts[0].sentMicros) / 1000

		n++
		sumX += xMs
		sumY += interArrivalMs
		sumXY += xMs * interArrivalMs
		sumXX += xMs * xMs
	}
	if n == 0 {
		return
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return
	}
	slope := (n*sumXY - sumX*sumY) / denom

	latestMicros := pts[len(pts)-1].sentMicros
	switch {
	case slope >= trendlineSlopeThreshold:
		if a.state.overuseSince == 0 {
			a.state.overuseSince = latestMicros
			a.state.overuseSamples = 0
		}
		a.state.overuseSamples++
		a.state.underuseSince = 0
		a.state.underuseSamples = 0
		if latestMicros-a.state.overuseSince >= overusePersistMicros && a.state.overuseSamples >= overusePersistSamples {
			a.state.trendline = TrendlineOverusing
		}
	case slope <= -trendlineSlopeThreshold:
		if a.state.underuseSince == 0 {
			a.state.underuseSince = latestMicros
			a.state.underuseSamples = 0
		}
		a.state.underuseSamples++
		a.state.overuseSince = 0
		a.state.overuseSamples = 0
		if latestMicros-a.state.underuseSince >= overusePersistMicros && a.state.underuseSamples >= overusePersistSamples {
			a.state.trendline = TrendlineUnderusing
		}
	default:
		a.state.overuseSince = 0
		a.state.overuseSamples = 0
		a.state.underuseSince = 0
		a.state.underuseSamples = 0
		a.state.trendline = TrendlineNormal
	}
}

// analyzeProbeBandwidth implements pass 4: find the longest recent run of
// padded packets satisfying the count/fraction/span thresholds and
// compute bits/sec over that span.
func (a *Analyzer) analyzeProbeBandwidth(h *History) (kbps float64, ok bool) {
	type sample struct {
		recvMicros int64
		size       int
		padded     bool
	}
	var pts []sample
	h.Range(func(p PublishPacket) {
		if p.ReceivedTimePresent {
			pts = append(pts, sample{p.ReceivedTimeMicros, p.PayloadSize + p.PaddingSize, p.PaddingSize > 0})
		}
	})
	sort.Slice(pts, func(i, j int) bool { return pts[i].recvMicros < pts[j].recvMicros })

	bestBytes := 0
	bestSpan := int64(0)
	padded := 0
	for start, end := 0, 0; end < len(pts); end++ {
		if pts[end].padded {
			padded++
		}
		for {
			span := pts[end].recvMicros - pts[start].recvMicros
			count := end - start + 1
			fraction := float64(padded) / float64(count)
			if count >= probeMinPackets && fraction >= probeMinPaddedFraction && span >= probeMinSpanMicros {
				break
			}
			if start == end {
				break
			}
			if pts[start].padded {
				padded--
			}
			start++
		}
		span := pts[end].recvMicros - pts[start].recvMicros
		count := end - start + 1
		fraction := float64(padded) / float64(count)
		if count >= probeMinPackets && fraction >= probeMinPaddedFraction && span >= probeMinSpanMicros && span > bestSpan {
			var bytes int
			for i := start; i <= end; i++ {
				bytes += pts[i].size
			}
			bestBytes = bytes
			bestSpan = span
		}
	}

	if bestSpan == 0 {
		return 0, false
	}
	bitsPerSecond := float64(bestBytes) * 8 * 1_000_000 / float64(bestSpan)
	return bitsPerSecond / 1000, true
}
