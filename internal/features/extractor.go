// Package features turns a packet window and the latest traffic snapshot
// into the metrics record and normalized feature vector used by the policy.
package features

import (
	"math"
	"sort"
	"time"

	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
)

// Thresholds are the indicator levels at which a metric counts as fully
// attack-like when estimating attack intensity.
type Thresholds struct {
	PacketRate      float64 `yaml:"packet_rate"`
	ConnectionCount float64 `yaml:"connection_count"`
	SynRatio        float64 `yaml:"syn_ratio"`
	SourceEntropy   float64 `yaml:"source_entropy"`
}

// Scales are the divisors that map raw metrics onto [0,1].
type Scales struct {
	PacketRate      float64 `yaml:"packet_rate"`
	Bandwidth       float64 `yaml:"bandwidth"`
	ConnectionCount float64 `yaml:"connection_count"`
	SynRatio        float64 `yaml:"syn_ratio"`
	UDPRatio        float64 `yaml:"udp_ratio"`
	AvgPacketSize   float64 `yaml:"avg_packet_size"`
	SourceEntropy   float64 `yaml:"source_entropy"`
	DstPortEntropy  float64 `yaml:"dst_port_entropy"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		PacketRate:      500,
		ConnectionCount: 200,
		SynRatio:        0.8,
		SourceEntropy:   5.0,
	}
}

func DefaultScales() Scales {
	return Scales{
		PacketRate:      10000,
		Bandwidth:       1000,
		ConnectionCount: 5000,
		SynRatio:        1,
		UDPRatio:        1,
		AvgPacketSize:   1500,
		SourceEntropy:   10,
		DstPortEntropy:  10,
	}
}

// Extractor computes metrics records. It holds no mutable state and is safe
// for concurrent use.
type Extractor struct {
	thresholds Thresholds
	scales     Scales
	now        func() time.Time
}

func NewExtractor(thresholds Thresholds, scales Scales) *Extractor {
	return &Extractor{
		thresholds: thresholds,
		scales:     scales,
		now:        time.Now,
	}
}

// Extract builds the metrics record for one cycle. An empty window yields an
// all-zero record with IsAttack=false regardless of the snapshot.
func (e *Extractor) Extract(packets []models.PacketRecord, snap *models.TrafficSnapshot) models.Metrics {
	m := models.Metrics{Timestamp: e.now()}
	if len(packets) == 0 {
		return m
	}

	sourceIPs := make(map[string]int)
	dstPorts := make(map[int]int)
	protocols := make(map[models.Protocol]int)
	flags := make(map[models.TCPFlag]int)
	var totalSize uint64

	for _, p := range packets {
		sourceIPs[p.SourceIP]++
		dstPorts[p.DestPort]++

		proto := p.Protocol
		switch proto {
		case models.ProtocolTCP, models.ProtocolUDP, models.ProtocolHTTP, models.ProtocolICMP:
		default:
			proto = models.ProtocolOther
		}
		protocols[proto]++

		if proto == models.ProtocolTCP {
			flag := p.Flag
			switch flag {
			case models.FlagSYN, models.FlagACK, models.FlagFIN, models.FlagRST:
			default:
				flag = models.FlagOther
			}
			flags[flag]++
		}

		totalSize += uint64(p.Length)
		if p.IsAttack {
			m.AttackPackets++
		}
	}

	total := len(packets)
	m.TotalPackets = total
	m.UniqueSrcIPs = len(sourceIPs)
	m.UniqueDstPorts = len(dstPorts)
	m.SourceIPEntropy = Entropy(sourceIPs)
	m.DstPortEntropy = Entropy(dstPorts)
	m.AvgPacketSize = float64(totalSize) / float64(total)

	if tcp := protocols[models.ProtocolTCP]; tcp > 0 {
		m.SynRatio = float64(flags[models.FlagSYN]) / float64(tcp)
	}
	m.UDPRatio = float64(protocols[models.ProtocolUDP]) / float64(total)

	if snap != nil {
		m.PacketRate = snap.PacketRate
		m.BandwidthUsage = snap.Bandwidth
		m.ConnectionCount = float64(snap.ConnectionCount)
		m.IsAttack = snap.IsUnderAttack
		m.Latency = copyFloat(snap.Latency)
		m.PacketLoss = copyFloat(snap.PacketLoss)
		m.BandwidthCapacity = copyFloat(snap.BandwidthCapacity)
	}

	m.AttackIntensity = e.intensity(m)
	return m
}

// intensity averages the four indicator ratios and caps the result at 1.
func (e *Extractor) intensity(m models.Metrics) float64 {
	indicators := [4]float64{
		ratio(m.PacketRate, e.thresholds.PacketRate),
		ratio(m.ConnectionCount, e.thresholds.ConnectionCount),
		ratio(m.SynRatio, e.thresholds.SynRatio),
		ratio(m.SourceIPEntropy, e.thresholds.SourceEntropy),
	}
	sum := 0.0
	for _, v := range indicators {
		sum += v
	}
	return math.Min(1.0, sum/float64(len(indicators)))
}

// Normalize maps a metrics record onto the policy's feature vector.
func (e *Extractor) Normalize(m models.Metrics) models.FeatureVector {
	return models.FeatureVector{
		models.FeaturePacketRate:     clamp01(ratio(m.PacketRate, e.scales.PacketRate)),
		models.FeatureBandwidth:      clamp01(ratio(m.BandwidthUsage, e.scales.Bandwidth)),
		models.FeatureConnections:    clamp01(ratio(m.ConnectionCount, e.scales.ConnectionCount)),
		models.FeatureSynRatio:       clamp01(ratio(m.SynRatio, e.scales.SynRatio)),
		models.FeatureUDPRatio:       clamp01(ratio(m.UDPRatio, e.scales.UDPRatio)),
		models.FeatureAvgSize:        clamp01(ratio(m.AvgPacketSize, e.scales.AvgPacketSize)),
		models.FeatureSrcIPEntropy:   clamp01(ratio(m.SourceIPEntropy, e.scales.SourceEntropy)),
		models.FeatureDstPortEntropy: clamp01(ratio(m.DstPortEntropy, e.scales.DstPortEntropy)),
	}
}

// Entropy calculates Shannon entropy (bits) of a frequency table. Counts are
// summed in sorted order so the result does not depend on map iteration.
func Entropy[K comparable](counts map[K]int) float64 {
	values := make([]int, 0, len(counts))
	total := 0
	for _, c := range counts {
		if c > 0 {
			values = append(values, c)
			total += c
		}
	}
	if total == 0 {
		return 0.0
	}
	sort.Ints(values)

	entropy := 0.0
	for _, c := range values {
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	// -0 and tiny negative rounding for a single key
	if entropy < 0 {
		return 0
	}
	return entropy
}

func ratio(v, scale float64) float64 {
	if v <= 0 || scale <= 0 {
		return 0
	}
	return v / scale
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
