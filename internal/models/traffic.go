package models

import "time"

// Protocol is the transport/application protocol of an observed packet.
type Protocol string

const (
	ProtocolTCP   Protocol = "TCP"
	ProtocolUDP   Protocol = "UDP"
	ProtocolHTTP  Protocol = "HTTP"
	ProtocolICMP  Protocol = "ICMP"
	ProtocolOther Protocol = "Other"
)

// TCPFlag is the dominant TCP control flag of a packet. Empty for non-TCP traffic.
type TCPFlag string

const (
	FlagSYN   TCPFlag = "SYN"
	FlagACK   TCPFlag = "ACK"
	FlagFIN   TCPFlag = "FIN"
	FlagRST   TCPFlag = "RST"
	FlagOther TCPFlag = "Other"
	FlagNone  TCPFlag = ""
)

// PacketRecord represents a single observed packet
type PacketRecord struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	SourceIP   string    `json:"source_ip"`
	SourcePort int       `json:"source_port"`
	DestIP     string    `json:"destination_ip"`
	DestPort   int       `json:"destination_port"`
	Protocol   Protocol  `json:"protocol"`
	Flag       TCPFlag   `json:"flags,omitempty"`
	Length     uint32    `json:"length"`
	IsAttack   bool      `json:"is_attack"`
	AttackType string    `json:"attack_type,omitempty"`
}

// TrafficSnapshot holds aggregate counters for the most recent interval.
// Latency, PacketLoss and BandwidthCapacity are optional telemetry
// enrichment and stay nil unless a collaborator reports them.
type TrafficSnapshot struct {
	Timestamp                time.Time `json:"timestamp"`
	PacketRate               float64   `json:"total_packets"`
	Bandwidth                float64   `json:"total_bandwidth"` // Mbps
	ConnectionCount          int       `json:"connection_count"`
	SuspiciousTrafficPercent float64   `json:"suspicious_traffic_percent"`
	IsUnderAttack            bool      `json:"is_under_attack"`
	Latency                  *float64  `json:"average_latency,omitempty"` // ms
	PacketLoss               *float64  `json:"packet_loss,omitempty"`     // percent
	BandwidthCapacity        *float64  `json:"bandwidth_capacity,omitempty"`
}

// Metrics represents the per-cycle feature record derived from a packet window
type Metrics struct {
	Timestamp       time.Time `json:"timestamp"`
	PacketRate      float64   `json:"packet_rate"`
	BandwidthUsage  float64   `json:"bandwidth_usage"`
	ConnectionCount float64   `json:"connection_count"`
	SynRatio        float64   `json:"syn_ratio"`
	UDPRatio        float64   `json:"udp_ratio"`
	AvgPacketSize   float64   `json:"avg_packet_size"`
	SourceIPEntropy float64   `json:"source_ip_entropy"`
	DstPortEntropy  float64   `json:"dst_port_entropy"`
	IsAttack        bool      `json:"is_attack"`
	AttackIntensity float64   `json:"attack_intensity"`
	AttackPackets   int       `json:"attack_packets"`
	TotalPackets    int       `json:"total_packets"`
	UniqueSrcIPs    int       `json:"unique_src_ips"`
	UniqueDstPorts  int       `json:"unique_dst_ports"`

	Latency           *float64 `json:"latency,omitempty"`
	PacketLoss        *float64 `json:"packet_loss,omitempty"`
	BandwidthCapacity *float64 `json:"bandwidth_capacity,omitempty"`
}

// Feature vector slots, in fixed order.
const (
	FeaturePacketRate = iota
	FeatureBandwidth
	FeatureConnections
	FeatureSynRatio
	FeatureUDPRatio
	FeatureAvgSize
	FeatureSrcIPEntropy
	FeatureDstPortEntropy

	FeatureCount
)

// FeatureVector is the normalized policy input; every slot lies in [0,1].
type FeatureVector [FeatureCount]float64

// Alert represents a security alert
type Alert struct {
	ID           string    `json:"id"`
	Level        string    `json:"level"` // INFO, WARNING, CRITICAL
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	AttackType   string    `json:"attack_type,omitempty"`
	EventID      int64     `json:"event_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Acknowledged bool      `json:"acknowledged"`
}
