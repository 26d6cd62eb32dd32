// Package simulation generates synthetic traffic, stats and a demo topology
// and feeds them to a running server.
package simulation

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
)

// VictimIP is the destination of every attack packet.
const VictimIP = "10.0.0.1"

var (
	normalProtocols = []models.Protocol{models.ProtocolTCP, models.ProtocolUDP, models.ProtocolHTTP, models.ProtocolICMP}
	normalFlags     = []models.TCPFlag{models.FlagSYN, models.FlagACK, models.FlagFIN, models.FlagRST, models.FlagOther}
	normalPorts     = []int{80, 443, 22, 25, 53, 8080}
)

// Generator produces traffic. It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

func NewGenerator(seed uint64) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		rng: rand.New(rand.NewPCG(seed, seed>>1|1)),
		now: time.Now,
	}
}

// between returns a uniform int in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// NormalPacket simulates regular user traffic from the LAN.
func (g *Generator) NormalPacket() models.PacketRecord {
	p := models.PacketRecord{
		ID:         uuid.NewString(),
		Timestamp:  g.now(),
		SourceIP:   fmt.Sprintf("192.168.1.%d", g.between(1, 20)),
		SourcePort: g.between(1024, 65535),
		DestIP:     fmt.Sprintf("10.0.0.%d", g.between(1, 2)),
		DestPort:   normalPorts[g.rng.IntN(len(normalPorts))],
		Protocol:   normalProtocols[g.rng.IntN(len(normalProtocols))],
		Length:     uint32(g.between(64, 1500)),
	}
	if p.Protocol == models.ProtocolTCP {
		p.Flag = normalFlags[g.rng.IntN(len(normalFlags))]
	}
	return p
}

// AttackPacket simulates a flood packet: mostly TCP SYN, otherwise UDP,
// from an external 77.x.x.x source to the victim.
func (g *Generator) AttackPacket() models.PacketRecord {
	p := models.PacketRecord{
		ID:         uuid.NewString(),
		Timestamp:  g.now(),
		SourceIP:   fmt.Sprintf("77.%d.%d.%d", g.between(1, 255), g.between(1, 255), g.between(1, 255)),
		SourcePort: g.between(1024, 65535),
		DestIP:     VictimIP,
		DestPort:   80,
		Protocol:   models.ProtocolUDP,
		Length:     uint32(g.between(64, 1500)),
		IsAttack:   true,
		AttackType: "DDoS",
	}
	if g.rng.Float64() < 0.8 {
		p.Protocol = models.ProtocolTCP
		p.Flag = models.FlagSYN
	}
	return p
}

// Packets generates count packets. During an attack 70% of them are attack
// packets.
func (g *Generator) Packets(count int, attack bool) []models.PacketRecord {
	out := make([]models.PacketRecord, 0, count)
	for range count {
		if attack && g.rng.Float64() < 0.7 {
			out = append(out, g.AttackPacket())
		} else {
			out = append(out, g.NormalPacket())
		}
	}
	return out
}

// Stats generates an aggregate snapshot consistent with the attack flag.
func (g *Generator) Stats(attack bool) models.TrafficSnapshot {
	snap := models.TrafficSnapshot{
		Timestamp:     g.now(),
		IsUnderAttack: attack,
	}
	var latency float64
	if attack {
		snap.PacketRate = float64(g.between(1500, 5000))
		snap.Bandwidth = g.uniform(50, 200)
		snap.ConnectionCount = g.between(200, 500)
		snap.SuspiciousTrafficPercent = g.uniform(30, 80)
		latency = g.uniform(50, 200)
	} else {
		snap.PacketRate = float64(g.between(100, 500))
		snap.Bandwidth = g.uniform(5, 50)
		snap.ConnectionCount = g.between(10, 100)
		snap.SuspiciousTrafficPercent = g.uniform(0, 10)
		latency = g.uniform(1, 20)
	}
	snap.Latency = &latency
	return snap
}

// NodeSpec is one topology node with the peers it links to.
type NodeSpec struct {
	Node        models.TopologyNode
	Connections []string
}

// DemoTopology returns three fully meshed routers, two servers and fifteen
// hosts spread round-robin over the routers. server1 is the victim and
// host1..host3 are attackers.
func DemoTopology() []NodeSpec {
	specs := make([]NodeSpec, 0, 20)
	for i := 1; i <= 3; i++ {
		var peers []string
		for j := i + 1; j <= 3; j++ {
			peers = append(peers, fmt.Sprintf("router%d", j))
		}
		specs = append(specs, NodeSpec{
			Node:        models.TopologyNode{ID: fmt.Sprintf("router%d", i), IP: fmt.Sprintf("10.0.0.%d", i), Type: models.NodeRouter},
			Connections: peers,
		})
	}
	for i := 1; i <= 2; i++ {
		specs = append(specs, NodeSpec{
			Node: models.TopologyNode{
				ID:       fmt.Sprintf("server%d", i),
				IP:       fmt.Sprintf("10.0.1.%d", i),
				Type:     models.NodeServer,
				IsVictim: i == 1,
			},
			Connections: []string{fmt.Sprintf("router%d", (i-1)%3+1)},
		})
	}
	for i := 1; i <= 15; i++ {
		specs = append(specs, NodeSpec{
			Node: models.TopologyNode{
				ID:         fmt.Sprintf("host%d", i),
				IP:         fmt.Sprintf("192.168.1.%d", i),
				Type:       models.NodeHost,
				IsAttacker: i <= 3,
			},
			Connections: []string{fmt.Sprintf("router%d", (i-1)%3+1)},
		})
	}
	return specs
}

// Schedule alternates quiet and attack phases: each period of Every starts
// with Duration of attack.
type Schedule struct {
	Every    time.Duration
	Duration time.Duration
}

// Active reports whether an attack is running elapsed after the start.
func (s Schedule) Active(elapsed time.Duration) bool {
	if s.Every <= 0 || s.Duration <= 0 || elapsed < 0 {
		return false
	}
	return elapsed%s.Every < s.Duration
}
