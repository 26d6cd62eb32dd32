package simulation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
)

func TestAttackPackets(t *testing.T) {
	g := NewGenerator(42)
	for range 200 {
		p := g.AttackPacket()
		assert.True(t, p.IsAttack)
		assert.True(t, strings.HasPrefix(p.SourceIP, "77."))
		assert.Equal(t, VictimIP, p.DestIP)
		assert.Equal(t, 80, p.DestPort)
		if p.Protocol == models.ProtocolTCP {
			assert.Equal(t, models.FlagSYN, p.Flag)
		} else {
			assert.Equal(t, models.ProtocolUDP, p.Protocol)
			assert.Empty(t, p.Flag)
		}
		assert.NotEmpty(t, p.ID)
	}
}

func TestNormalPackets(t *testing.T) {
	g := NewGenerator(7)
	for _, p := range g.Packets(300, false) {
		assert.False(t, p.IsAttack)
		assert.True(t, strings.HasPrefix(p.SourceIP, "192.168.1."))
		assert.GreaterOrEqual(t, p.Length, uint32(64))
		assert.LessOrEqual(t, p.Length, uint32(1500))
		if p.Protocol != models.ProtocolTCP {
			assert.Empty(t, p.Flag)
		}
	}
}

func TestAttackMix(t *testing.T) {
	g := NewGenerator(1)
	packets := g.Packets(2000, true)
	attacks := 0
	for _, p := range packets {
		if p.IsAttack {
			attacks++
		}
	}
	assert.InDelta(t, 0.7, float64(attacks)/float64(len(packets)), 0.05)
}

func TestStatsRanges(t *testing.T) {
	g := NewGenerator(3)
	for range 50 {
		s := g.Stats(true)
		assert.True(t, s.IsUnderAttack)
		assert.GreaterOrEqual(t, s.ConnectionCount, 200)
		assert.GreaterOrEqual(t, s.PacketRate, 1500.0)
		require.NotNil(t, s.Latency)
		assert.GreaterOrEqual(t, *s.Latency, 50.0)

		s = g.Stats(false)
		assert.False(t, s.IsUnderAttack)
		assert.LessOrEqual(t, s.ConnectionCount, 100)
		assert.LessOrEqual(t, s.PacketRate, 500.0)
		assert.Nil(t, s.PacketLoss)
	}
}

func TestSeededGeneratorsAgree(t *testing.T) {
	a, b := NewGenerator(99), NewGenerator(99)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }
	b.now = func() time.Time { return fixed }

	pa, pb := a.Packets(20, true), b.Packets(20, true)
	for i := range pa {
		pa[i].ID, pb[i].ID = "", ""
	}
	assert.Equal(t, pa, pb)
}

func TestDemoTopology(t *testing.T) {
	specs := DemoTopology()
	require.Len(t, specs, 20)

	counts := map[models.NodeType]int{}
	var attackers, victims []string
	links := 0
	for _, s := range specs {
		counts[s.Node.Type]++
		if s.Node.IsAttacker {
			attackers = append(attackers, s.Node.ID)
		}
		if s.Node.IsVictim {
			victims = append(victims, s.Node.ID)
		}
		links += len(s.Connections)
	}
	assert.Equal(t, 3, counts[models.NodeRouter])
	assert.Equal(t, 2, counts[models.NodeServer])
	assert.Equal(t, 15, counts[models.NodeHost])
	assert.Equal(t, []string{"host1", "host2", "host3"}, attackers)
	assert.Equal(t, []string{"server1"}, victims)
	assert.Equal(t, 3+2+15, links)
}

func TestSchedule(t *testing.T) {
	s := Schedule{Every: 10 * time.Second, Duration: 3 * time.Second}
	assert.True(t, s.Active(0))
	assert.True(t, s.Active(2*time.Second))
	assert.False(t, s.Active(3*time.Second))
	assert.True(t, s.Active(11*time.Second))
	assert.False(t, Schedule{}.Active(time.Second))
}
