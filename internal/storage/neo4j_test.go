package storage

import (
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"

	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
)

func TestNodeRecordConversion(t *testing.T) {
	rec := &neo4j.Record{
		Keys:   []string{"id", "ip", "type", "is_attacker", "is_victim"},
		Values: []any{"server1", "10.0.0.1", "server", false, true},
	}
	node := nodeFromValues(recordValues(rec))
	assert.Equal(t, models.TopologyNode{ID: "server1", IP: "10.0.0.1", Type: models.NodeServer, IsVictim: true}, node)

	// placeholder nodes created by links carry no ip
	rec = &neo4j.Record{
		Keys:   []string{"id", "ip", "type", "is_attacker", "is_victim"},
		Values: []any{"host9", nil, "host", false, false},
	}
	assert.Equal(t, "", nodeFromValues(recordValues(rec)).IP)
}

func TestEdgeRecordConversion(t *testing.T) {
	rec := &neo4j.Record{
		Keys:   []string{"source", "target", "is_attack_path"},
		Values: []any{"host1", "router1", true},
	}
	assert.Equal(t, models.TopologyEdge{Source: "host1", Target: "router1", IsAttackPath: true}, edgeFromValues(recordValues(rec)))
}

func TestNodeParams(t *testing.T) {
	p := nodeParams(models.TopologyNode{ID: "host1", IP: "192.168.1.10", Type: models.NodeHost, IsAttacker: true})
	assert.Equal(t, "host", p["type"])
	assert.Equal(t, true, p["is_attacker"])
	assert.Equal(t, "192.168.1.10", p["ip"])
}
