package api

import (
	"sort"

	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
)

const topSourceCount = 10

type IPCount struct {
	IP         string  `json:"ip"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// TrafficSummary aggregates a packet window for the dashboard.
type TrafficSummary struct {
	TotalPackets  int                     `json:"total_packets"`
	AttackPackets int                     `json:"attack_packets"`
	AttackPercent float64                 `json:"attack_percent"`
	UniqueSources int                     `json:"unique_sources"`
	TotalBytes    uint64                  `json:"total_bytes"`
	Protocols     map[models.Protocol]int `json:"protocols"`
	TopSources    []IPCount               `json:"top_sources"`
}

func Summarize(packets []models.PacketRecord) TrafficSummary {
	sum := TrafficSummary{
		TotalPackets: len(packets),
		Protocols:    make(map[models.Protocol]int),
		TopSources:   []IPCount{},
	}
	sources := make(map[string]int)
	for _, p := range packets {
		sources[p.SourceIP]++
		sum.Protocols[p.Protocol]++
		sum.TotalBytes += uint64(p.Length)
		if p.IsAttack {
			sum.AttackPackets++
		}
	}
	sum.UniqueSources = len(sources)
	if len(packets) == 0 {
		return sum
	}
	sum.AttackPercent = float64(sum.AttackPackets) / float64(len(packets)) * 100

	for ip, n := range sources {
		sum.TopSources = append(sum.TopSources, IPCount{
			IP:         ip,
			Count:      n,
			Percentage: float64(n) / float64(len(packets)) * 100,
		})
	}
	sort.Slice(sum.TopSources, func(i, j int) bool {
		if sum.TopSources[i].Count != sum.TopSources[j].Count {
			return sum.TopSources[i].Count > sum.TopSources[j].Count
		}
		return sum.TopSources[i].IP < sum.TopSources[j].IP
	})
	if len(sum.TopSources) > topSourceCount {
		sum.TopSources = sum.TopSources[:topSourceCount]
	}
	return sum
}
