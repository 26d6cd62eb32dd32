package policy

import "github.com/nshruti113/adaptive-ddos-defense/internal/models"

const (
	truePositiveReward   = 30.0
	missedAttackPenalty  = 40.0
	falsePositivePenalty = 50.0
	correctIdleReward    = 5.0
)

// actionCost reflects the collateral disruption of each action.
var actionCost = [ActionSize]float64{0, -5, -10, -15}

var effectiveness = [ActionSize]float64{0, 0.3, 0.7, 0.9}

var disruptiveness = [ActionSize]float64{0, 0.2, 0.6, 1.0}

// Reward scores taking action under the observed metrics. It is a pure
// function. The latency, packet-loss and bandwidth-headroom bonuses only fire
// when the corresponding optional telemetry is present.
func Reward(m models.Metrics, action models.Action) float64 {
	if !action.Valid() {
		action = models.NoAction
	}
	reward := actionCost[action]

	if m.IsAttack {
		if action > models.NoAction {
			reward += truePositiveReward * m.AttackIntensity * effectiveness[action]
		} else {
			reward -= missedAttackPenalty * m.AttackIntensity
		}
	} else {
		if action > models.NoAction {
			reward -= falsePositivePenalty * disruptiveness[action]
		} else {
			reward += correctIdleReward
		}
	}

	if m.Latency != nil && *m.Latency < 100 {
		reward += 2
	}
	if m.PacketLoss != nil && *m.PacketLoss < 1 {
		reward += 2
	}
	if m.BandwidthCapacity != nil && m.BandwidthUsage < *m.BandwidthCapacity*0.9 {
		reward += 1
	}
	return reward
}
