package models

import "fmt"

// Action is a defensive action index chosen by the policy. Actions are
// advisory; enforcement belongs to an external component.
type Action int

const (
	NoAction Action = iota
	RateLimit
	BlockSuspiciousIPs
	ChallengeResponse

	ActionCount = 4
)

var actionNames = [ActionCount]string{
	"no_action",
	"rate_limit",
	"block_suspicious_ips",
	"activate_challenge",
}

var actionDescriptions = [ActionCount]string{
	"No defense action taken",
	"Applied rate limiting to incoming traffic",
	"Blocked suspicious IP addresses",
	"Activated challenge-response mechanism",
}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	return a >= 0 && int(a) < ActionCount
}

func (a Action) String() string {
	if !a.Valid() {
		return fmt.Sprintf("Unknown action: %d", int(a))
	}
	return actionNames[a]
}

// Describe returns the advisory message handed to enforcement.
func (a Action) Describe() string {
	if !a.Valid() {
		return fmt.Sprintf("Unknown action: %d", int(a))
	}
	return actionDescriptions[a]
}
