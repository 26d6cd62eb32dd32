// Package policy implements the linear value-approximation defense agent:
// epsilon-greedy action selection, experience replay and a lagging target
// model used for bootstrap targets.
package policy

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nshruti113/adaptive-ddos-defense/internal/models"
	"github.com/nshruti113/adaptive-ddos-defense/internal/ring"
)

const (
	StateSize  = models.FeatureCount
	ActionSize = models.ActionCount

	historySize = 100
)

// ErrInvalidConfig is returned by NewAgent for unusable hyperparameters.
var ErrInvalidConfig = errors.New("invalid policy config")

// Config holds the agent hyperparameters.
type Config struct {
	Gamma        float64 `yaml:"gamma"`
	LearningRate float64 `yaml:"learning_rate"`
	Epsilon      float64 `yaml:"epsilon"`
	EpsilonMin   float64 `yaml:"epsilon_min"`
	EpsilonDecay float64 `yaml:"epsilon_decay"`
	BatchSize    int     `yaml:"batch_size"`
	MemorySize   int     `yaml:"memory_size"`
	Seed         uint64  `yaml:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Gamma:        0.95,
		LearningRate: 0.001,
		Epsilon:      1.0,
		EpsilonMin:   0.01,
		EpsilonDecay: 0.995,
		BatchSize:    32,
		MemorySize:   2000,
	}
}

// Validate reports the first unusable hyperparameter.
func (c Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	case c.MemorySize < c.BatchSize:
		return fmt.Errorf("%w: memory_size %d smaller than batch_size %d", ErrInvalidConfig, c.MemorySize, c.BatchSize)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning_rate must be positive", ErrInvalidConfig)
	case c.Gamma < 0 || c.Gamma > 1:
		return fmt.Errorf("%w: gamma must be within [0,1]", ErrInvalidConfig)
	case c.Epsilon < 0 || c.Epsilon > 1:
		return fmt.Errorf("%w: epsilon must be within [0,1]", ErrInvalidConfig)
	case c.EpsilonMin < 0 || c.EpsilonMin > c.Epsilon:
		return fmt.Errorf("%w: epsilon_min must be within [0,epsilon]", ErrInvalidConfig)
	case c.EpsilonDecay <= 0 || c.EpsilonDecay > 1:
		return fmt.Errorf("%w: epsilon_decay must be within (0,1]", ErrInvalidConfig)
	}
	return nil
}

// QValues holds one predicted value per action.
type QValues [ActionSize]float64

// Parameters is a linear model Q(s) = s·W + b.
type Parameters struct {
	Weights [StateSize][ActionSize]float64 `json:"weights"`
	Bias    [ActionSize]float64            `json:"bias"`
}

func (p *Parameters) predict(s models.FeatureVector) QValues {
	var q QValues
	for a := 0; a < ActionSize; a++ {
		v := 0.0
		for i := 0; i < StateSize; i++ {
			v += s[i] * p.Weights[i][a]
		}
		q[a] = v + p.Bias[a]
	}
	return q
}

// Transition is one stored experience.
type Transition struct {
	State     models.FeatureVector `json:"state"`
	Action    models.Action        `json:"action"`
	Reward    float64              `json:"reward"`
	NextState models.FeatureVector `json:"next_state"`
	Done      bool                 `json:"done"`
}

// Stats is a point-in-time view of training progress.
type Stats struct {
	Epsilon       float64    `json:"epsilon"`
	MemorySize    int        `json:"memory_size"`
	TrainSteps    int        `json:"train_steps"`
	LastTraining  *time.Time `json:"last_training"`
	AverageLoss   *float64   `json:"average_loss"`
	AverageReward *float64   `json:"average_reward"`
}

// Agent is the defense policy. All methods are safe for concurrent use; the
// detection loop is expected to be the only caller that mutates it.
type Agent struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu           sync.RWMutex
	rng          *rand.Rand
	live         Parameters
	target       Parameters
	epsilon      float64
	memory       *ring.Ring[Transition]
	losses       *ring.Ring[float64]
	rewards      *ring.Ring[float64]
	trainSteps   int
	lastTraining time.Time
}

// Option customizes an Agent.
type Option func(*Agent)

// WithRand injects the randomness source used for initialization,
// exploration and minibatch sampling.
func WithRand(rng *rand.Rand) Option {
	return func(a *Agent) { a.rng = rng }
}

// WithClock overrides the clock used to stamp training time.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// NewAgent creates an agent with small random weights, zero bias and a target
// model equal to the live one.
func NewAgent(cfg Config, logger *zap.Logger, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		cfg:     cfg,
		logger:  logger.Named("defense-agent"),
		now:     time.Now,
		epsilon: cfg.Epsilon,
		memory:  ring.New[Transition](cfg.MemorySize),
		losses:  ring.New[float64](historySize),
		rewards: ring.New[float64](historySize),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		a.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}

	for i := 0; i < StateSize; i++ {
		for j := 0; j < ActionSize; j++ {
			a.live.Weights[i][j] = a.rng.NormFloat64() * 0.1
		}
	}
	a.target = a.live

	a.logger.Info("defense agent initialized",
		zap.Int("state_size", StateSize),
		zap.Int("action_size", ActionSize),
		zap.Float64("epsilon", a.epsilon),
	)
	return a, nil
}

// Predict returns the live model's action values for s.
func (a *Agent) Predict(s models.FeatureVector) QValues {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live.predict(s)
}

// PredictBatch returns one row per state; each row equals Predict on that state.
func (a *Agent) PredictBatch(states []models.FeatureVector) []QValues {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]QValues, len(states))
	for i, s := range states {
		out[i] = a.live.predict(s)
	}
	return out
}

// TargetPredict returns the target model's action values for s.
func (a *Agent) TargetPredict(s models.FeatureVector) QValues {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.target.predict(s)
}

// Act picks a uniformly random action with probability epsilon, otherwise
// the greedy action under the live model.
func (a *Agent) Act(s models.FeatureVector) models.Action {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rng.Float64() < a.epsilon {
		return models.Action(a.rng.IntN(ActionSize))
	}
	return models.Action(argmax(a.live.predict(s)))
}

// Remember appends a transition, evicting the oldest once the buffer is full.
func (a *Agent) Remember(t Transition) error {
	if !t.Action.Valid() {
		return fmt.Errorf("remember: %s", t.Action)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.memory.Add(t)
	return nil
}

// RecordReward adds r to the rolling reward window.
func (a *Agent) RecordReward(r float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rewards.Add(r)
}

// Replay trains the live model on one minibatch. It returns trained=false
// without touching any state when fewer than BatchSize transitions are stored.
// The target model is never modified here.
func (a *Agent) Replay() (loss float64, trained bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.memory.Len()
	batch := a.cfg.BatchSize
	if n < batch {
		return 0, false
	}

	var gradW [StateSize][ActionSize]float64
	var gradB [ActionSize]float64
	total := 0.0

	for _, idx := range a.sample(n, batch) {
		t := a.memory.At(idx)
		current := a.live.predict(t.State)
		target := current
		if t.Done {
			target[t.Action] = t.Reward
		} else {
			next := a.target.predict(t.NextState)
			target[t.Action] = t.Reward + a.cfg.Gamma*next[argmax(next)]
		}

		sq := 0.0
		for j := 0; j < ActionSize; j++ {
			e := target[j] - current[j]
			sq += e * e
			gradB[j] += -2 * e / float64(batch)
			for i := 0; i < StateSize; i++ {
				gradW[i][j] += -2 * t.State[i] * e / float64(batch)
			}
		}
		total += sq / ActionSize
	}

	for i := 0; i < StateSize; i++ {
		for j := 0; j < ActionSize; j++ {
			a.live.Weights[i][j] -= a.cfg.LearningRate * gradW[i][j]
		}
	}
	for j := 0; j < ActionSize; j++ {
		a.live.Bias[j] -= a.cfg.LearningRate * gradB[j]
	}

	loss = total / float64(batch)
	a.losses.Add(loss)
	if a.epsilon > a.cfg.EpsilonMin {
		a.epsilon *= a.cfg.EpsilonDecay
		if a.epsilon < a.cfg.EpsilonMin {
			a.epsilon = a.cfg.EpsilonMin
		}
	}
	a.trainSteps++
	a.lastTraining = a.now()
	return loss, true
}

// sample draws k distinct indices from [0,n) with a partial Fisher-Yates shuffle.
func (a *Agent) sample(n, k int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + a.rng.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}

// UpdateTargetModel copies the live parameters into the target model.
func (a *Agent) UpdateTargetModel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.target = a.live
	a.logger.Debug("target model updated")
}

// Epsilon returns the current exploration rate.
func (a *Agent) Epsilon() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.epsilon
}

// SetEpsilon forces the exploration rate, clamped to [0,1].
func (a *Agent) SetEpsilon(eps float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.epsilon = min(1, max(0, eps))
}

// Parameters returns a copy of the live model.
func (a *Agent) Parameters() Parameters {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live
}

// TargetParameters returns a copy of the target model.
func (a *Agent) TargetParameters() Parameters {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.target
}

// MemorySize returns the number of buffered transitions.
func (a *Agent) MemorySize() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.memory.Len()
}

func (a *Agent) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := Stats{
		Epsilon:    a.epsilon,
		MemorySize: a.memory.Len(),
		TrainSteps: a.trainSteps,
	}
	if !a.lastTraining.IsZero() {
		t := a.lastTraining
		s.LastTraining = &t
	}
	if v, ok := ring.Mean(a.losses); ok {
		s.AverageLoss = &v
	}
	if v, ok := ring.Mean(a.rewards); ok {
		s.AverageReward = &v
	}
	return s
}

// Summary describes the model shape.
func (a *Agent) Summary() string {
	return fmt.Sprintf("Linear Q model\nState size: %d\nAction size: %d", StateSize, ActionSize)
}

// argmax returns the first index holding the maximum value.
func argmax(q QValues) int {
	best := 0
	for i := 1; i < len(q); i++ {
		if q[i] > q[best] {
			best = i
		}
	}
	return best
}
