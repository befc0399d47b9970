package engine

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/sirupsen/logrus"

	"wingo-engine/models"
)

const (
	historyWindow = 10

	singleColorWeight = 12.0
	violetWeight      = 8.0

	repeatDigitRun    = 3
	repeatDigitFactor = 0.3
	colorStreakRun    = 4
	colorStreakFactor = 0.6
	minWeight         = 1.0
)

// HistorySource returns recent resolved periods of a mode, newest first.
type HistorySource interface {
	RecentHistory(ctx context.Context, mode string, limit int) ([]models.HistoryRecord, error)
}

// OutcomeGenerator draws a digit from a weighted distribution that damps
// runs of the same digit and of the same colour family. It is a payout
// smoothing heuristic, not a fairness guarantee.
type OutcomeGenerator struct {
	history HistorySource
	log     logrus.FieldLogger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewOutcomeGenerator(history HistorySource, rng *rand.Rand, log logrus.FieldLogger) *OutcomeGenerator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &OutcomeGenerator{history: history, rng: rng, log: log}
}

// Generate never fails: without history it falls back to a uniform draw.
func (g *OutcomeGenerator) Generate(ctx context.Context, mode string) models.Outcome {
	var weights [10]float64

	recent, err := g.history.RecentHistory(ctx, mode, historyWindow)
	if err != nil {
		g.log.WithField("mode", mode).WithError(err).Warn("round history unavailable, drawing uniformly")
		for d := range weights {
			weights[d] = 1
		}
	} else {
		digits := make([]int, 0, len(recent))
		for _, rec := range recent {
			digits = append(digits, rec.Outcome.Digit)
		}
		weights = digitWeights(digits)
	}

	return models.OutcomeForDigit(g.draw(weights))
}

func (g *OutcomeGenerator) draw(weights [10]float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}

	g.mu.Lock()
	x := g.rng.Float64() * total
	g.mu.Unlock()

	for d, w := range weights {
		x -= w
		if x < 0 {
			return d
		}
	}
	return len(weights) - 1
}

// digitWeights returns the draw weights given recent digits, newest first.
func digitWeights(recent []int) [10]float64 {
	var weights [10]float64
	for d := range weights {
		if d == 0 || d == 5 {
			weights[d] = violetWeight
		} else {
			weights[d] = singleColorWeight
		}
	}

	if d, ok := repeatedDigit(recent); ok {
		weights[d] = damp(weights[d], repeatDigitFactor)
	}

	if family, ok := colorStreak(recent); ok {
		for d := range weights {
			if f, single := models.Family(d); single && f == family {
				weights[d] = damp(weights[d], colorStreakFactor)
			}
		}
	}
	return weights
}

func repeatedDigit(recent []int) (int, bool) {
	if len(recent) < repeatDigitRun {
		return 0, false
	}
	for _, d := range recent[1:repeatDigitRun] {
		if d != recent[0] {
			return 0, false
		}
	}
	return recent[0], true
}

// colorStreak looks at the latest non-violet digits only.
func colorStreak(recent []int) (models.Color, bool) {
	var families []models.Color
	for _, d := range recent {
		if f, ok := models.Family(d); ok {
			families = append(families, f)
		}
		if len(families) == colorStreakRun {
			break
		}
	}
	if len(families) < colorStreakRun {
		return "", false
	}
	for _, f := range families[1:] {
		if f != families[0] {
			return "", false
		}
	}
	return families[0], true
}

func damp(w, factor float64) float64 {
	return math.Max(minWeight, w*factor)
}
