package problem

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"freefall-server/internal/domain"
)

// Config bounds the generated numbers. Every answer, correct or decoy, lies in [Min, Max].
type Config struct {
	Min                 int
	Max                 int
	DecoyCount          int
	DecoyRadius         int
	DecoyAttempts       int
	DivisionMaxAnswer   int
	DivisionMaxDivisor  int
	DivisionMaxDividend int
	DivisionAttempts    int
	Operators           []domain.Operator
}

// DefaultConfig matches the sixteen answer targets of the game world.
func DefaultConfig() Config {
	return Config{
		Min:                 0,
		Max:                 15,
		DecoyCount:          3,
		DecoyRadius:         4,
		DecoyAttempts:       40,
		DivisionMaxAnswer:   10,
		DivisionMaxDivisor:  10,
		DivisionMaxDividend: 100,
		DivisionAttempts:    50,
		Operators:           domain.Operators,
	}
}

// Generator builds arithmetic problems. It is safe for concurrent use.
type Generator struct {
	cfg Config

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator validates cfg. A nil rnd is seeded from the wall clock.
func NewGenerator(cfg Config, rnd *rand.Rand) (*Generator, error) {
	if cfg.Min < 0 || cfg.Max <= cfg.Min {
		return nil, fmt.Errorf("invalid display range [%d, %d]", cfg.Min, cfg.Max)
	}
	if cfg.DecoyCount < 0 || cfg.Max-cfg.Min < cfg.DecoyCount {
		return nil, fmt.Errorf("display range [%d, %d] cannot hold %d decoys", cfg.Min, cfg.Max, cfg.DecoyCount)
	}
	if cfg.DecoyRadius < 1 {
		cfg.DecoyRadius = 1
	}
	if cfg.DecoyAttempts < 1 {
		cfg.DecoyAttempts = 1
	}
	if cfg.DivisionAttempts < 1 {
		cfg.DivisionAttempts = 1
	}
	if cfg.DivisionMaxAnswer < 1 {
		cfg.DivisionMaxAnswer = 1
	}
	if cfg.DivisionMaxDivisor < 1 {
		cfg.DivisionMaxDivisor = 1
	}
	if cfg.DivisionMaxDividend < 1 {
		cfg.DivisionMaxDividend = cfg.Max
	}
	if len(cfg.Operators) == 0 {
		cfg.Operators = domain.Operators
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{cfg: cfg, rnd: rnd}, nil
}

// Config returns the effective configuration.
func (g *Generator) Config() Config { return g.cfg }

// Generate builds a problem for op, or for a random configured operator when op is empty.
func (g *Generator) Generate(op domain.Operator) (domain.Problem, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if op == "" {
		op = g.cfg.Operators[g.rnd.Intn(len(g.cfg.Operators))]
	}

	var p domain.Problem
	switch op {
	case domain.OpAdd:
		p = g.addition()
	case domain.OpSubtract:
		p = g.subtraction()
	case domain.OpMultiply:
		p = g.multiplication()
	case domain.OpDivide:
		p = g.division()
	default:
		return domain.Problem{}, fmt.Errorf("%w: unsupported operator %q", domain.ErrGenerationFailed, op)
	}

	decoys, err := g.decoys(p.CorrectAnswer)
	if err != nil {
		return domain.Problem{}, err
	}
	p.DecoyAnswers = decoys
	return p, nil
}

// Decoys returns DecoyCount distinct values in range, none equal to correct.
func (g *Generator) Decoys(correct int) ([]int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decoys(correct)
}

// Shuffle returns a random permutation of values; lanes for answer targets come from it.
func (g *Generator) Shuffle(values []int) []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := append([]int(nil), values...)
	g.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Intn exposes the generator's random source for callers that must share its seed.
func (g *Generator) Intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Intn(n)
}

func (g *Generator) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.rnd.Intn(hi-lo+1)
}

func (g *Generator) addition() domain.Problem {
	a := g.between(g.cfg.Min, g.cfg.Max)
	b := g.between(0, g.cfg.Max-a)
	return domain.Problem{Operand1: a, Operand2: b, Operator: domain.OpAdd, CorrectAnswer: a + b}
}

func (g *Generator) subtraction() domain.Problem {
	a := g.between(g.cfg.Min, g.cfg.Max)
	b := g.between(0, a-g.cfg.Min)
	return domain.Problem{Operand1: a, Operand2: b, Operator: domain.OpSubtract, CorrectAnswer: a - b}
}

func (g *Generator) multiplication() domain.Problem {
	a := g.between(g.cfg.Min, g.cfg.Max)
	var b int
	if a == 0 {
		b = g.between(g.cfg.Min, g.cfg.Max)
	} else {
		b = g.between(0, g.cfg.Max/a)
	}
	// A product below the range floor can only come from a zero factor.
	if a*b < g.cfg.Min {
		b = g.between((g.cfg.Min+a-1)/a, g.cfg.Max/a)
	}
	return domain.Problem{Operand1: a, Operand2: b, Operator: domain.OpMultiply, CorrectAnswer: a * b}
}

func (g *Generator) division() domain.Problem {
	maxAnswer := min(g.cfg.DivisionMaxAnswer, g.cfg.Max)
	minAnswer := max(g.cfg.Min, 0)
	for i := 0; i < g.cfg.DivisionAttempts; i++ {
		answer := g.between(minAnswer, maxAnswer)
		divisor := g.between(1, g.cfg.DivisionMaxDivisor)
		dividend := answer * divisor
		if dividend <= g.cfg.DivisionMaxDividend {
			return domain.Problem{Operand1: dividend, Operand2: divisor, Operator: domain.OpDivide, CorrectAnswer: answer}
		}
	}
	// Dividing by one always satisfies the bound when the answer itself does.
	answer := g.between(minAnswer, min(maxAnswer, g.cfg.DivisionMaxDividend))
	return domain.Problem{Operand1: answer, Operand2: 1, Operator: domain.OpDivide, CorrectAnswer: answer}
}

func (g *Generator) inRange(v int) bool {
	return v >= g.cfg.Min && v <= g.cfg.Max
}

func (g *Generator) decoys(correct int) ([]int, error) {
	want := g.cfg.DecoyCount
	out := make([]int, 0, want)
	seen := map[int]struct{}{correct: {}}
	add := func(v int) {
		if len(out) >= want || !g.inRange(v) {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	// Nearby values make the round harder to guess.
	for i := 0; i < g.cfg.DecoyAttempts && len(out) < want; i++ {
		add(correct + g.between(-g.cfg.DecoyRadius, g.cfg.DecoyRadius))
	}

	// Walk outward within twice the radius.
	for step := 1; step <= 2*g.cfg.DecoyRadius && len(out) < want; step++ {
		add(correct + step)
		add(correct - step)
	}

	// Anything left in range.
	if len(out) < want {
		pool := make([]int, 0, g.cfg.Max-g.cfg.Min+1)
		for v := g.cfg.Min; v <= g.cfg.Max; v++ {
			pool = append(pool, v)
		}
		g.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		for _, v := range pool {
			add(v)
		}
	}

	if len(out) < want {
		return nil, fmt.Errorf("%w: found %d of %d decoys for %d", domain.ErrGenerationFailed, len(out), want, correct)
	}
	return out, nil
}
