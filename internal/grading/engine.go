package grading

import "math"

// Q is the minimal ground-truth view of a question needed for scoring.
type Q struct {
	Type       string // single, multi, true_false
	CorrectIDs []string
}

// Result is the outcome of scoring a single question response.
type Result struct {
	Credit float64 // 0..1
	Exact  bool    // submitted set equals correct set
}

// Strategy scores one question. Chosen option ids are treated as a set;
// order and duplicates carry no meaning.
type Strategy interface {
	Grade(q Q, chosen []string) Result
}

// Grader routes by question type to the right Strategy.
type Grader interface {
	Grade(q Q, chosen []string) Result
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(q Q, chosen []string) Result {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{}
	}
	return s.Grade(q, chosen)
}

type Option func(*config)

type config struct {
	AllowPartial bool // partial credit for multi-answer questions
}

func WithPartialCredit(b bool) Option { return func(c *config) { c.AllowPartial = b } }

// NewDefaultGrader installs the set-based strategy for all objective
// types. True/false is just a 2-option single.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{AllowPartial: true}
	for _, o := range opts {
		o(cfg)
	}
	s := setChoiceStrategy{allowPartial: cfg.AllowPartial}
	return &defaultGrader{
		strategies: map[string]Strategy{
			"single":     s,
			"multi":      s,
			"true_false": s,
		},
	}
}

// setChoiceStrategy awards full credit on an exact set match, otherwise
// |S∩C|/|C| minus 1/|C| per wrong pick, floored at zero.
type setChoiceStrategy struct{ allowPartial bool }

func (s setChoiceStrategy) Grade(q Q, chosen []string) Result {
	correct := toSet(q.CorrectIDs)
	submitted := toSet(chosen)
	if len(correct) == 0 {
		return Result{}
	}
	if setEqual(correct, submitted) {
		return Result{Credit: 1, Exact: true}
	}
	if !s.allowPartial {
		return Result{}
	}
	inter, wrong := 0, 0
	for id := range submitted {
		if _, ok := correct[id]; ok {
			inter++
		} else {
			wrong++
		}
	}
	n := float64(len(correct))
	credit := float64(inter)/n - float64(wrong)/n
	if credit < 0 {
		credit = 0
	}
	return Result{Credit: credit}
}

// Summary aggregates per-question results for one attempt.
type Summary struct {
	Points     float64 // sum of credit, 3 decimal places
	Percent    int     // rounded to nearest integer
	RawCorrect int     // exact-match questions only
	Total      int     // denominator, includes unanswered questions
}

// Tally folds per-question results into an attempt summary. total is the
// number of served questions; unanswered ones simply contribute no
// Result and stay in the denominator.
func Tally(results []Result, total int) Summary {
	sum := Summary{Total: total}
	points := 0.0
	for _, r := range results {
		points += r.Credit
		if r.Exact {
			sum.RawCorrect++
		}
	}
	sum.Points = math.Round(points*1000) / 1000
	if total > 0 {
		sum.Percent = int(math.Round(points / float64(total) * 100))
	}
	return sum
}

func toSet(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, s := range ids {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
