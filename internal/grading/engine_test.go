package grading_test

import (
	"math"
	"testing"

	"github.com/studyhall/studyhall-backend/internal/grading"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestGrade_ExactMatchFullCredit(t *testing.T) {
	g := grading.NewDefaultGrader()

	cases := []struct {
		name   string
		q      grading.Q
		chosen []string
	}{
		{"single", grading.Q{Type: "single", CorrectIDs: []string{"a"}}, []string{"a"}},
		{"true_false", grading.Q{Type: "true_false", CorrectIDs: []string{"t"}}, []string{"t"}},
		{"multi", grading.Q{Type: "multi", CorrectIDs: []string{"a", "b", "c"}}, []string{"c", "a", "b"}},
	}
	for _, tc := range cases {
		r := g.Grade(tc.q, tc.chosen)
		if !r.Exact || !almostEqual(r.Credit, 1) {
			t.Fatalf("%s: want exact full credit, got %+v", tc.name, r)
		}
	}
}

func TestGrade_PartialCreditWithPenalty(t *testing.T) {
	g := grading.NewDefaultGrader()
	q := grading.Q{Type: "multi", CorrectIDs: []string{"a", "b"}}

	cases := []struct {
		name   string
		chosen []string
		credit float64
	}{
		{"one of two", []string{"a"}, 0.5},
		{"one right one wrong cancels", []string{"a", "x"}, 0},
		{"all wrong floors at zero", []string{"x", "y", "z"}, 0},
		{"both right plus wrong", []string{"a", "b", "x"}, 0.5},
	}
	for _, tc := range cases {
		r := g.Grade(q, tc.chosen)
		if r.Exact {
			t.Fatalf("%s: unexpected exact match", tc.name)
		}
		if !almostEqual(r.Credit, tc.credit) {
			t.Fatalf("%s: want credit %v, got %v", tc.name, tc.credit, r.Credit)
		}
	}
}

func TestGrade_WrongPickNeverHelps(t *testing.T) {
	g := grading.NewDefaultGrader()
	q := grading.Q{Type: "multi", CorrectIDs: []string{"a", "b", "c"}}

	without := g.Grade(q, []string{"a", "b"})
	with := g.Grade(q, []string{"a", "b", "x"})
	if with.Credit > without.Credit {
		t.Fatalf("adding a wrong pick raised credit: %v > %v", with.Credit, without.Credit)
	}
}

func TestGrade_PartialCreditDisabled(t *testing.T) {
	g := grading.NewDefaultGrader(grading.WithPartialCredit(false))
	q := grading.Q{Type: "multi", CorrectIDs: []string{"a", "b"}}

	if r := g.Grade(q, []string{"a"}); r.Credit != 0 {
		t.Fatalf("want zero credit without partial scoring, got %v", r.Credit)
	}
	if r := g.Grade(q, []string{"a", "b"}); !r.Exact || r.Credit != 1 {
		t.Fatalf("exact match must still score: %+v", r)
	}
}

func TestGrade_UnknownTypeScoresZero(t *testing.T) {
	g := grading.NewDefaultGrader()
	r := g.Grade(grading.Q{Type: "essay", CorrectIDs: []string{"a"}}, []string{"a"})
	if r.Credit != 0 || r.Exact {
		t.Fatalf("unknown type must score zero, got %+v", r)
	}
}

func TestTally(t *testing.T) {
	cases := []struct {
		name    string
		results []grading.Result
		total   int
		points  float64
		percent int
		raw     int
	}{
		{
			name: "two of three exact",
			results: []grading.Result{
				{Credit: 1, Exact: true},
				{Credit: 1, Exact: true},
				{Credit: 0},
			},
			total: 3, points: 2, percent: 67, raw: 2,
		},
		{
			name: "unanswered stays in denominator",
			results: []grading.Result{
				{Credit: 1, Exact: true},
			},
			total: 4, points: 1, percent: 25, raw: 1,
		},
		{
			name: "partial credit rounds to three decimals",
			results: []grading.Result{
				{Credit: 1.0 / 3.0},
				{Credit: 1.0 / 3.0},
			},
			total: 3, points: 0.667, percent: 22, raw: 0,
		},
		{
			name:    "no answers",
			results: nil,
			total:   5, points: 0, percent: 0, raw: 0,
		},
	}
	for _, tc := range cases {
		sum := grading.Tally(tc.results, tc.total)
		if !almostEqual(sum.Points, tc.points) || sum.Percent != tc.percent || sum.RawCorrect != tc.raw || sum.Total != tc.total {
			t.Fatalf("%s: got %+v", tc.name, sum)
		}
	}
}
