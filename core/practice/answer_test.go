package practice

import "testing"

func TestCheck(t *testing.T) {
	sum := Problem{Kind: KindNumber, Answer: "1000"}
	factors := Problem{Kind: KindList, Answer: "1, 2, 3, 6"}
	pf := Problem{Kind: KindList, Answer: "2, 2, 3"}
	prime := Problem{Kind: KindYesNo, Answer: "yes"}
	notPrime := Problem{Kind: KindYesNo, Answer: "no"}

	tests := []struct {
		name   string
		p      Problem
		answer string
		want   bool
	}{
		{name: "number", p: sum, answer: "1000", want: true},
		{name: "number with spaces", p: sum, answer: " 1 000 ", want: true},
		{name: "number with plus sign", p: sum, answer: "+1000", want: true},
		{name: "wrong number", p: sum, answer: "999"},
		{name: "not a number", p: sum, answer: "a thousand"},
		{name: "empty", p: sum, answer: "   "},
		{name: "list", p: factors, answer: "1, 2, 3, 6", want: true},
		{name: "list in any order", p: factors, answer: "6 3 2 1", want: true},
		{name: "list missing a factor", p: factors, answer: "1, 2, 6"},
		{name: "list with extra factor", p: factors, answer: "1, 2, 3, 4, 6"},
		{name: "product", p: pf, answer: "2 × 2 × 3", want: true},
		{name: "product with x", p: pf, answer: "2x2x3", want: true},
		{name: "power", p: pf, answer: "2^2 * 3", want: true},
		{name: "wrong power", p: pf, answer: "2^3 * 3"},
		{name: "garbage in list", p: pf, answer: "2, two, 3"},
		{name: "yes", p: prime, answer: "Yes!", want: true},
		{name: "oui", p: prime, answer: "oui", want: true},
		{name: "no to prime", p: prime, answer: "no"},
		{name: "no", p: notPrime, answer: "N", want: true},
		{name: "maybe", p: notPrime, answer: "maybe"},
		{name: "unknown kind", p: Problem{Kind: "essay", Answer: "42"}, answer: "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Check(tt.p, tt.answer); got != tt.want {
				t.Errorf("Check(%q) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}

func TestSession_Redacted(t *testing.T) {
	s := Session{
		Problems: []Problem{{Answer: "1"}, {Answer: "2"}},
		Answers:  []*Answer{{Given: "1", Correct: true}, nil},
	}

	red := s.Redacted()
	if red.Problems[0].Answer != "1" || red.Problems[1].Answer != "" {
		t.Errorf("Redacted() problems = %+v", red.Problems)
	}
	if s.Problems[1].Answer != "2" {
		t.Error("Redacted() must not alter the session")
	}

	sum := s.Summary()
	if sum.Correct != 1 || sum.Answered != 1 || sum.Total != 2 || sum.Accuracy != 0.5 {
		t.Errorf("Summary() = %+v", sum)
	}
}
