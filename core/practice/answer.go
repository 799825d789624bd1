package practice

import (
	"strconv"
	"strings"
)

var (
	listSeparators = strings.NewReplacer("×", " ", "x", " ", "*", " ", ",", " ", ";", " ", "·", " ")

	yesWords = []string{"yes", "y", "true", "oui", "o"}
	noWords  = []string{"no", "n", "false", "non"}
)

// NormalizeAnswer trims and lowercases a raw answer.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.Join(strings.Fields(answer), " "))
}

// Check reports whether answer is a correct answer to p.
func Check(p Problem, answer string) bool {
	answer = NormalizeAnswer(answer)
	if answer == "" {
		return false
	}

	switch p.Kind {
	case KindNumber:
		got, err := strconv.Atoi(strings.TrimPrefix(strings.ReplaceAll(answer, " ", ""), "+"))
		if err != nil {
			return false
		}
		want, err := strconv.Atoi(p.Answer)
		return err == nil && got == want
	case KindList:
		got, ok := parseIntList(answer)
		if !ok {
			return false
		}
		want, _ := parseIntList(p.Answer)
		return equalInts(sortedCopy(got), sortedCopy(want))
	case KindYesNo:
		yes, ok := parseYesNo(answer)
		return ok && (yes == (p.Answer == "yes"))
	}
	return false
}

// parseIntList parses "2, 2, 3", "2 x 2 x 3", "2^2 × 3" or "2;2;3" into [2 2 3].
func parseIntList(s string) ([]int, bool) {
	fields := strings.Fields(listSeparators.Replace(s))
	if len(fields) == 0 {
		return nil, false
	}

	var nums []int
	for _, f := range fields {
		base, exp := f, "1"
		if i := strings.Index(f, "^"); i >= 0 {
			base, exp = f[:i], f[i+1:]
		}
		n, err := strconv.Atoi(base)
		if err != nil {
			return nil, false
		}
		e, err := strconv.Atoi(exp)
		if err != nil || e < 1 || e > 32 {
			return nil, false
		}
		for ; e > 0; e-- {
			nums = append(nums, n)
		}
	}
	return nums, true
}

func parseYesNo(s string) (yes bool, ok bool) {
	s = strings.Trim(s, ".! ")
	for _, w := range yesWords {
		if s == w {
			return true, true
		}
	}
	for _, w := range noWords {
		if s == w {
			return false, true
		}
	}
	return false, false
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
