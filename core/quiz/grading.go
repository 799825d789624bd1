package quiz

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const numericTolerance = 1e-9

var errNotANumber = errors.New("not a number")

// IsCorrect grades a single answer to q.
func IsCorrect(q Question, answer string) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false
	}

	switch q.Kind {
	case KindChoice:
		return strings.EqualFold(answer, strings.TrimSpace(q.Answer))
	case KindNumeric:
		got, err := parseNumber(answer)
		if err != nil {
			return false
		}
		want, err := parseNumber(q.Answer)
		return err == nil && math.Abs(got-want) <= numericTolerance
	case KindText:
		return normalizeText(answer) == normalizeText(q.Answer)
	}
	return false
}

// Grade grades the attempt answers against the quiz questions.
func Grade(q Quiz, answers map[string]string) (score int, results []QuestionResult) {
	results = make([]QuestionResult, 0, len(q.Questions))
	for _, qn := range q.Questions {
		given := answers[qn.ID]
		res := QuestionResult{QuestionID: qn.ID, Given: given, Expected: qn.Answer}
		if IsCorrect(qn, given) {
			res.Correct = true
			res.Points = qn.Points
			score += qn.Points
		}
		results = append(results, res)
	}
	return score, results
}

// parseNumber parses integers, decimals (with a dot or a comma) & fractions like "3/4".
func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return 0, errNotANumber
	}

	if i := strings.Index(s, "/"); i >= 0 {
		num, err := parseNumber(s[:i])
		if err != nil {
			return 0, err
		}
		den, err := parseNumber(s[i+1:])
		if err != nil || den == 0 {
			return 0, errNotANumber
		}
		return num / den, nil
	}

	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotANumber
	}
	return f, nil
}

// normalizeText lowercases s, strips accents & punctuation and collapses whitespace: " Café-au-lait! " -> "cafe au lait".
func normalizeText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if res, _, err := transform.String(t, s); err == nil {
		s = res
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
