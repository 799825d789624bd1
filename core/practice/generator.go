package practice

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core/lesson"
)

// Answer kinds
const (
	KindNumber = "number"
	KindList   = "list"  // comma separated integers, order does not matter
	KindYesNo  = "yesno" // "yes" | "no"
)

const (
	MinDifficulty = 1
	MaxDifficulty = 3
)

var ErrUnknownTopic = errors.New("unknown topic")

// Problem is a generated exercise. Answer holds the canonical expected answer.
type Problem struct {
	Prompt   string `json:"prompt"`
	Kind     string `json:"kind"`
	Operands []int  `json:"operands"`
	Answer   string `json:"answer,omitempty"`
}

type (
	span      struct{ min, max int } // inclusive
	generator func(rnd *rand.Rand, difficulty int) Problem
)

func (s span) pick(rnd *rand.Rand) int {
	return s.min + rnd.Intn(s.max-s.min+1)
}

var generators = map[string]generator{
	lesson.TopicAddition:           genAddition,
	lesson.TopicSubtraction:        genSubtraction,
	lesson.TopicMultiplication:     genMultiplication,
	lesson.TopicDivision:           genDivision,
	lesson.TopicFactors:            genFactors,
	lesson.TopicPrimes:             genPrimes,
	lesson.TopicPrimeFactorization: genPrimeFactorization,
	lesson.TopicGCD:                genGCD,
	lesson.TopicLCM:                genLCM,
}

// Generate deterministically generates count problems for topic: the same seed always yields the same problems.
func Generate(topic string, difficulty int, seed int64, count int) ([]Problem, error) {
	gen, ok := generators[topic]
	if !ok {
		return nil, errors.Wrap(ErrUnknownTopic, topic)
	}
	difficulty = clampDifficulty(difficulty)

	rnd := rand.New(rand.NewSource(seed))
	problems := make([]Problem, 0, count)
	for i := 0; i < count; i++ {
		problems = append(problems, gen(rnd, difficulty))
	}
	return problems, nil
}

func clampDifficulty(d int) int {
	if d < MinDifficulty {
		return MinDifficulty
	}
	if d > MaxDifficulty {
		return MaxDifficulty
	}
	return d
}

// byDifficulty returns the span for difficulty (1-based).
func byDifficulty(difficulty int, spans ...span) span {
	return spans[difficulty-1]
}

func numberProblem(prompt string, answer int, operands ...int) Problem {
	return Problem{Prompt: prompt, Kind: KindNumber, Operands: operands, Answer: strconv.Itoa(answer)}
}

func listProblem(prompt string, answer []int, operands ...int) Problem {
	return Problem{Prompt: prompt, Kind: KindList, Operands: operands, Answer: joinInts(answer)}
}

func genAddition(rnd *rand.Rand, difficulty int) Problem {
	s := byDifficulty(difficulty, span{0, 10}, span{10, 99}, span{100, 999})
	a, b := s.pick(rnd), s.pick(rnd)
	return numberProblem(fmt.Sprintf("%d + %d = ?", a, b), a+b, a, b)
}

func genSubtraction(rnd *rand.Rand, difficulty int) Problem {
	s := byDifficulty(difficulty, span{0, 10}, span{10, 99}, span{100, 999})
	a, b := s.pick(rnd), s.pick(rnd)
	if a < b {
		a, b = b, a // never negative
	}
	return numberProblem(fmt.Sprintf("%d - %d = ?", a, b), a-b, a, b)
}

func genMultiplication(rnd *rand.Rand, difficulty int) Problem {
	left := byDifficulty(difficulty, span{0, 5}, span{2, 12}, span{12, 99})
	right := byDifficulty(difficulty, span{0, 10}, span{2, 12}, span{3, 19})
	a, b := left.pick(rnd), right.pick(rnd)
	return numberProblem(fmt.Sprintf("%d × %d = ?", a, b), a*b, a, b)
}

func genDivision(rnd *rand.Rand, difficulty int) Problem {
	divisor := byDifficulty(difficulty, span{1, 5}, span{2, 12}, span{3, 19}).pick(rnd)
	quotient := byDifficulty(difficulty, span{0, 10}, span{2, 12}, span{12, 99}).pick(rnd)
	dividend := divisor * quotient // always exact
	return numberProblem(fmt.Sprintf("%d ÷ %d = ?", dividend, divisor), quotient, dividend, divisor)
}

func genFactors(rnd *rand.Rand, difficulty int) Problem {
	n := byDifficulty(difficulty, span{2, 20}, span{12, 60}, span{48, 144}).pick(rnd)
	return listProblem(fmt.Sprintf("List all the factors of %d.", n), Factors(n), n)
}

func genPrimes(rnd *rand.Rand, difficulty int) Problem {
	n := byDifficulty(difficulty, span{2, 30}, span{30, 100}, span{100, 300}).pick(rnd)
	answer := "no"
	if IsPrime(n) {
		answer = "yes"
	}
	return Problem{Prompt: fmt.Sprintf("Is %d a prime number?", n), Kind: KindYesNo, Operands: []int{n}, Answer: answer}
}

func genPrimeFactorization(rnd *rand.Rand, difficulty int) Problem {
	s := byDifficulty(difficulty, span{4, 30}, span{30, 150}, span{150, 1000})
	n := s.pick(rnd)
	for IsPrime(n) {
		n = s.pick(rnd)
	}
	return listProblem(fmt.Sprintf("Write %d as a product of prime factors.", n), PrimeFactors(n), n)
}

func genGCD(rnd *rand.Rand, difficulty int) Problem {
	common := byDifficulty(difficulty, span{1, 5}, span{2, 10}, span{3, 25}).pick(rnd)
	mul := byDifficulty(difficulty, span{1, 6}, span{1, 10}, span{2, 20})
	a, b := common*mul.pick(rnd), common*mul.pick(rnd)
	return numberProblem(fmt.Sprintf("What is the greatest common divisor of %d and %d?", a, b), GCD(a, b), a, b)
}

func genLCM(rnd *rand.Rand, difficulty int) Problem {
	s := byDifficulty(difficulty, span{2, 10}, span{4, 20}, span{10, 40})
	a, b := s.pick(rnd), s.pick(rnd)
	return numberProblem(fmt.Sprintf("What is the least common multiple of %d and %d?", a, b), LCM(a, b), a, b)
}

// Factors returns the positive factors of n in ascending order.
func Factors(n int) []int {
	if n < 1 {
		return nil
	}
	var low, high []int
	for i := 1; i*i <= n; i++ {
		if n%i == 0 {
			low = append(low, i)
			if i != n/i {
				high = append(high, n/i)
			}
		}
	}
	for i := len(high) - 1; i >= 0; i-- {
		low = append(low, high[i])
	}
	return low
}

func IsPrime(n int) bool {
	if n < 2 {
		return false
	}
	for i := 2; i*i <= n; i++ {
		if n%i == 0 {
			return false
		}
	}
	return true
}

// PrimeFactors returns the prime factors of n, with repetition, in ascending order: 12 -> [2 2 3].
func PrimeFactors(n int) []int {
	var factors []int
	for p := 2; p*p <= n; p++ {
		for n%p == 0 {
			factors = append(factors, p)
			n /= p
		}
	}
	if n > 1 {
		factors = append(factors, n)
	}
	return factors
}

func GCD(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func LCM(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / GCD(a, b) * b
}

func joinInts(nums []int) string {
	strs := make([]string, 0, len(nums))
	for _, n := range nums {
		strs = append(strs, strconv.Itoa(n))
	}
	return strings.Join(strs, ", ")
}

func sortedCopy(nums []int) []int {
	res := append([]int(nil), nums...)
	sort.Ints(res)
	return res
}
