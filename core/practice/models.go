package practice

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mathhub/factolearn/core"
)

// Session is a series of generated problems a student works through for a lesson.
type Session struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	LessonID   string    `json:"lesson_id"`
	Topic      string    `json:"topic"`
	Difficulty int       `json:"difficulty"`
	Seed       int64     `json:"seed"`
	Problems   []Problem `json:"problems"`
	Answers    []*Answer `json:"answers"`     // same length as Problems, nil until answered
	StartedAt  time.Time `json:"started_at"`  // UTC
	FinishedAt time.Time `json:"finished_at"` // UTC, zero while in progress
}

type Answer struct {
	Given      string    `json:"given"`
	Correct    bool      `json:"correct"`
	AnsweredAt time.Time `json:"answered_at"`
}

func (s Session) IsFinished() bool {
	return !s.FinishedAt.IsZero()
}

// Redacted returns a copy of the session without the expected answers of the problems that are still open.
func (s Session) Redacted() Session {
	if s.IsFinished() {
		return s
	}
	problems := make([]Problem, len(s.Problems))
	for i, p := range s.Problems {
		if i >= len(s.Answers) || s.Answers[i] == nil {
			p.Answer = ""
		}
		problems[i] = p
	}
	s.Problems = problems
	return s
}

// Summary counts the correct answers; unanswered problems count as wrong.
func (s Session) Summary() Summary {
	sum := Summary{Total: len(s.Problems)}
	for _, a := range s.Answers {
		if a != nil {
			sum.Answered++
			if a.Correct {
				sum.Correct++
			}
		}
	}
	if sum.Total > 0 {
		sum.Accuracy = float64(sum.Correct) / float64(sum.Total)
	}
	return sum
}

type Feedback struct {
	Index    int    `json:"index"`
	Correct  bool   `json:"correct"`
	Expected string `json:"expected"`
	Message  string `json:"message"`
}

type Summary struct {
	Correct  int     `json:"correct"`
	Answered int     `json:"answered"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
	Message  string  `json:"message"`
}

// NewSession contains the options of a practice session.
// A zero Count or Difficulty takes the configured default.
type NewSession struct {
	Count      int `json:"count" validate:"min=0"`
	Difficulty int `json:"difficulty" validate:"omitempty,min=1,max=3"`
}

func (ns *NewSession) Validate(validate *validator.Validate, conf core.LearningConfig) error {
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if ns.Count == 0 {
		ns.Count = conf.PracticeDefaultCount
	}
	if ns.Count > conf.PracticeMaxCount {
		ns.Count = conf.PracticeMaxCount
	}
	if ns.Difficulty == 0 {
		ns.Difficulty = MinDifficulty
	}
	return nil
}

type SubmitAnswer struct {
	Index  int    `json:"index" validate:"min=0"`
	Answer string `json:"answer" validate:"required,max=200"`
}

func (sa *SubmitAnswer) Validate(validate *validator.Validate) error {
	sa.Answer = core.CleanString(sa.Answer)
	return validate.Struct(sa)
}

type QueryFilter struct {
	StudentID string `query:"student"`
	LessonID  string `query:"lesson"`
	Finished  *bool  `query:"finished"`
}
