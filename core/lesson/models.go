package lesson

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/mathhub/factolearn/core"
)

// Topics
const (
	TopicAddition           = "addition"
	TopicSubtraction        = "subtraction"
	TopicMultiplication     = "multiplication"
	TopicDivision           = "division"
	TopicFactors            = "factors"
	TopicPrimes             = "primes"
	TopicPrimeFactorization = "prime_factorization"
	TopicGCD                = "gcd"
	TopicLCM                = "lcm"
)

var (
	Topics = []string{
		TopicAddition, TopicSubtraction, TopicMultiplication, TopicDivision,
		TopicFactors, TopicPrimes, TopicPrimeFactorization, TopicGCD, TopicLCM,
	}

	mathTopicTag  = "mathtopic"
	mathTopicText = "unknown topic"
)

// InitValidators registers the lesson validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(mathTopicTag, func(fl validator.FieldLevel) bool {
		return IsTopic(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, mathTopicTag, mathTopicText)
}

func IsTopic(topic string) bool {
	return core.ContainsString(Topics, topic)
}

type Lesson struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Content     string    `json:"content"` // markdown
	Topic       string    `json:"topic"`
	GradeLevel  int       `json:"grade_level"`
	Position    int       `json:"position"`
	IsPublished bool      `json:"is_published"`
	AuthorID    string    `json:"author_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// NewLesson contains information needed to create a new Lesson.
type NewLesson struct {
	Slug        string `json:"slug" validate:"omitempty,max=120,slug"`
	Title       string `json:"title" validate:"required,max=200"`
	Summary     string `json:"summary" validate:"max=500"`
	Content     string `json:"content"`
	Topic       string `json:"topic" validate:"required,mathtopic"`
	GradeLevel  int    `json:"grade_level" validate:"required,min=1,max=12"`
	Position    int    `json:"position" validate:"min=0"`
	IsPublished bool   `json:"is_published"`
}

func (nl *NewLesson) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nl.Title = core.CleanString(nl.Title)
	nl.Summary = core.CleanString(nl.Summary)
	nl.Topic = core.CleanString(nl.Topic, true /* lower */)
	nl.Slug = core.CleanString(nl.Slug, true /* lower */)
	if nl.Slug == "" {
		nl.Slug = core.Slugify(nl.Title)
	}

	if err := validate.Struct(nl); err != nil {
		return err
	}
	return svc.CheckSlugUniqueness(ctx, nl.Slug)
}

// UpdateLesson defines what information may be provided to modify an existing Lesson.
type UpdateLesson struct {
	Slug       string  `json:"slug" validate:"omitempty,max=120,slug"`
	Title      string  `json:"title" validate:"max=200"`
	Summary    *string `json:"summary" validate:"omitempty,max=500"`
	Content    *string `json:"content"`
	Topic      string  `json:"topic" validate:"omitempty,mathtopic"`
	GradeLevel int     `json:"grade_level" validate:"omitempty,min=1,max=12"`
	Position   *int    `json:"position" validate:"omitempty,min=0"`
}

func (ul *UpdateLesson) Validate(ctx context.Context, orig Lesson, validate *validator.Validate, svc Service) error {
	if title := core.CleanString(ul.Title); title != "" {
		ul.Title = title
	} else {
		ul.Title = orig.Title
	}
	if slug := core.CleanString(ul.Slug, true /* lower */); slug != "" {
		ul.Slug = slug
	} else {
		ul.Slug = orig.Slug
	}
	if topic := core.CleanString(ul.Topic, true /* lower */); topic != "" {
		ul.Topic = topic
	} else {
		ul.Topic = orig.Topic
	}
	if ul.GradeLevel == 0 {
		ul.GradeLevel = orig.GradeLevel
	}
	if ul.Summary == nil {
		ul.Summary = &orig.Summary
	} else {
		summary := core.CleanString(*ul.Summary)
		ul.Summary = &summary
	}
	if ul.Content == nil {
		ul.Content = &orig.Content
	}
	if ul.Position == nil {
		ul.Position = &orig.Position
	}

	if err := validate.Struct(ul); err != nil {
		return err
	}
	return svc.CheckSlugUniqueness(ctx, ul.Slug, orig)
}

type QueryFilter struct {
	Search      string   `query:"search"`
	Topics      []string `query:"topic"`
	GradeLevel  int      `query:"grade_level"`
	IsPublished *bool    `query:"is_published"`
	AuthorID    string   `query:"author"`
	IDs         []string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.AuthorID = core.CleanString(qf.AuthorID)
	topics := make([]string, 0, len(qf.Topics))
	for _, t := range qf.Topics {
		if t = core.CleanString(t, true /* lower */); t != "" {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		topics = nil
	}
	qf.Topics = topics
}
