package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mathhub/factolearn/core/lesson"
	"github.com/mathhub/factolearn/core/quiz"
	"github.com/mathhub/factolearn/core/user"
)

type sampleLesson struct {
	lesson lesson.NewLesson
	quiz   *quiz.NewQuiz
}

var sampleLessons = []sampleLesson{
	{
		lesson: lesson.NewLesson{
			Slug: "multiplication-tables", Title: "Multiplication Tables", Topic: lesson.TopicMultiplication,
			GradeLevel: 3, Position: 1, IsPublished: true,
			Summary: "Learn the times tables up to 10 x 10.",
			Content: "# Multiplication tables\n\nMultiplying is adding the same number several times: 3 x 4 = 4 + 4 + 4 = 12.",
		},
		quiz: &quiz.NewQuiz{
			Title: "Times tables check", PassPercent: 60, TimeLimit: 300, IsPublished: true,
			Questions: []quiz.Question{
				{Prompt: "7 x 8", Kind: quiz.KindNumeric, Answer: "56"},
				{Prompt: "6 x 9", Kind: quiz.KindNumeric, Answer: "54"},
				{Prompt: "Which one is equal to 4 x 6?", Kind: quiz.KindChoice, Choices: []string{"20", "24", "28"}, Answer: "24"},
			},
		},
	},
	{
		lesson: lesson.NewLesson{
			Slug: "factors", Title: "Factors", Topic: lesson.TopicFactors,
			GradeLevel: 4, Position: 1, IsPublished: true,
			Summary: "Find every number that divides another one.",
			Content: "# Factors\n\nA factor of a number divides it with no remainder. The factors of 12 are 1, 2, 3, 4, 6 and 12.",
		},
		quiz: &quiz.NewQuiz{
			Title: "Factors check", PassPercent: 60, IsPublished: true,
			Questions: []quiz.Question{
				{Prompt: "How many factors does 12 have?", Kind: quiz.KindNumeric, Answer: "6"},
				{Prompt: "Is 5 a factor of 35?", Kind: quiz.KindChoice, Choices: []string{"yes", "no"}, Answer: "yes"},
			},
		},
	},
	{
		lesson: lesson.NewLesson{
			Slug: "prime-numbers", Title: "Prime Numbers", Topic: lesson.TopicPrimes,
			GradeLevel: 5, Position: 1, IsPublished: true,
			Summary: "Numbers with exactly two factors.",
			Content: "# Prime numbers\n\nA prime number has exactly two factors: 1 and itself. 2, 3, 5, 7 and 11 are prime.",
		},
		quiz: &quiz.NewQuiz{
			Title: "Primes check", PassPercent: 50, MaxAttempts: 3, IsPublished: true,
			Questions: []quiz.Question{
				{Prompt: "Is 9 prime?", Kind: quiz.KindChoice, Choices: []string{"yes", "no"}, Answer: "no"},
				{Prompt: "What is the smallest prime number?", Kind: quiz.KindNumeric, Answer: "2", Points: 2},
			},
		},
	},
	{
		lesson: lesson.NewLesson{
			Slug: "prime-factorization", Title: "Prime Factorization", Topic: lesson.TopicPrimeFactorization,
			GradeLevel: 6, Position: 1, IsPublished: true,
			Summary: "Write a number as a product of primes.",
			Content: "# Prime factorization\n\nEvery number greater than 1 is a product of primes: 60 = 2 x 2 x 3 x 5.",
		},
	},
	{
		lesson: lesson.NewLesson{
			Slug: "greatest-common-divisor", Title: "Greatest Common Divisor", Topic: lesson.TopicGCD,
			GradeLevel: 6, Position: 2, IsPublished: true,
			Summary: "The biggest number dividing two others.",
			Content: "# GCD\n\nThe greatest common divisor of 12 and 18 is 6.",
		},
		quiz: &quiz.NewQuiz{
			Title: "GCD check", PassPercent: 60, IsPublished: true,
			Questions: []quiz.Question{
				{Prompt: "gcd(12, 18)", Kind: quiz.KindNumeric, Answer: "6"},
				{Prompt: "gcd(7, 13)", Kind: quiz.KindNumeric, Answer: "1"},
			},
		},
	},
	{
		lesson: lesson.NewLesson{
			Slug: "least-common-multiple", Title: "Least Common Multiple", Topic: lesson.TopicLCM,
			GradeLevel: 6, Position: 3,
			Summary: "The smallest number two others divide.",
			Content: "# LCM\n\nThe least common multiple of 4 and 6 is 12.",
		},
	},
}

func (cli *commandLine) seedCmd() *cobra.Command {
	var author string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the sample lessons & quizzes",
		Long:  "Creates the sample lessons & their quizzes. Lessons that already exist (same slug) are left untouched.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := cli.seed(cmd.Context(), author)
			if err != nil {
				return err
			}
			cmd.Printf("%d lesson(s) created, %d already existed\n", created, len(sampleLessons)-created)
			return nil
		},
	}
	cmd.Flags().StringVarP(&author, "author", "u", "", "username or email of the lessons' author")
	_ = cmd.MarkFlagRequired("author")
	return cmd
}

// seed returns how many sample lessons were created.
func (cli *commandLine) seed(ctx context.Context, author string) (int, error) {
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: author})
	if err != nil {
		return 0, errors.Wrap(err, "finding author")
	}
	if !usr.IsAdmin() && !usr.IsTeacher() {
		return 0, errors.Errorf("%q is neither an admin nor a teacher", usr.Username)
	}

	var created int
	for _, sample := range sampleLessons {
		if _, err := cli.lessonSvc.GetByID(ctx, sample.lesson.Slug); err == nil {
			continue
		} else if errors.Cause(err) != lesson.ErrNotFound {
			return created, err
		}

		l, err := cli.lessonSvc.Create(ctx, sample.lesson, usr.ID)
		if err != nil {
			return created, errors.Wrapf(err, "creating lesson %q", sample.lesson.Slug)
		}
		created++

		if sample.quiz == nil {
			continue
		}
		nq := *sample.quiz
		nq.LessonID = l.ID
		nq.Questions = withDefaultPoints(nq.Questions)
		if _, err := cli.quizSvc.Create(ctx, nq, usr.ID); err != nil {
			return created, errors.Wrapf(err, "creating quiz of lesson %q", l.Slug)
		}
	}
	return created, nil
}

func withDefaultPoints(questions []quiz.Question) []quiz.Question {
	res := make([]quiz.Question, len(questions))
	for i, q := range questions {
		if q.Points == 0 {
			q.Points = 1
		}
		res[i] = q
	}
	return res
}
