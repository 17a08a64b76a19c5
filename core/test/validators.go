package test

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/studentbuddy/backend/core"
)

var (
	qTypeTag  = "qtype"
	qTypeText = "type must be one of: multiple_choice, true_false, short_answer, essay"

	qOptionsTag  = "qoptions"
	qOptionsText = "multiple choice questions need at least 2 options"

	qAnswerTag  = "qanswer"
	qAnswerText = "correct answer must be one of the provided options"

	qBoolAnswerTag  = "qboolanswer"
	qBoolAnswerText = "correct answer must be 'true' or 'false'"
)

// InitValidators registers this package's struct validations and translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(questionStructValidation, NewQuestion{})

	core.RegisterCustomTranslation(validate, translator, qTypeTag, qTypeText)
	core.RegisterCustomTranslation(validate, translator, qOptionsTag, qOptionsText)
	core.RegisterCustomTranslation(validate, translator, qAnswerTag, qAnswerText)
	core.RegisterCustomTranslation(validate, translator, qBoolAnswerTag, qBoolAnswerText)
}

// questionStructValidation checks the per-type shape of a question:
// choice questions must come with a gradable correct answer, free-text
// questions need neither options nor an answer key.
func questionStructValidation(sl validator.StructLevel) {
	nq, ok := sl.Current().Interface().(NewQuestion)
	if !ok {
		return
	}

	switch nq.Type {
	case QuestionMultipleChoice:
		if len(nq.Options) < 2 {
			sl.ReportError(nq.Options, "options", "Options", qOptionsTag, "")
			return
		}
		for _, opt := range nq.Options {
			if opt == nq.CorrectAnswer {
				return
			}
		}
		sl.ReportError(nq.CorrectAnswer, "correct_answer", "CorrectAnswer", qAnswerTag, "")
	case QuestionTrueFalse:
		if nq.CorrectAnswer != "true" && nq.CorrectAnswer != "false" {
			sl.ReportError(nq.CorrectAnswer, "correct_answer", "CorrectAnswer", qBoolAnswerTag, "")
		}
	case QuestionShortAnswer, QuestionEssay:
		// nothing to check; graded manually (or not at all)
	default:
		sl.ReportError(nq.Type, "type", "Type", qTypeTag, "")
	}
}
