package model

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
	OpenEnded      QuestionType = "open_ended"
)

func (t QuestionType) Valid() bool {
	switch t {
	case SingleChoice, MultipleChoice, TrueFalse, ShortAnswer, OpenEnded:
		return true
	}
	return false
}

// IsChoice reports whether answers are given as selected option ids.
func (t QuestionType) IsChoice() bool {
	return t == SingleChoice || t == MultipleChoice || t == TrueFalse
}

// AutoGradable reports whether the answer can be checked without a reviewer.
func (t QuestionType) AutoGradable() bool {
	return t != OpenEnded
}

// Option is one selectable choice of a choice-type question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
