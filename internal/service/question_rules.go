package service

import (
	"fmt"
	"strconv"
	"strings"

	"ai_mentor_backend/internal/model"
)

func itoa(i int) string {
	return strconv.Itoa(i)
}

// nonBlank 去掉空白项
func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// checkCorrectOptions 正确选项必须非空、不重复且都在选项中；单选和判断只能有一个
func checkCorrectOptions(qt model.QuestionType, options []model.Option, correct []string) error {
	if len(correct) == 0 {
		return fmt.Errorf("correct answer set is empty")
	}
	ids := make(map[string]struct{}, len(options))
	for _, o := range options {
		id := strings.TrimSpace(o.ID)
		if id == "" {
			return fmt.Errorf("option id is empty")
		}
		if _, dup := ids[id]; dup {
			return fmt.Errorf("duplicate option id %q", id)
		}
		ids[id] = struct{}{}
	}
	seen := make(map[string]struct{}, len(correct))
	for _, c := range correct {
		if _, ok := ids[c]; !ok {
			return fmt.Errorf("correct option %q is not among the options", c)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("correct option %q listed twice", c)
		}
		seen[c] = struct{}{}
	}
	if qt != model.MultipleChoice && len(correct) != 1 {
		return fmt.Errorf("%s questions take exactly one correct option", qt)
	}
	return nil
}
