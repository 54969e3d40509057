package util

import (
	"reflect"
	"strings"

	"ai_mentor_backend/internal/model"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// custom validation tags
const (
	notBlankTag     = "notblank"
	bloomTag        = "bloom"
	difficultyTag   = "difficulty"
	questionTypeTag = "question_type"
	userRoleTag     = "user_role"
	purposeTag      = "test_purpose"
)

// RegisterValidators 在 gin 的绑定引擎上注册自定义校验标签
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return registerValidators(v)
}

func registerValidators(v *validator.Validate) error {
	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	validations := map[string]validator.Func{
		notBlankTag:     notBlankValidation,
		bloomTag:        bloomValidation,
		difficultyTag:   difficultyValidation,
		questionTypeTag: questionTypeValidation,
		userRoleTag:     userRoleValidation,
		purposeTag:      purposeValidation,
	}
	for tag, fn := range validations {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func bloomValidation(fl validator.FieldLevel) bool {
	level := model.BloomLevel(fl.Field().String())
	for _, l := range model.BloomLevels {
		if l == level {
			return true
		}
	}
	return false
}

func difficultyValidation(fl validator.FieldLevel) bool {
	switch model.Difficulty(fl.Field().String()) {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
		return true
	}
	return false
}

func questionTypeValidation(fl validator.FieldLevel) bool {
	return model.QuestionType(fl.Field().String()).Valid()
}

func userRoleValidation(fl validator.FieldLevel) bool {
	return model.UserRole(fl.Field().String()).Valid()
}

func purposeValidation(fl validator.FieldLevel) bool {
	return model.TestPurpose(fl.Field().String()).Valid()
}
