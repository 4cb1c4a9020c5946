package validator

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/starcasthq/starcast/core"
)

var (
	once sync.Once
	v    *validator.Validate
)

func validateVoteSource(fl validator.FieldLevel) bool {
	source, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return new(core.VoteSource).Set(source) == nil
}

// Validator returns a singleton that can be used to validate API requests.
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New()

		if err := v.RegisterValidation("vote_source", validateVoteSource); err != nil {
			panic("failed to register validation: " + err.Error())
		}
	})
	return v
}
