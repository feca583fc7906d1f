package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Label    string  `validate:"binarylabel"`
	Template string  `validate:"required,placeholder"`
	Score    float64 `validate:"gte=0,lte=1"`
}

func TestStruct(t *testing.T) {
	assert.NoError(t, Struct(sample{Label: "1", Template: "Classify: {text}", Score: 0.4}))

	err := Struct(sample{Label: "2", Template: "no placeholder", Score: 1.5})
	require.Error(t, err)
	msg := Describe(err)
	assert.Contains(t, msg, "sample.Label failed binarylabel")
	assert.Contains(t, msg, "sample.Template failed placeholder")
	assert.Contains(t, msg, "sample.Score failed lte=1")
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("0", "binarylabel"))
	assert.Error(t, Var("yes", "binarylabel"))
}

func TestRegisterCustomValidation(t *testing.T) {
	require.NoError(t, RegisterCustomValidation("even", func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%2 == 0
	}))
	assert.NoError(t, Var(4, "even"))
	assert.Error(t, Var(3, "even"))
}

func TestDescribePlainError(t *testing.T) {
	assert.Equal(t, assert.AnError.Error(), Describe(assert.AnError))
}
