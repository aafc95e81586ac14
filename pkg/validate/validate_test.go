package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datajunction/djqs/pkg/validate"
)

type engineRef struct {
	Name    string `json:"name"    validate:"required"`
	Version string `json:"version" validate:"required"`
}

type catalogInput struct {
	Name    string      `json:"name"    validate:"required,max=10"`
	Engines []engineRef `json:"engines" validate:"required,min=1,dive"`
}

func TestValidInput(t *testing.T) {
	errs := validate.Struct(catalogInput{
		Name:    "default",
		Engines: []engineRef{{Name: "postgres", Version: "15"}},
	})
	assert.False(t, validate.HasErrors(errs), errs)
}

func TestRequiredUsesJSONNames(t *testing.T) {
	errs := validate.Struct(&catalogInput{})
	assert.Equal(t, "The name field is required.", errs["name"])
	assert.Equal(t, "The engines field is required.", errs["engines"])
}

func TestMaxLength(t *testing.T) {
	errs := validate.Struct(catalogInput{Name: "much-too-long-name", Engines: []engineRef{{"a", "1"}}})
	assert.Equal(t, "The name must not exceed 10 characters.", errs["name"])
}

func TestMinItems(t *testing.T) {
	errs := validate.Struct(catalogInput{Name: "c", Engines: []engineRef{}})
	assert.Equal(t, "The engines must have at least 1 items.", errs["engines"])
}

func TestDiveReportsNestedPath(t *testing.T) {
	errs := validate.Struct(catalogInput{Name: "c", Engines: []engineRef{{Name: "a"}}})
	assert.Equal(t, map[string]string{"engines[0].version": "The version field is required."}, errs)
}

func TestUnnamedFieldFallsBackToLowercase(t *testing.T) {
	type in struct {
		Token string `validate:"required"`
	}
	errs := validate.Struct(in{})
	assert.Contains(t, errs, "token")
}
