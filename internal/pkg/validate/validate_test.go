package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Phone string  `validate:"required,max=20"`
	Zip   *string `validate:"omitempty,uszip"`
}

func TestStruct_Valid(t *testing.T) {
	zip := "94107-1234"
	assert.NoError(t, Struct(sample{Phone: "9999999999", Zip: &zip}))
}

func TestStruct_MissingRequired(t *testing.T) {
	err := Struct(sample{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'Phone' failed 'required'")
}

func TestStruct_BadZip(t *testing.T) {
	zip := "ABCDE"
	err := Struct(sample{Phone: "1", Zip: &zip})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uszip")
}
