package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError(t *testing.T) {
	err := NotFound(KindProduct, "prod-1")

	assert.Equal(t, "Product prod-1 not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.True(t, IsNotFoundKind(err, KindProduct))
	assert.False(t, IsNotFoundKind(err, KindOrder))
}

func TestNotFoundError_Wrapped(t *testing.T) {
	err := fmt.Errorf("loading order: %w", NotFound(KindOrder, "order-9"))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFoundKind(err, KindOrder))

	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.Equal(t, "order-9", nf.ID)
}

func TestValidationError(t *testing.T) {
	err := Validation("items[0].quantity", "must be positive")

	assert.Equal(t, "invalid items[0].quantity: must be positive", err.Error())
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrNotFound)
}
