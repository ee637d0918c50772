package chat

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestOrderPair(t *testing.T) {
	a := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	b := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	x, y := orderPair(a, b)
	assert.Equal(t, a, x)
	assert.Equal(t, b, y)

	// Same canonical order regardless of argument order.
	x, y = orderPair(b, a)
	assert.Equal(t, a, x)
	assert.Equal(t, b, y)

	x, y = orderPair(a, a)
	assert.Equal(t, a, x)
	assert.Equal(t, a, y)
}
