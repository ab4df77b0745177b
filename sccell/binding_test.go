package sccell

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeBinding(t *testing.T) {
	var stored int
	b := MakeBinding(
		func() int { return stored },
		func(n int) { stored = n },
	)

	b.Set(3)
	assert.Equal(t, 3, stored)
	assert.Equal(t, 3, b.Get())
}

func TestConstantBinding(t *testing.T) {
	b := ConstantBinding("fixed")

	assert.Equal(t, "fixed", b.Get())

	b.Set("ignored")
	assert.Equal(t, "fixed", b.Get())
}

func TestVarBinding(t *testing.T) {
	n := 10
	b := VarBinding(&n)

	assert.Equal(t, 10, b.Get())

	b.Set(20)
	assert.Equal(t, 20, n)
}

func TestBindingIsACopyableReference(t *testing.T) {
	n := 1
	b1 := VarBinding(&n)
	b2 := b1

	b2.Set(2)
	assert.Equal(t, 2, b1.Get())
}

func TestMapBinding(t *testing.T) {
	n := 5
	source := VarBinding(&n)
	derived := MapBinding(source, strconv.Itoa, func(s string) int {
		parsed, _ := strconv.Atoi(s)
		return parsed
	})

	assert.Equal(t, "5", derived.Get())

	derived.Set("42")
	assert.Equal(t, 42, n)
	assert.Equal(t, "42", derived.Get())
}

func TestMapBindingOverCell(t *testing.T) {
	c := New(WithInterceptor(ClampedMax(12)))
	defer c.Close()

	doubled := MapBinding(c.Binding(),
		func(n int) int { return n * 2 },
		func(n int) int { return n / 2 },
	)

	doubled.Set(20)
	assert.Equal(t, 10, c.Get())
	assert.Equal(t, 20, doubled.Get())

	// Writes through the derived binding still pass through the cell's interceptors.
	doubled.Set(100)
	assert.Equal(t, 12, c.Get())
}
