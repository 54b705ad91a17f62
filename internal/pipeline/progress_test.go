package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Fraction(t *testing.T) {
	p := NewProgress(4, 0)
	assert.Equal(t, 0.0, p.Fraction())

	p.Add(1)
	assert.Equal(t, 0.25, p.Fraction())

	p.Add(3)
	assert.Equal(t, 1.0, p.Fraction())
}

func TestProgress_CappedAtOne(t *testing.T) {
	p := NewProgress(2, 0)
	p.Add(5)
	assert.Equal(t, 1.0, p.Fraction())
}

func TestProgress_ZeroTotal(t *testing.T) {
	p := NewProgress(0, 0)
	assert.Equal(t, 1.0, p.Fraction())
}

func TestProgress_Seeded(t *testing.T) {
	p := NewProgress(10, 4)
	assert.Equal(t, 0.4, p.Fraction())
	assert.Equal(t, 4, p.Done())

	p.Add(6)
	assert.Equal(t, 1.0, p.Fraction())
}

func TestProgress_Monotone(t *testing.T) {
	p := NewProgress(100, 0)
	last := 0.0
	for i := 0; i < 100; i++ {
		p.Add(1)
		f := p.Fraction()
		assert.GreaterOrEqual(t, f, last)
		last = f
	}
	assert.Equal(t, 1.0, last)
}
