package geometry

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestInterp(t *testing.T) {
	xs := []float64{0, 10, 20}
	ys := []float64{0, 5, 1}

	tests := []struct {
		name string
		x    float64
		want float64
	}{
		{"left of range clamps to first y", -5, 0},
		{"first knot", 0, 0},
		{"midpoint of first segment", 5, 2.5},
		{"interior knot", 10, 5},
		{"second segment", 15, 3},
		{"last knot", 20, 1},
		{"right of range clamps to last y", 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Interp(tt.x, xs, ys), 1e-12)
		})
	}
}

func TestInterpSingleKnotIsConstant(t *testing.T) {
	xs := []float64{3}
	ys := []float64{7}
	for _, x := range []float64{-100, 0, 3, 3.5, 1e6} {
		assert.Equal(t, 7.0, Interp(x, xs, ys), "x=%v", x)
	}
}

func TestInterpDuplicateKnotsUseRightmost(t *testing.T) {
	xs := []float64{0, 5, 5, 10}
	ys := []float64{0, 1, 3, 3}
	assert.Equal(t, 3.0, Interp(5, xs, ys))
	assert.InDelta(t, 0.5, Interp(2.5, xs, ys), 1e-12)
}

func TestSortedByXDoesNotMutate(t *testing.T) {
	c := Curve{{X: 3, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 3}}
	orig := append(Curve(nil), c...)

	sorted := c.SortedByX()

	want := Curve{{X: 1, Y: 2}, {X: 2, Y: 3}, {X: 3, Y: 1}}
	if diff := cmp.Diff(want, sorted); diff != "" {
		t.Errorf("SortedByX() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(orig, c); diff != "" {
		t.Errorf("receiver was modified (-orig +now):\n%s", diff)
	}
}

func TestResampleAtUnsortedInput(t *testing.T) {
	c := Curve{{X: 10, Y: 10}, {X: 0, Y: 0}, {X: 5, Y: 5}}
	got := c.ResampleAt([]float64{-1, 2.5, 7.5, 11})
	assert.InDeltaSlice(t, []float64{0, 2.5, 7.5, 10}, got, 1e-12)
}

func TestResampleAtDuplicateXIndependentOfOrder(t *testing.T) {
	at := []float64{2.5, 5, 7.5}
	orders := []Curve{
		{{X: 0, Y: 0}, {X: 5, Y: 1}, {X: 5, Y: 3}, {X: 10, Y: 3}},
		{{X: 5, Y: 3}, {X: 10, Y: 3}, {X: 0, Y: 0}, {X: 5, Y: 1}},
		{{X: 10, Y: 3}, {X: 5, Y: 1}, {X: 5, Y: 3}, {X: 0, Y: 0}},
	}

	want := orders[0].ResampleAt(at)
	assert.InDeltaSlice(t, []float64{0.5, 3, 3}, want, 1e-12)
	for i, c := range orders[1:] {
		assert.Equal(t, want, c.ResampleAt(at), "order %d", i+1)
	}
}

func TestXY(t *testing.T) {
	xs, ys := Curve{{X: 1, Y: 2}, {X: 3, Y: 4}}.XY()
	assert.Equal(t, []float64{1, 3}, xs)
	assert.Equal(t, []float64{2, 4}, ys)
	assert.True(t, Curve{}.Empty())
	assert.False(t, Curve{{}}.Empty())
}
