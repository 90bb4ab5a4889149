package cartesian

import (
	"math"
	"testing"
)

func TestConvexHull(t *testing.T) {

	type subTest struct {
		name         string
		points       []Point
		expectedHull []Point
	}

	subTests := []subTest{
		{
			name:         "Empty",
			points:       nil,
			expectedHull: []Point{},
		},
		{
			name:         "Duplicates of two points",
			points:       []Point{{1, 1}, {0, 0}, {1, 1}},
			expectedHull: []Point{{0, 0}, {1, 1}},
		},
		{
			name:         "Square with interior and edge points",
			points:       []Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {1, 1}, {1, 0}, {0.5, 1.5}},
			expectedHull: []Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}},
		},
		{
			name:         "Triangle given clockwise",
			points:       []Point{{0, 0}, {0, 3}, {4, 0}},
			expectedHull: []Point{{0, 0}, {4, 0}, {0, 3}},
		},
	}

	for _, subTest := range subTests {
		t.Run(subTest.name, func(t *testing.T) {
			hull := ConvexHull(subTest.points)
			if len(hull) != len(subTest.expectedHull) {
				t.Fatalf("Got hull %v, expected %v", hull, subTest.expectedHull)
			}
			for i := range hull {
				if hull[i] != subTest.expectedHull[i] {
					t.Errorf("Got hull %v, expected %v", hull, subTest.expectedHull)
				}
			}
		})
	}
}

func TestPolygonArea(t *testing.T) {

	type subTest struct {
		name         string
		vertices     []Point
		expectedArea float64
	}

	subTests := []subTest{
		{"Line has no area", []Point{{0, 0}, {1, 1}}, 0},
		{"Unit square counter-clockwise", []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, 1},
		{"Unit square clockwise", []Point{{0, 0}, {0, 1}, {1, 1}, {1, 0}}, 1},
		{"Right triangle", []Point{{0, 0}, {4, 0}, {0, 3}}, 6},
	}

	for _, subTest := range subTests {
		t.Run(subTest.name, func(t *testing.T) {
			a := PolygonArea(subTest.vertices)
			if math.Abs(a-subTest.expectedArea) > 1e-12 {
				t.Errorf("Got %f, expected %f", a, subTest.expectedArea)
			}
		})
	}
}

func TestHullArea(t *testing.T) {
	// a circle of radius 1 sampled densely approaches pi
	var xs, ys []float64
	for i := 0; i < 3600; i++ {
		angle := 2 * math.Pi * float64(i) / 3600
		xs = append(xs, math.Cos(angle))
		ys = append(ys, math.Sin(angle))
	}
	xs = append(xs, 0)
	ys = append(ys, 0)

	a := HullArea(xs, ys)
	if math.Abs(a-math.Pi) > 1e-3 {
		t.Errorf("Got %f, expected approximately %f", a, math.Pi)
	}
}
