package cartesian

import "sort"

// Point represents a cartesian X,Y point
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// cross returns the z component of the cross product of (a - o) and (b - o): positive for a counter-clockwise turn.
func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// ConvexHull returns the vertices of the convex hull of the given points in counter-clockwise order, starting from the
// left-most (then lowest) point. Collinear points on the boundary are dropped. Fewer than three distinct points are
// returned as they are, de-duplicated.
func ConvexHull(points []Point) []Point {
	sorted := append([]Point(nil), points...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	unique := sorted[:0]
	for i, p := range sorted {
		if i == 0 || p != sorted[i-1] {
			unique = append(unique, p)
		}
	}
	if len(unique) < 3 {
		return unique
	}

	// Andrew's monotone chain: lower hull left to right, then upper hull right to left
	hull := make([]Point, 0, 2*len(unique))
	for _, p := range unique {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(unique) - 2; i >= 0; i-- {
		p := unique[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// PolygonArea returns the area enclosed by the polygon with the given vertices, in either winding order.
func PolygonArea(vertices []Point) float64 {
	if len(vertices) < 3 {
		return 0
	}
	twice := 0.0
	for i, p := range vertices {
		q := vertices[(i+1)%len(vertices)]
		twice += p.X*q.Y - q.X*p.Y
	}
	if twice < 0 {
		twice = -twice
	}
	return twice / 2
}

// HullArea returns the area of the convex hull of the points given as separate X and Y slices.
func HullArea(xs, ys []float64) float64 {
	points := make([]Point, 0, len(xs))
	for i := range xs {
		if i < len(ys) {
			points = append(points, Point{X: xs[i], Y: ys[i]})
		}
	}
	return PolygonArea(ConvexHull(points))
}
