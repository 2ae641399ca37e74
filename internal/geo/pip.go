package geo

// ContainsPoint reports whether pt falls inside polys using the even-odd rule,
// so holes are excluded.
func ContainsPoint(polys []Polygon, pt Point) bool {
	for _, poly := range polys {
		inside := false
		for _, ring := range poly {
			if ringContains(ring, pt) {
				inside = !inside
			}
		}
		if inside {
			return true
		}
	}
	return false
}

func ringContains(ring Ring, pt Point) bool {
	in := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) &&
			pt.X < (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}
