package humanoid

import (
	"math"
	"time"
)

// Point is a position in CSS pixels relative to the viewport.
type Point struct {
	X, Y float64
}

func (a Point) plus(b Point) Point     { return Point{a.X + b.X, a.Y + b.Y} }
func (a Point) scaled(f float64) Point { return Point{a.X * f, a.Y * f} }

// Dist is the straight-line distance between a and b.
func (a Point) Dist(b Point) float64 { return math.Hypot(b.X-a.X, b.Y-a.Y) }

// computeEaseInOutCubic gives a smooth acceleration and deceleration profile.
func computeEaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// TravelTime estimates pointer movement time with Fitts's law, +/- 15%.
func (p *Pacer) TravelTime(distance float64) time.Duration {
	if !p.cfg.Enabled || distance <= 0 {
		return 0
	}
	const targetWidth = 30.0
	id := math.Log2(1.0 + distance/targetWidth)
	mt := p.cfg.FittsA + p.cfg.FittsB*id

	p.mu.Lock()
	mt += mt * (p.rng.Float64()*0.3 - 0.15)
	p.mu.Unlock()

	if mt < 0 {
		return 0
	}
	return time.Duration(mt) * time.Millisecond
}

// Path returns the intermediate pointer positions from start to end along a
// cubic Bezier curve that sways to one side. The last point is always end.
func (p *Pacer) Path(start, end Point) []Point {
	steps := p.cfg.PathSteps
	dist := start.Dist(end)
	if dist < 1.0 || steps <= 1 {
		return []Point{end}
	}

	dir := Point{(end.X - start.X) / dist, (end.Y - start.Y) / dist}
	normal := Point{-dir.Y, dir.X}

	p.mu.Lock()
	sway1 := (p.rng.Float64()*2 - 1) * p.cfg.PathSwayPx
	sway2 := (p.rng.Float64()*2 - 1) * p.cfg.PathSwayPx
	p.mu.Unlock()

	// Keep short hops nearly straight.
	scale := math.Min(1, dist/300)
	c1 := start.plus(dir.scaled(dist / 3)).plus(normal.scaled(sway1 * scale))
	c2 := start.plus(dir.scaled(dist * 2 / 3)).plus(normal.scaled(sway2 * scale))

	path := make([]Point, 0, steps)
	for i := 1; i <= steps; i++ {
		t := computeEaseInOutCubic(float64(i) / float64(steps))
		path = append(path, bezier(start, c1, c2, end, t))
	}
	path[len(path)-1] = end
	return path
}

func bezier(p0, p1, p2, p3 Point, t float64) Point {
	u := 1 - t
	return p0.scaled(u * u * u).
		plus(p1.scaled(3 * u * u * t)).
		plus(p2.scaled(3 * u * t * t)).
		plus(p3.scaled(t * t * t))
}
