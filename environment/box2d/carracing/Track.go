package carracing

import (
	"math"

	"golang.org/x/exp/rand"
)

// track is a closed loop of waypoints. Tile i is the segment between
// waypoint i and waypoint i+1 (mod the number of waypoints).
type track struct {
	x, y    []float64
	angle   []float64 // heading of each tile, in Box2D body angle units
	visited []bool
	count   int // number of visited tiles
}

// newTrack generates a random track. Checkpoints are placed at
// increasing angles around the origin at a random radius, then
// connected by straight segments cut into tiles of TileLength.
func newTrack(rng *rand.Rand) *track {
	cx := make([]float64, Checkpoints)
	cy := make([]float64, Checkpoints)
	for c := 0; c < Checkpoints; c++ {
		alpha := 2*math.Pi*float64(c)/float64(Checkpoints) +
			rng.Float64()*2*math.Pi/float64(Checkpoints)
		rad := TrackRadius/2 + rng.Float64()*TrackRadius/2
		if c == 0 {
			alpha = 0
			rad = TrackRadius
		}
		cx[c] = rad * math.Cos(alpha)
		cy[c] = rad * math.Sin(alpha)
	}

	t := &track{}
	for c := 0; c < Checkpoints; c++ {
		next := (c + 1) % Checkpoints
		dx, dy := cx[next]-cx[c], cy[next]-cy[c]
		tiles := int(math.Ceil(math.Hypot(dx, dy) / TileLength))
		if tiles < 1 {
			tiles = 1
		}
		for j := 0; j < tiles; j++ {
			frac := float64(j) / float64(tiles)
			t.x = append(t.x, cx[c]+frac*dx)
			t.y = append(t.y, cy[c]+frac*dy)
		}
	}

	t.angle = make([]float64, len(t.x))
	for i := range t.x {
		dx, dy := t.direction(i)
		t.angle[i] = math.Atan2(-dx, dy)
	}
	t.visited = make([]bool, len(t.x))

	return t
}

// Len returns the number of tiles in the track
func (t *track) Len() int {
	return len(t.x)
}

// direction returns the unit vector pointing along tile i
func (t *track) direction(i int) (float64, float64) {
	next := (i + 1) % t.Len()
	dx, dy := t.x[next]-t.x[i], t.y[next]-t.y[i]
	norm := math.Hypot(dx, dy)
	if norm == 0 {
		return 0, 1
	}
	return dx / norm, dy / norm
}

// nearest returns the tile closest to (px, py), the distance to its
// centre line, and the signed lateral offset from it. Positive offsets
// are to the left of the direction of travel.
func (t *track) nearest(px, py float64) (int, float64, float64) {
	best, bestDist, bestOffset := 0, math.Inf(1), 0.0

	for i := range t.x {
		next := (i + 1) % t.Len()
		sx, sy := t.x[next]-t.x[i], t.y[next]-t.y[i]
		lengthSq := sx*sx + sy*sy

		proj := 0.0
		if lengthSq > 0 {
			proj = ((px-t.x[i])*sx + (py-t.y[i])*sy) / lengthSq
			proj = math.Max(0, math.Min(1, proj))
		}
		qx, qy := t.x[i]+proj*sx, t.y[i]+proj*sy
		dist := math.Hypot(px-qx, py-qy)

		if dist < bestDist {
			dx, dy := t.direction(i)
			best = i
			bestDist = dist
			bestOffset = dx*(py-t.y[i]) - dy*(px-t.x[i])
		}
	}
	return best, bestDist, bestOffset
}

// visit marks tile i as visited and returns whether it was visited for
// the first time
func (t *track) visit(i int) bool {
	if t.visited[i] {
		return false
	}
	t.visited[i] = true
	t.count++
	return true
}

// complete returns whether every tile has been visited
func (t *track) complete() bool {
	return t.count == t.Len()
}
