package visualization

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// applyLink pulls the endpoints of every edge toward the configured link
// distance. Strength is 1/min(degree) and the correction is split between the
// endpoints by degree so hub nodes move less.
func (s *Simulation) applyLink() {
	for i, e := range s.links {
		src := &s.nodes[e.Source]
		dst := &s.nodes[e.Target]

		d := r2.Sub(r2.Add(dst.Pos, dst.Vel), r2.Add(src.Pos, src.Vel))
		if d.X == 0 {
			d.X = s.jiggle()
		}
		if d.Y == 0 {
			d.Y = s.jiggle()
		}

		l := r2.Norm(d)
		k := (l - s.cfg.LinkDistance) / l * s.alpha * s.linkStrength[i]
		d = r2.Scale(k, d)

		b := s.linkBias[i]
		dst.Vel = r2.Sub(dst.Vel, r2.Scale(b, d))
		src.Vel = r2.Add(src.Vel, r2.Scale(1-b, d))
	}
}

// applyManyBody applies the pairwise charge force. With a negative strength
// every pair repels with magnitude proportional to 1/distance.
func (s *Simulation) applyManyBody() {
	minSq := s.cfg.DistanceMin * s.cfg.DistanceMin

	for i := range s.nodes {
		n := &s.nodes[i]
		for j := range s.nodes {
			if i == j {
				continue
			}

			d := r2.Sub(s.nodes[j].Pos, n.Pos)
			if d.X == 0 {
				d.X = s.jiggle()
			}
			if d.Y == 0 {
				d.Y = s.jiggle()
			}

			l := r2.Norm2(d)
			if l < minSq {
				l = math.Sqrt(minSq * l)
			}

			w := s.cfg.ChargeStrength * s.alpha / l
			n.Vel = r2.Add(n.Vel, r2.Scale(w, d))
		}
	}
}

// applyCenter translates the layout so its centroid sits on the canvas centre
func (s *Simulation) applyCenter() {
	if len(s.nodes) == 0 {
		return
	}

	var sum r2.Vec
	for _, n := range s.nodes {
		sum = r2.Add(sum, n.Pos)
	}
	centroid := r2.Scale(1/float64(len(s.nodes)), sum)
	shift := r2.Scale(s.cfg.CenterStrength, r2.Sub(centroid, s.center()))

	for i := range s.nodes {
		s.nodes[i].Pos = r2.Sub(s.nodes[i].Pos, shift)
	}
}

// jiggle returns a tiny random offset used to separate coincident nodes
func (s *Simulation) jiggle() float64 {
	return (s.rnd.Float64() - 0.5) * 1e-6
}
