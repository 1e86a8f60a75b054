package rules

// Scripted replays fixed values, for tests. When a list runs out the last
// value repeats; an empty list yields 0.
type Scripted struct {
	Floats []float64
	Ints   []int

	fi, ii int
}

func (s *Scripted) Float64() float64 {
	if len(s.Floats) == 0 {
		return 0
	}
	v := s.Floats[min(s.fi, len(s.Floats)-1)]
	s.fi++
	return v
}

// IntN clamps the scripted value into [0,n).
func (s *Scripted) IntN(n int) int {
	if len(s.Ints) == 0 || n <= 0 {
		return 0
	}
	v := s.Ints[min(s.ii, len(s.Ints)-1)]
	s.ii++
	return max(0, min(v, n-1))
}
