package attempt

import "math/rand/v2"

// Shuffled returns a new slice with the elements of s in uniformly random
// order. The input is never mutated, so callers can keep the original
// ordering around (answer keys are matched by option ID, not position).
func Shuffled[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	for i := len(out) - 1; i > 0; i-- {
		j := rand.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
