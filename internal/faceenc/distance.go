package faceenc

import "math"

// Distance computes the Euclidean distance between two face encodings.
// Lower distance means more similar faces. Returns +Inf for encodings
// of mismatched or zero length.
func Distance(a, b Encoding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// Distances computes the distance between each known encoding and the
// probe. The result preserves the order of the known encodings.
func Distances(known []Encoding, probe Encoding) []float64 {
	distances := make([]float64, len(known))
	for i, enc := range known {
		distances[i] = Distance(enc, probe)
	}
	return distances
}

// CompareFaces flags which known encodings are within tolerance of the
// probe, in known-encoding order.
func CompareFaces(known []Encoding, probe Encoding, tolerance float64) []bool {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	matches := make([]bool, len(known))
	for i, d := range Distances(known, probe) {
		matches[i] = d <= tolerance
	}
	return matches
}
