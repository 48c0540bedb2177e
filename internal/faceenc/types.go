// Package faceenc talks to the external face encoder service and provides
// the distance primitives used to compare the encodings it returns.
package faceenc

// Encoding is a fixed-length face descriptor produced by the encoder
// service. Two encodings of the same person are close under Euclidean
// distance.
type Encoding []float32

// Face is a single face detected in an image.
type Face struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Encoding  Encoding  `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2] in pixels
	DetScore  float64   `json:"det_score"`
}

// Result is the response for one encoded image.
type Result struct {
	FacesCount int    `json:"faces_count"`
	Faces      []Face `json:"faces"`
	Model      string `json:"model"`
}

// DefaultTolerance is the maximum distance at which two encodings are
// considered the same identity. Matches the upstream face_recognition
// library default.
const DefaultTolerance = 0.6
