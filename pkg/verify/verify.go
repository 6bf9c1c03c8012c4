// Package verify decides whether an uploaded frame is good enough to
// record a check-in.
package verify

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"sync"
)

// Rejection reasons.
const (
	ReasonNoFace    = "no face"
	ReasonManyFaces = "more than one face"
	ReasonLowScore  = "face below confidence threshold"
	ReasonNotYet    = "not enough frames"
	ReasonUndecoded = "not a jpeg"
)

// Decision is the outcome of verifying one frame.
type Decision struct {
	Match      bool
	EmployeeID int
	Reason     string
}

// Verifier checks one JPEG frame.
// A rejected frame is not an error; errors are for broken inputs or backends.
type Verifier interface {
	Verify(ctx context.Context, jpeg []byte) (Decision, error)
}

// FaceVerifier accepts frames showing exactly one confident face.
// Identifying whose face it is happens elsewhere; every match is credited
// to EmployeeID.
type FaceVerifier struct {
	detector   Detector
	threshold  float64
	EmployeeID int
}

// NewFaceVerifier wraps a detector. Faces scoring below threshold count
// as absent.
func NewFaceVerifier(d Detector, threshold float64) *FaceVerifier {
	return &FaceVerifier{detector: d, threshold: threshold}
}

// Verify implements Verifier.
func (v *FaceVerifier) Verify(ctx context.Context, data []byte) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	dets, err := v.detector.Detect(data)
	if err != nil {
		return Decision{}, fmt.Errorf("detect faces: %w", err)
	}

	var faces []Detection
	for _, d := range dets {
		if d.Confidence >= v.threshold {
			faces = append(faces, d)
		}
	}

	switch {
	case len(faces) == 1:
		return Decision{Match: true, EmployeeID: v.EmployeeID}, nil
	case len(faces) > 1:
		return Decision{Reason: ReasonManyFaces}, nil
	case len(dets) > 0:
		return Decision{Reason: ReasonLowScore}, nil
	default:
		return Decision{Reason: ReasonNoFace}, nil
	}
}

// CountVerifier accepts every After-th decodable JPEG; After below 1
// accepts every frame. It exercises the whole pipeline without a face
// model; development and tests only.
type CountVerifier struct {
	After      int
	EmployeeID int

	mu   sync.Mutex
	seen int
}

// NewCountVerifier accepts the nth frame, then every nth after it.
func NewCountVerifier(n int) *CountVerifier {
	if n < 1 {
		n = 1
	}
	return &CountVerifier{After: n}
}

// Verify implements Verifier.
func (v *CountVerifier) Verify(ctx context.Context, data []byte) (Decision, error) {
	if _, err := jpeg.DecodeConfig(bytes.NewReader(data)); err != nil {
		return Decision{Reason: ReasonUndecoded}, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	n := v.After
	if n < 1 {
		n = 1
	}

	v.seen++
	if v.seen%n != 0 {
		return Decision{Reason: ReasonNotYet}, nil
	}
	return Decision{Match: true, EmployeeID: v.EmployeeID}, nil
}
