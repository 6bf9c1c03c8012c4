package verify

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"testing"
)

type fakeDetector struct {
	dets []Detection
	err  error
}

func (f *fakeDetector) Detect([]byte) ([]Detection, error) { return f.dets, f.err }
func (f *fakeDetector) Close() error                       { return nil }

func testJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestFaceVerifier(t *testing.T) {
	face := func(c float64) Detection { return Detection{X: 0.2, Y: 0.2, W: 0.3, H: 0.4, Confidence: c} }

	tests := []struct {
		name       string
		dets       []Detection
		wantMatch  bool
		wantReason string
	}{
		{"no faces", nil, false, ReasonNoFace},
		{"one face", []Detection{face(0.9)}, true, ""},
		{"one face at threshold", []Detection{face(0.6)}, true, ""},
		{"one weak face", []Detection{face(0.3)}, false, ReasonLowScore},
		{"two faces", []Detection{face(0.9), face(0.8)}, false, ReasonManyFaces},
		{"one strong one weak", []Detection{face(0.9), face(0.1)}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewFaceVerifier(&fakeDetector{dets: tt.dets}, 0.6)
			v.EmployeeID = 7

			d, err := v.Verify(context.Background(), testJPEG(t))
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if d.Match != tt.wantMatch {
				t.Errorf("Match = %v, want %v", d.Match, tt.wantMatch)
			}
			if d.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.wantReason)
			}
			if d.Match && d.EmployeeID != 7 {
				t.Errorf("EmployeeID = %d, want 7", d.EmployeeID)
			}
		})
	}
}

func TestFaceVerifierDetectorError(t *testing.T) {
	boom := errors.New("boom")
	v := NewFaceVerifier(&fakeDetector{err: boom}, 0.5)

	if _, err := v.Verify(context.Background(), testJPEG(t)); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}

func TestFaceVerifierCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := NewFaceVerifier(&fakeDetector{dets: []Detection{{Confidence: 1}}}, 0.5)
	if _, err := v.Verify(ctx, testJPEG(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCountVerifier(t *testing.T) {
	v := NewCountVerifier(3)
	img := testJPEG(t)

	var got []bool
	for i := 0; i < 6; i++ {
		d, err := v.Verify(context.Background(), img)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		got = append(got, d.Match)
	}

	want := []bool{false, false, true, false, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d: Match = %v, want %v", i+1, got[i], want[i])
		}
	}
}

func TestCountVerifierRejectsGarbage(t *testing.T) {
	v := NewCountVerifier(1)

	d, err := v.Verify(context.Background(), []byte("not an image"))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if d.Match || d.Reason != ReasonUndecoded {
		t.Errorf("decision = %+v, want undecoded rejection", d)
	}

	// Garbage does not advance the counter.
	d, _ = v.Verify(context.Background(), testJPEG(t))
	if !d.Match {
		t.Error("first real frame should match with n=1")
	}
}

func TestNewCountVerifierClampsN(t *testing.T) {
	if v := NewCountVerifier(0); v.After != 1 {
		t.Errorf("After = %d, want 1", v.After)
	}
}

func TestCountVerifierZeroValue(t *testing.T) {
	var v CountVerifier

	d, err := v.Verify(context.Background(), testJPEG(t))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !d.Match {
		t.Error("zero-value verifier should accept every frame")
	}
}

func TestNewYuNetMissingModel(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.ModelPath = "/nonexistent/model.onnx"

	if _, err := NewYuNet(cfg); err == nil {
		t.Error("expected error for missing model")
	}
}

func TestDetectionArea(t *testing.T) {
	d := Detection{W: 0.5, H: 0.4}
	if got := d.Area(); got < 0.1999 || got > 0.2001 {
		t.Errorf("Area() = %v, want 0.2", got)
	}
}
