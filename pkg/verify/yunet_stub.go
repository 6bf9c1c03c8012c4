//go:build !gocv

package verify

import "errors"

// ErrYuNetNotBuilt is returned by NewYuNet in binaries built without
// -tags gocv.
var ErrYuNetNotBuilt = errors.New("yunet detector not built (rebuild with -tags gocv)")

// YuNetDetector is unavailable without OpenCV support.
type YuNetDetector struct{}

// NewYuNet always fails without OpenCV support.
func NewYuNet(cfg DetectorConfig) (*YuNetDetector, error) {
	return nil, ErrYuNetNotBuilt
}

// Detect implements Detector.
func (d *YuNetDetector) Detect(jpeg []byte) ([]Detection, error) {
	return nil, ErrYuNetNotBuilt
}

// Close implements Detector.
func (d *YuNetDetector) Close() error {
	return nil
}
