package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hoangtv/parking-services/internal/camera"
)

// ErrCameraUnavailable means at least one of the lane's cameras has no
// cached frame: it never connected or is currently down.
var ErrCameraUnavailable = errors.New("camera has no frame available")

// FrameProvider is the read side of a camera source.
type FrameProvider interface {
	LatestFrame() *camera.Frame
}

// Synchronizer persists one front/rear image pair per transaction.
// Writes are all-or-nothing: a capture never leaves a single orphan
// image on disk.
type Synchronizer struct {
	root string
	now  func() time.Time
}

func NewSynchronizer(root string) (*Synchronizer, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create image root %s: %w", root, err)
	}
	return &Synchronizer{root: root, now: time.Now}, nil
}

// WithClock replaces the time source. Tests only.
func (s *Synchronizer) WithClock(now func() time.Time) *Synchronizer {
	s.now = now
	return s
}

// Capture reads both cameras' latest frames at nearly the same instant
// and writes them under <root>/<LANE>_<yyyymmdd>/. The two reads carry
// no cross-camera atomicity beyond each source's own refresh interval.
func (s *Synchronizer) Capture(lane string, front, rear FrameProvider) (string, string, error) {
	frontFrame := front.LatestFrame()
	rearFrame := rear.LatestFrame()

	if frontFrame == nil || len(frontFrame.Data) == 0 ||
		rearFrame == nil || len(rearFrame.Data) == 0 {
		return "", "", ErrCameraUnavailable
	}

	now := s.now()
	dayDir := filepath.Join(s.root, fmt.Sprintf("%s_%s", lane, now.Format("20060102")))
	if err := os.MkdirAll(dayDir, 0755); err != nil {
		return "", "", fmt.Errorf("create capture dir %s: %w", dayDir, err)
	}

	stamp := now.Format("20060102_150405")
	frontPath := filepath.Join(dayDir, fmt.Sprintf("%s_%s_front.jpg", lane, stamp))
	rearPath := filepath.Join(dayDir, fmt.Sprintf("%s_%s_rear.jpg", lane, stamp))

	if err := os.WriteFile(frontPath, frontFrame.Data, 0644); err != nil {
		return "", "", fmt.Errorf("write front image: %w", err)
	}

	if err := os.WriteFile(rearPath, rearFrame.Data, 0644); err != nil {
		// roll back the front image so the pair is all-or-nothing
		if rmErr := os.Remove(frontPath); rmErr != nil {
			log.Errorf("orphan cleanup failed for %s: %v", frontPath, rmErr)
		}
		return "", "", fmt.Errorf("write rear image: %w", err)
	}

	return frontPath, rearPath, nil
}
