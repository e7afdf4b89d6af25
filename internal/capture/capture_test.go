package capture_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hoangtv/parking-services/internal/camera"
	"github.com/hoangtv/parking-services/internal/capture"
)

type stubProvider struct {
	frame *camera.Frame
}

func (p *stubProvider) LatestFrame() *camera.Frame {
	return p.frame
}

func frame(data string) *stubProvider {
	return &stubProvider{frame: &camera.Frame{Data: []byte(data), At: time.Now()}}
}

func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	err := filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return n
}

func TestCapture_WritesPairUnderDatedDir(t *testing.T) {
	root := t.TempDir()
	sync, err := capture.NewSynchronizer(root)
	if err != nil {
		t.Fatalf("NewSynchronizer: %v", err)
	}
	at := time.Date(2024, 3, 5, 14, 30, 15, 0, time.Local)
	sync.WithClock(func() time.Time { return at })

	frontRef, rearRef, err := sync.Capture("ENTRY", frame("front-bytes"), frame("rear-bytes"))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	wantFront := filepath.Join(root, "ENTRY_20240305", "ENTRY_20240305_143015_front.jpg")
	wantRear := filepath.Join(root, "ENTRY_20240305", "ENTRY_20240305_143015_rear.jpg")
	if frontRef != wantFront {
		t.Errorf("front ref = %s, want %s", frontRef, wantFront)
	}
	if rearRef != wantRear {
		t.Errorf("rear ref = %s, want %s", rearRef, wantRear)
	}

	data, err := os.ReadFile(frontRef)
	if err != nil || string(data) != "front-bytes" {
		t.Errorf("front image content = %q, err = %v", data, err)
	}
	data, err = os.ReadFile(rearRef)
	if err != nil || string(data) != "rear-bytes" {
		t.Errorf("rear image content = %q, err = %v", data, err)
	}
}

func TestCapture_FailsWhenOneCameraEmpty(t *testing.T) {
	root := t.TempDir()
	sync, err := capture.NewSynchronizer(root)
	if err != nil {
		t.Fatalf("NewSynchronizer: %v", err)
	}

	cases := []struct {
		name  string
		front capture.FrameProvider
		rear  capture.FrameProvider
	}{
		{"front never connected", &stubProvider{}, frame("rear")},
		{"rear never connected", frame("front"), &stubProvider{}},
		{"front empty frame", &stubProvider{frame: &camera.Frame{}}, frame("rear")},
		{"both missing", &stubProvider{}, &stubProvider{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := sync.Capture("EXIT", tc.front, tc.rear)
			if !errors.Is(err, capture.ErrCameraUnavailable) {
				t.Fatalf("expected ErrCameraUnavailable, got %v", err)
			}
			if n := countFiles(t, root); n != 0 {
				t.Errorf("expected zero files on disk, found %d", n)
			}
		})
	}
}

func TestCapture_NoOrphanOnRearWriteFailure(t *testing.T) {
	root := t.TempDir()
	sync, err := capture.NewSynchronizer(root)
	if err != nil {
		t.Fatalf("NewSynchronizer: %v", err)
	}
	at := time.Date(2024, 3, 5, 9, 0, 0, 0, time.Local)
	sync.WithClock(func() time.Time { return at })

	// pre-create the rear path as a directory so its write fails after
	// the front image is already on disk
	dayDir := filepath.Join(root, "ENTRY_20240305")
	rearPath := filepath.Join(dayDir, "ENTRY_20240305_090000_rear.jpg")
	if err := os.MkdirAll(rearPath, 0755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, _, err = sync.Capture("ENTRY", frame("front"), frame("rear"))
	if err == nil {
		t.Fatal("expected write failure")
	}

	if n := countFiles(t, root); n != 0 {
		t.Errorf("expected orphan front image to be removed, found %d files", n)
	}
}
