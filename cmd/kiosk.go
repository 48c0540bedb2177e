package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kozaktomas/attendance-kiosk/internal/attendance"
	"github.com/kozaktomas/attendance-kiosk/internal/camera"
	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/faceenc"
	"github.com/kozaktomas/attendance-kiosk/internal/matcher"
	"github.com/kozaktomas/attendance-kiosk/internal/registry"
)

// buildEncoder creates the face encoder client from config.
func buildEncoder(cfg *config.Config) *faceenc.Client {
	return faceenc.NewClient(cfg.Encoder.URL, cfg.Encoder.Model)
}

// loadRegistry encodes every registered face photo. Startup fails when
// any photo is missing or yields no face, so a misconfigured workbook is
// caught before the first session.
func loadRegistry(ctx context.Context, cfg *config.Config, enc *faceenc.Client) (*registry.Registry, error) {
	reg, err := registry.Load(ctx, cfg.Workbook.Path, cfg.Workbook.RegistrySheet, enc)
	if err != nil {
		return nil, fmt.Errorf("failed to load face registry: %w", err)
	}
	if reg.Len() == 0 {
		return nil, fmt.Errorf("no registered faces in sheet %q of %s", cfg.Workbook.RegistrySheet, cfg.Workbook.Path)
	}
	return reg, nil
}

// buildMatcher creates a matcher over the registry's encodings.
func buildMatcher(cfg *config.Config, reg *registry.Registry) (*matcher.Matcher, error) {
	policy, err := matcher.ParsePolicy(cfg.Match.Policy)
	if err != nil {
		return nil, err
	}
	return matcher.New(reg.Encodings(), cfg.Match.Tolerance, policy), nil
}

// openDevice opens the configured frame source. A replay directory
// takes precedence over the physical camera, which keeps development
// machines without a webcam usable.
func openDevice(cfg *config.Config) (camera.Device, error) {
	if cfg.Camera.ReplayDir != "" {
		return camera.Replay(cfg.Camera.ReplayDir)
	}
	return camera.OpenCV(cfg.Camera.Device)
}

func newAttendanceLog(cfg *config.Config) *attendance.Log {
	return attendance.NewLog(cfg.Workbook.Path, cfg.Workbook.AttendanceSheet)
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
