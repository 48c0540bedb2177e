package camera

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"
)

// OpenCVDevice reads frames from a local video capture device through
// OpenCV, at the device's default resolution and format.
type OpenCVDevice struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
}

// OpenCV opens the video capture device with the given index.
func OpenCV(deviceID int) (*OpenCVDevice, error) {
	capture, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera device %d: %w", deviceID, err)
	}
	return &OpenCVDevice{
		capture: capture,
		mat:     gocv.NewMat(),
	}, nil
}

// ReadFrame grabs one frame and returns it JPEG-encoded.
func (d *OpenCVDevice) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok := d.capture.Read(&d.mat); !ok || d.mat.Empty() {
		return nil, ErrFrameRead
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, d.mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	frame := make([]byte, buf.Len())
	copy(frame, buf.GetBytes())
	return frame, nil
}

// Close releases the capture device.
func (d *OpenCVDevice) Close() error {
	d.mat.Close()
	if err := d.capture.Close(); err != nil {
		return fmt.Errorf("failed to close camera: %w", err)
	}
	return nil
}
