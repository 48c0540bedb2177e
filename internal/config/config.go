package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed labels.yaml
var labelsYAML []byte

type Config struct {
	Workbook WorkbookConfig
	Encoder  EncoderConfig
	Camera   CameraConfig
	Match    MatchConfig
	Server   ServerConfig
	Labels   LabelsConfig
}

type WorkbookConfig struct {
	Path            string // path to the attendance workbook (.xlsx)
	RegistrySheet   string // sheet with registered faces (Image Path, Name)
	AttendanceSheet string // sheet with attendance rows (Name, Timestamp, Action)
}

type EncoderConfig struct {
	URL   string // face encoder service base URL, defaults to http://localhost:8000
	Model string // model name for reference only
}

type CameraConfig struct {
	Device     int    // video capture device index, defaults to 0
	IntervalMS int    // delay between frames in milliseconds
	ReplayDir  string // when set, frames are read from this directory instead of a camera
}

type MatchConfig struct {
	Tolerance float64 // maximum face distance for a match, defaults to 0.6
	Policy    string  // "first" (current behavior) or "nearest"
}

type ServerConfig struct {
	Host string
	Port int
}

type LabelsConfig struct {
	Actions ActionLabels `yaml:"actions"`
	UI      UILabels     `yaml:"ui"`
}

type ActionLabels struct {
	ClockIn  string `yaml:"clock_in"`
	ClockOut string `yaml:"clock_out"`
}

type UILabels struct {
	Title       string `yaml:"title"`
	Prompt      string `yaml:"prompt"`
	Success     string `yaml:"success"`
	Failure     string `yaml:"failure"`
	CameraError string `yaml:"camera_error"`
}

// envInt reads an environment variable and parses it as a non-negative integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// CaptureInterval returns the delay between processed frames.
func (c *Config) CaptureInterval() time.Duration {
	return time.Duration(c.Camera.IntervalMS) * time.Millisecond
}

func Load() *Config {
	var labels LabelsConfig
	if err := yaml.Unmarshal(labelsYAML, &labels); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded labels.yaml: " + err.Error())
	}

	return &Config{
		Workbook: WorkbookConfig{
			Path:            os.Getenv("ATTENDANCE_WORKBOOK"),
			RegistrySheet:   envString("REGISTERED_FACES_SHEET", "registered_faces"),
			AttendanceSheet: envString("ATTENDANCE_SHEET", "attendance"),
		},
		Encoder: EncoderConfig{
			URL:   os.Getenv("FACE_ENCODER_URL"),
			Model: os.Getenv("FACE_ENCODER_MODEL"),
		},
		Camera: CameraConfig{
			Device:     envInt("CAMERA_DEVICE", 0),
			IntervalMS: envInt("CAPTURE_INTERVAL_MS", 200),
			ReplayDir:  os.Getenv("CAMERA_REPLAY_DIR"),
		},
		Match: MatchConfig{
			Tolerance: envFloat("FACE_TOLERANCE", 0.6),
			Policy:    envString("MATCH_POLICY", "first"),
		},
		Server: ServerConfig{
			Host: envString("KIOSK_HOST", "0.0.0.0"),
			Port: envInt("KIOSK_PORT", 8080),
		},
		Labels: labels,
	}
}
