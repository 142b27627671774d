package v4l2

import (
	"math"
	"testing"
)

func TestFormatFourCC(t *testing.T) {
	tests := []struct {
		name     string
		format   uint32
		expected string
	}{
		{
			name:     "YUYV format",
			format:   PixFmtYUYV,
			expected: "YUYV",
		},
		{
			name:     "YU12 format",
			format:   PixFmtYU12,
			expected: "YU12",
		},
		{
			name:     "RGB24 format",
			format:   PixFmtRGB24,
			expected: "RGB3",
		},
		{
			name:     "BGR24 format",
			format:   PixFmtBGR24,
			expected: "BGR3",
		},
		{
			name:     "MJPEG format",
			format:   PixFmtMJPEG,
			expected: "MJPG",
		},
		{
			name:     "null bytes",
			format:   0x00000000,
			expected: "\x00\x00\x00\x00",
		},
		{
			name:     "mixed bytes",
			format:   0x01020304,
			expected: "\x04\x03\x02\x01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatFourCC(tt.format)
			if result != tt.expected {
				t.Errorf("FormatFourCC(0x%08X) = %q, want %q", tt.format, result, tt.expected)
			}
		})
	}
}

func TestFourCC(t *testing.T) {
	tests := []struct {
		code     string
		expected uint32
	}{
		{"YUYV", PixFmtYUYV},
		{"YU12", PixFmtYU12},
		{"RGB3", PixFmtRGB24},
		{"BGR3", PixFmtBGR24},
		{"MJPG", PixFmtMJPEG},
		{"Y8", 0x20203859},
	}

	for _, tt := range tests {
		if got := FourCC(tt.code); got != tt.expected {
			t.Errorf("FourCC(%q) = 0x%08X, want 0x%08X", tt.code, got, tt.expected)
		}
		if len(tt.code) == 4 && FormatFourCC(FourCC(tt.code)) != tt.code {
			t.Errorf("FourCC(%q) does not round trip", tt.code)
		}
	}
}

func TestFramerateFPS(t *testing.T) {
	tests := []struct {
		name     string
		rate     Framerate
		expected float64
	}{
		{"30 fps", Framerate{Numerator: 1, Denominator: 30}, 30},
		{"NTSC", Framerate{Numerator: 1001, Denominator: 30000}, 29.97},
		{"zero numerator", Framerate{Numerator: 0, Denominator: 30}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rate.FPS(); math.Abs(got-tt.expected) > 0.01 {
				t.Errorf("FPS() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDeviceInfoCaps(t *testing.T) {
	tests := []struct {
		name    string
		caps    uint32
		capture bool
		output  bool
	}{
		{"capture", CapVideoCapture | CapStreaming, true, false},
		{"loopback output", CapVideoOutput | CapReadWrite, false, true},
		{"both", CapVideoCapture | CapVideoOutput, true, true},
		{"neither", CapStreaming, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DeviceInfo{Caps: tt.caps}
			if d.IsCapture() != tt.capture || d.IsOutput() != tt.output {
				t.Errorf("IsCapture/IsOutput = %v/%v, want %v/%v",
					d.IsCapture(), d.IsOutput(), tt.capture, tt.output)
			}
		})
	}
}
