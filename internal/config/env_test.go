package config

import (
	"testing"
	"time"
)

func TestString(t *testing.T) {
	t.Setenv("CAMERA_DEVICE", "")
	if got := CameraDevice(DefaultDevice); got != DefaultDevice {
		t.Errorf("CameraDevice() = %q, want %q", got, DefaultDevice)
	}

	t.Setenv("CAMERA_DEVICE", "/dev/video2")
	if got := CameraDevice(DefaultDevice); got != "/dev/video2" {
		t.Errorf("CameraDevice() = %q, want /dev/video2", got)
	}
}

func TestPortAndMode(t *testing.T) {
	t.Setenv("CAMSERVE_PORT", "9000")
	t.Setenv("CAMSERVE_MODE", "pull")

	if got := Port(DefaultPort); got != "9000" {
		t.Errorf("Port() = %q", got)
	}
	if got := Mode(DefaultMode); got != "pull" {
		t.Errorf("Mode() = %q", got)
	}
}

func TestInt(t *testing.T) {
	tests := []struct {
		name string
		val  string
		want int
	}{
		{"unset", "", 7},
		{"valid", "42", 42},
		{"invalid", "forty", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CAMSERVE_TEST_INT", tt.val)
			if got := Int("CAMSERVE_TEST_INT", 7); got != tt.want {
				t.Errorf("Int() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("CAMSERVE_TEST_DUR", "250ms")
	if got := Duration("CAMSERVE_TEST_DUR", time.Second); got != 250*time.Millisecond {
		t.Errorf("Duration() = %v", got)
	}

	t.Setenv("CAMSERVE_TEST_DUR", "soon")
	if got := Duration("CAMSERVE_TEST_DUR", time.Second); got != time.Second {
		t.Errorf("Duration() with invalid value = %v", got)
	}
}

func TestBool(t *testing.T) {
	tests := []struct {
		val  string
		def  bool
		want bool
	}{
		{"", true, true},
		{"true", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"false", true, false},
		{"nope", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.val, func(t *testing.T) {
			t.Setenv("CAMSERVE_TEST_BOOL", tt.val)
			if got := Bool("CAMSERVE_TEST_BOOL", tt.def); got != tt.want {
				t.Errorf("Bool(%q) = %v, want %v", tt.val, got, tt.want)
			}
		})
	}
}
