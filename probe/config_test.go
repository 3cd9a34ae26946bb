package probe

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-lab/go/rtx"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	want := Config{Attempts: 3, PingTimeout: 800 * time.Millisecond, MinSuccesses: 2}
	if cfg != want {
		t.Errorf("DefaultConfig() = %+v, want %+v", cfg, want)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    Config
		wantErr bool
	}{
		{
			name: "full",
			content: "attempts: 5\nping_timeout: 1500ms\nmin_successes: 4\n" +
				"expect_bytes: 2048\nmin_throughput_kbps: 64\n",
			want: Config{Attempts: 5, PingTimeout: 1500 * time.Millisecond, MinSuccesses: 4,
				ExpectBytes: 2048, MinThroughputKbps: 64},
		},
		{
			name:    "partial",
			content: "min_throughput_kbps: 8\n",
			want: Config{Attempts: 3, PingTimeout: 800 * time.Millisecond, MinSuccesses: 2,
				MinThroughputKbps: 8},
		},
		{
			name:    "invalid",
			content: "attempts: 1\nmin_successes: 3\n",
			wantErr: true,
		},
		{
			name:    "malformed",
			content: "attempts: [\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			rtx.Must(os.WriteFile(path, []byte(tt.content), 0644), "failed to write %s", path)
			got, err := LoadConfig(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadConfig() error = %v, wantErr %t", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("LoadConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadConfig() of a missing file succeeded")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "zero-attempts", cfg: Config{PingTimeout: time.Second}},
		{name: "negative-expect", cfg: Config{Attempts: 1, PingTimeout: time.Second, ExpectBytes: -1}, wantErr: true},
		{name: "negative-min", cfg: Config{Attempts: 1, PingTimeout: time.Second, MinSuccesses: -1}, wantErr: true},
		{name: "nan-floor", cfg: Config{Attempts: 1, PingTimeout: time.Second, MinThroughputKbps: math.NaN()}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %t", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestResult_JSON(t *testing.T) {
	tests := []struct {
		name string
		in   Result
		want string
	}{
		{
			name: "measured",
			in:   Result{Passes: true, OK: 2, AvgMs: 100, Kbps: 19.53125},
			want: `{"passes":true,"ok":2,"avgMs":100,"kbps":19.53125}`,
		},
		{
			name: "no-data",
			in:   Result{OK: 0, AvgMs: math.Inf(1)},
			want: `{"passes":false,"ok":0,"avgMs":null,"kbps":0}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.in)
			rtx.Must(err, "failed to marshal %+v", tt.in)
			if string(b) != tt.want {
				t.Errorf("json.Marshal() = %s, want %s", b, tt.want)
			}
			var back Result
			rtx.Must(json.Unmarshal(b, &back), "failed to unmarshal %s", b)
			if back != tt.in {
				t.Errorf("json.Unmarshal() = %+v, want %+v", back, tt.in)
			}
		})
	}
}
