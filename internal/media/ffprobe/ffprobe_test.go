package ffprobe

import (
	"context"
	"strings"
	"testing"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    float64
		wantErr string
	}{
		{name: "plain seconds", raw: "123.456\n", want: 123.456},
		{name: "integer seconds", raw: "90", want: 90},
		{name: "surrounding whitespace", raw: "  42.5  \n", want: 42.5},
		{name: "empty output", raw: "\n", wantErr: "empty output"},
		{name: "non numeric", raw: "N/A\n", wantErr: "non-numeric"},
		{name: "negative", raw: "-3.2", wantErr: "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.raw)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("duration = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDurationRejectsEmptyPath(t *testing.T) {
	if _, err := Duration(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
