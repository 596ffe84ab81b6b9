package trace

import "testing"

func TestIsValidTraceparent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{
			name:  "valid sampled",
			input: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
			want:  true,
		},
		{
			name:  "valid unsampled",
			input: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-00",
			want:  true,
		},
		{
			name:  "reserved version ff",
			input: "ff-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
			want:  false,
		},
		{
			name:  "zero trace id",
			input: "00-00000000000000000000000000000000-00f067aa0ba902b7-01",
			want:  false,
		},
		{
			name:  "zero span id",
			input: "00-4bf92f3577b34da6a3ce929d0e0e4736-0000000000000000-01",
			want:  false,
		},
		{
			name:  "uppercase hex rejected",
			input: "00-4BF92F3577B34DA6A3CE929D0E0E4736-00f067aa0ba902b7-01",
			want:  false,
		},
		{
			name:  "trace id too short",
			input: "00-4bf92f3577b34da6a3ce929d0e0e473-00f067aa0ba902b7-01",
			want:  false,
		},
		{name: "empty", input: "", want: false},
		{name: "garbage", input: "not-a-traceparent", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidTraceparent(tt.input); got != tt.want {
				t.Errorf("IsValidTraceparent(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewTraceparent(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tp := NewTraceparent()
		if !IsValidTraceparent(tp) {
			t.Fatalf("NewTraceparent() = %q, not well-formed", tp)
		}
		if seen[tp] {
			t.Fatalf("NewTraceparent() repeated value %q", tp)
		}
		seen[tp] = true
	}
}

func TestTraceID(t *testing.T) {
	tp := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	if got := TraceID(tp); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("TraceID() = %q", got)
	}
	if got := TraceID("malformed"); got != "" {
		t.Errorf("TraceID(malformed) = %q, want empty", got)
	}
}
