package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	available := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		want       int
	}{
		{"cpu bound", 1.0, 0, available},
		{"io bound", 2.0, 0, available * 2},
		{"capped", 2.0, 1, 1},
		{"tiny multiplier floors at one", 0.0001, 0, 1},
		{"zero multiplier floors at one", 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.multiplier, tt.limit); got != tt.want {
				t.Errorf("Count(%v, %d) = %d, want %d", tt.multiplier, tt.limit, got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		override int
		limit    int
		want     int
	}{
		{"override wins", 3, 0, 3},
		{"override capped by limit", 10, 4, 4},
		{"zero override falls back", 0, 1, 1},
		{"negative override falls back", -2, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.override, 1.5, tt.limit); got != tt.want {
				t.Errorf("Resolve(%d, 1.5, %d) = %d, want %d", tt.override, tt.limit, got, tt.want)
			}
		})
	}
}

func TestHelpersOrdering(t *testing.T) {
	cpu, mixed, io := ForCPU(0), ForMixed(0), ForIO(0)
	if cpu > mixed || mixed > io {
		t.Errorf("expected ForCPU <= ForMixed <= ForIO, got %d, %d, %d", cpu, mixed, io)
	}
	for _, n := range []int{ForCPU(2), ForMixed(2), ForIO(2)} {
		if n < 1 || n > 2 {
			t.Errorf("helper with limit 2 returned %d", n)
		}
	}
}

func BenchmarkCount(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = Count(1.5, 8)
	}
}
