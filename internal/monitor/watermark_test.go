package monitor

import "testing"

func TestWatermarkAdvance(t *testing.T) {
	tests := []struct {
		name      string
		start     int64
		observed  []int64
		want      int64
		wantMoved bool
	}{
		{"no changes leaves it unchanged", 1000, nil, 1000, false},
		{"advances to minimum not maximum", 1000, []int64{5000, 2000, 3000}, 2000, true},
		{"single value", 1000, []int64{1500}, 1500, true},
		{"never regresses", 1000, []int64{900, 4000}, 1000, false},
		{"equal value is not a move", 1000, []int64{1000}, 1000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWatermark(tt.start)
			moved := w.Advance(tt.observed)
			if moved != tt.wantMoved {
				t.Errorf("Advance() moved = %v, want %v", moved, tt.wantMoved)
			}
			if got := w.Value(); got != tt.want {
				t.Errorf("Value() = %d, want %d", got, tt.want)
			}
		})
	}
}
