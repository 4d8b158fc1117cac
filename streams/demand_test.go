package streams

import "testing"

func TestAddDemand(t *testing.T) {
	tests := []struct {
		name    string
		current int64
		n       int64
		want    int64
	}{
		{"simple", 0, 5, 5},
		{"accumulate", 3, 4, 7},
		{"to unbounded", 5, Unbounded, Unbounded},
		{"already unbounded", Unbounded, 1, Unbounded},
		{"overflow saturates", Unbounded - 1, 2, Unbounded},
		{"near limit stays exact", Unbounded - 3, 1, Unbounded - 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AddDemand(tt.current, tt.n); got != tt.want {
				t.Errorf("AddDemand(%d, %d) = %d, want %d", tt.current, tt.n, got, tt.want)
			}
		})
	}
}
