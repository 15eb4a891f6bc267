package paper

import "testing"

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		u, v Embedding
		want float64
	}{
		{"identical", Embedding{1, 0, 0}, Embedding{1, 0, 0}, 1},
		{"orthogonal", Embedding{1, 0}, Embedding{0, 1}, 0},
		{"opposite", Embedding{1, 0}, Embedding{-1, 0}, -1},
		{"empty", Embedding{}, Embedding{1, 2}, 0},
		{"length mismatch", Embedding{1, 2}, Embedding{1, 2, 3}, 0},
		{"zero vector", Embedding{0, 0}, Embedding{1, 1}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineSimilarity(tc.u, tc.v)
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tc.u, tc.v, got, tc.want)
			}
		})
	}
}
