package ai

import (
	"math/rand/v2"
	"testing"
)

// gaussianGroup n строк вокруг center с шумом sigma
func gaussianGroup(rng *rand.Rand, n, dim int, center, sigma float64) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, dim)
		for d := range rows[i] {
			rows[i][d] = center + rng.NormFloat64()*sigma
		}
	}
	return rows
}

func clusterConfig() DiarizationConfig {
	return DefaultDiarizationConfig()
}

func TestClusterFewRows(t *testing.T) {
	c := NewSpeakerClusterer(clusterConfig())

	res := c.ClusterVectors(nil)
	if len(res.Labels) != 0 {
		t.Errorf("expected no labels, got %v", res.Labels)
	}

	res = c.ClusterVectors([][]float64{{1, 2, 3}})
	if len(res.Labels) != 1 || res.Labels[0] != 0 || res.NumClusters != 1 {
		t.Errorf("single row: got %+v", res)
	}
}

func TestClusterTwoSeparatedGroups(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	rows := append(gaussianGroup(rng, 6, 5, 0, 0.1), gaussianGroup(rng, 6, 5, 10, 0.1)...)

	res := NewSpeakerClusterer(clusterConfig()).ClusterVectors(rows)

	if res.NumClusters != 2 || res.Collapsed {
		t.Fatalf("expected 2 clusters, got %+v", res)
	}
	for i := 0; i < 6; i++ {
		if res.Labels[i] != 0 {
			t.Errorf("row %d: expected label 0, got %d", i, res.Labels[i])
		}
		if res.Labels[i+6] != 1 {
			t.Errorf("row %d: expected label 1, got %d", i+6, res.Labels[i+6])
		}
	}
}

func TestClusterNearIdenticalCollapses(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))

	for _, sigma := range []float64{1e-9, 1e-6, 1e-5, 1e-3} {
		for _, hint := range []int{0, 2, 3} {
			cfg := clusterConfig()
			cfg.NumSpeakers = hint

			rows := gaussianGroup(rng, 12, FeatureDim, 3.5, sigma)
			res := NewSpeakerClusterer(cfg).ClusterVectors(rows)

			for i, l := range res.Labels {
				if l != 0 {
					t.Fatalf("sigma %g hint %d: row %d got label %d, expected single speaker", sigma, hint, i, l)
				}
			}
			if res.NumClusters != 1 || !res.Collapsed {
				t.Errorf("sigma %g hint %d: expected collapse to 1 cluster, got %+v", sigma, hint, res)
			}
		}
	}
}

func TestClusterTooFewRowsForEstimate(t *testing.T) {
	rows := [][]float64{{0, 0}, {10, 10}, {0.1, 0.2}}

	res := NewSpeakerClusterer(clusterConfig()).ClusterVectors(rows)
	if res.NumClusters != 1 || res.Collapsed {
		t.Fatalf("expected single uncollapsed cluster, got %+v", res)
	}
	if res.Reason == "" {
		t.Error("expected reason for single cluster")
	}

	cfg := clusterConfig()
	cfg.NumSpeakers = 1
	res = NewSpeakerClusterer(cfg).ClusterVectors(rows)
	if res.NumClusters != 1 || res.Reason != "" {
		t.Errorf("explicit single speaker should have no reason, got %+v", res)
	}
}

func TestClusterValidityRecovers(t *testing.T) {
	tests := []struct {
		name   string
		rows   func(rng *rand.Rand) [][]float64
		labels []int
	}{
		{
			// При k=3 одна группа делится пополам и центроиды слишком близки,
			// повтор с k=2 даёт разделимые кластеры
			name: "separation retry",
			rows: func(rng *rand.Rand) [][]float64 {
				return append(gaussianGroup(rng, 6, 1, 0, 0.1), gaussianGroup(rng, 6, 1, 10, 0.1)...)
			},
			labels: []int{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1},
		},
		{
			// При k=3 третий кластер из двух строк меньше минимума,
			// при k=2 он сливается с соседней группой
			name: "undersized step down",
			rows: func(rng *rand.Rand) [][]float64 {
				rows := gaussianGroup(rng, 6, 4, 0, 0.1)
				rows = append(rows, gaussianGroup(rng, 6, 4, 10, 0.1)...)
				return append(rows, gaussianGroup(rng, 2, 4, 20, 0.1)...)
			},
			labels: []int{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := clusterConfig()
			cfg.NumSpeakers = 3

			res := NewSpeakerClusterer(cfg).ClusterVectors(tt.rows(rand.New(rand.NewPCG(21, 22))))

			if res.NumClusters != 2 || res.Collapsed {
				t.Fatalf("expected 2 clusters without collapse, got %+v", res)
			}
			for i, want := range tt.labels {
				if res.Labels[i] != want {
					t.Fatalf("got labels %v, want %v", res.Labels, tt.labels)
				}
			}
		})
	}
}

func TestClusterUndersizedCollapses(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	rows := append(gaussianGroup(rng, 10, 4, 0, 0.1), gaussianGroup(rng, 2, 4, 10, 0.1)...)

	cfg := clusterConfig()
	cfg.NumSpeakers = 2
	res := NewSpeakerClusterer(cfg).ClusterVectors(rows)

	if !res.Collapsed || res.NumClusters != 1 {
		t.Fatalf("expected collapse for undersized cluster, got %+v", res)
	}
	if res.Reason == "" {
		t.Error("collapse reason is empty")
	}
}

func TestClusterLabelRangeAndDeterminism(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))

	for n := 2; n <= 30; n += 4 {
		rows := gaussianGroup(rng, n, 6, 0, 1)
		c := NewSpeakerClusterer(clusterConfig())

		first := c.ClusterVectors(rows)
		second := c.ClusterVectors(rows)

		if len(first.Labels) != n {
			t.Fatalf("n=%d: got %d labels", n, len(first.Labels))
		}
		for i, l := range first.Labels {
			if l < 0 || l >= first.NumClusters {
				t.Fatalf("n=%d: label %d out of range [0,%d)", n, l, first.NumClusters)
			}
			if second.Labels[i] != l {
				t.Fatalf("n=%d: non-deterministic label at %d", n, i)
			}
		}
	}
}

func TestClusterDoesNotMutateInput(t *testing.T) {
	rows := [][]float64{{1, 2}, {1.1, 2.1}, {9, 9}, {9.2, 8.9}}
	orig := [][]float64{{1, 2}, {1.1, 2.1}, {9, 9}, {9.2, 8.9}}

	NewSpeakerClusterer(clusterConfig()).ClusterVectors(rows)

	for i := range rows {
		for d := range rows[i] {
			if rows[i][d] != orig[i][d] {
				t.Fatal("input rows were modified")
			}
		}
	}
}

func TestStandardizeZeroesConstantDimensions(t *testing.T) {
	rows := [][]float64{{1, 5}, {3, 5}, {5, 5}}
	out := standardize(rows)

	for i := range out {
		if out[i][1] != 0 {
			t.Errorf("constant dimension not zeroed: %v", out[i])
		}
	}
	if out[0][0] >= 0 || out[2][0] <= 0 || out[1][0] != 0 {
		t.Errorf("unexpected standardized column: %v", out)
	}
}

func TestMedianFilter(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		want []int
	}{
		{"single flicker", []int{0, 0, 1, 0, 0, 0}, []int{0, 0, 0, 0, 0, 0}},
		{"stable run", []int{1, 1, 1, 1, 1, 1}, []int{1, 1, 1, 1, 1, 1}},
		{"zero padded edges", []int{1, 0, 0, 0, 0, 1}, []int{0, 0, 0, 0, 0, 0}},
		{"two blocks", []int{0, 0, 0, 1, 1, 1, 1}, []int{0, 0, 0, 1, 1, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := medianFilter(tt.in, 5)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestCanonicalLabels(t *testing.T) {
	got := canonicalLabels([]int{2, 2, 0, 1, 0})
	want := []int{0, 0, 1, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSilhouetteScore(t *testing.T) {
	data := [][]float64{{0}, {0.1}, {10}, {10.1}}

	score, err := silhouetteScore(data, []int{0, 0, 1, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score < 0.9 {
		t.Errorf("well separated clusters should score near 1, got %.3f", score)
	}

	if _, err := silhouetteScore(data, []int{0, 0, 0, 0}); err == nil {
		t.Error("expected error for single cluster")
	}
	if _, err := silhouetteScore(data, []int{0, 1, 2, 3}); err == nil {
		t.Error("expected error when every point is its own cluster")
	}
}
