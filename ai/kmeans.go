package ai

import (
	"errors"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

const (
	kmeansRestarts = 10
	kmeansMaxIter  = 300
	kmeansTol      = 1e-4
)

// errSilhouetteUndefined silhouette не определён для данного разбиения
var errSilhouetteUndefined = errors.New("silhouette undefined: need 2 <= clusters < samples")

// kmeansResult лучший из перезапусков k-means
type kmeansResult struct {
	labels    []int
	centroids [][]float64
	inertia   float64
}

// runKMeans запускает k-means++ с несколькими перезапусками и возвращает
// разбиение с минимальной инерцией. Результат детерминирован для seed.
func runKMeans(data [][]float64, k int, seed uint64) kmeansResult {
	rng := rand.New(rand.NewPCG(seed, seed))

	best := kmeansResult{inertia: math.Inf(1)}
	for restart := 0; restart < kmeansRestarts; restart++ {
		res := kmeansOnce(data, k, rng)
		if res.inertia < best.inertia {
			best = res
		}
	}
	return best
}

// kmeansOnce один прогон алгоритма Ллойда с инициализацией k-means++
func kmeansOnce(data [][]float64, k int, rng *rand.Rand) kmeansResult {
	centroids := kmeansPlusPlus(data, k, rng)
	labels := make([]int, len(data))
	dim := len(data[0])

	for iter := 0; iter < kmeansMaxIter; iter++ {
		for i, row := range data {
			labels[i] = nearestCentroid(row, centroids)
		}

		next := make([][]float64, k)
		counts := make([]int, k)
		for c := range next {
			next[c] = make([]float64, dim)
		}
		for i, row := range data {
			floats.Add(next[labels[i]], row)
			counts[labels[i]]++
		}

		shift := 0.0
		for c := range next {
			if counts[c] == 0 {
				// Пустой кластер сохраняет прежний центроид
				copy(next[c], centroids[c])
				continue
			}
			floats.Scale(1/float64(counts[c]), next[c])
			d := floats.Distance(next[c], centroids[c], 2)
			shift += d * d
		}
		centroids = next

		if shift <= kmeansTol {
			break
		}
	}

	inertia := 0.0
	for i, row := range data {
		labels[i] = nearestCentroid(row, centroids)
		d := floats.Distance(row, centroids[labels[i]], 2)
		inertia += d * d
	}

	return kmeansResult{labels: labels, centroids: centroids, inertia: inertia}
}

// kmeansPlusPlus выбирает начальные центроиды пропорционально квадрату расстояния
func kmeansPlusPlus(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := data[rng.IntN(len(data))]
	centroids = append(centroids, append([]float64(nil), first...))

	dist := make([]float64, len(data))
	for len(centroids) < k {
		total := 0.0
		for i, row := range data {
			d := floats.Distance(row, centroids[nearestCentroid(row, centroids)], 2)
			dist[i] = d * d
			total += dist[i]
		}

		idx := 0
		if total <= 0 {
			idx = rng.IntN(len(data))
		} else {
			target := rng.Float64() * total
			cum := 0.0
			for i, d := range dist {
				cum += d
				if cum >= target && d > 0 {
					idx = i
					break
				}
			}
		}
		centroids = append(centroids, append([]float64(nil), data[idx]...))
	}
	return centroids
}

// nearestCentroid индекс ближайшего центроида, при равенстве - меньший
func nearestCentroid(row []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		d := floats.Distance(row, centroid, 2)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

// silhouetteScore средний коэффициент силуэта по всем точкам
func silhouetteScore(data [][]float64, labels []int) (float64, error) {
	n := len(data)
	clusters := map[int]int{}
	for _, l := range labels {
		clusters[l]++
	}
	if len(clusters) < 2 || len(clusters) >= n {
		return 0, errSilhouetteUndefined
	}

	total := 0.0
	for i := 0; i < n; i++ {
		if clusters[labels[i]] == 1 {
			// Для одиночного кластера s = 0
			continue
		}

		sums := map[int]float64{}
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			sums[labels[j]] += floats.Distance(data[i], data[j], 2)
		}

		a := sums[labels[i]] / float64(clusters[labels[i]]-1)
		b := math.Inf(1)
		for l, count := range clusters {
			if l == labels[i] {
				continue
			}
			if mean := sums[l] / float64(count); mean < b {
				b = mean
			}
		}

		denom := math.Max(a, b)
		if denom > 0 {
			total += (b - a) / denom
		}
	}

	score := total / float64(n)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, errSilhouetteUndefined
	}
	return score, nil
}

// canonicalLabels перенумеровывает метки в порядке первого появления
func canonicalLabels(labels []int) []int {
	mapping := map[int]int{}
	out := make([]int, len(labels))
	for i, l := range labels {
		m, ok := mapping[l]
		if !ok {
			m = len(mapping)
			mapping[l] = m
		}
		out[i] = m
	}
	return out
}
