package ai

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// Пороги средней дистанции между центроидами в стандартизованном пространстве
	separationRetryThreshold    = 2.0
	separationCollapseThreshold = 1.0

	medianFilterWindow = 5
	maxEstimatedK      = 5

	// Относительная дисперсия, ниже которой измерение считается постоянным
	negligibleStdRatio = 1e-6
	// Если ни одно измерение не меняется сильнее, строки считаются одним голосом.
	// Проверяется до стандартизации, которая растягивает любой шум до единичной дисперсии.
	nearIdenticalStdRatio = 1e-3
)

// ClusterResult результат кластеризации: одна метка на строку признаков
type ClusterResult struct {
	Labels      []int
	NumClusters int
	Collapsed   bool   // все метки сведены к одному спикеру проверками валидности
	Reason      string // почему получился один кластер (пусто, если так задано явно)
}

// SpeakerClusterer оценивает число спикеров и кластеризует векторы признаков
type SpeakerClusterer struct {
	numSpeakers    int
	maxSpeakers    int
	minClusterSize int
	seed           uint64
}

// NewSpeakerClusterer создаёт кластеризатор с параметрами из конфигурации
func NewSpeakerClusterer(cfg DiarizationConfig) *SpeakerClusterer {
	return &SpeakerClusterer{
		numSpeakers:    cfg.NumSpeakers,
		maxSpeakers:    cfg.MaxSpeakers,
		minClusterSize: cfg.MinClusterSize,
		seed:           cfg.Seed,
	}
}

// Cluster кластеризует записи признаков, порядок меток совпадает с порядком записей
func (c *SpeakerClusterer) Cluster(features []SpeechFeatures) ClusterResult {
	rows := make([][]float64, len(features))
	for i, f := range features {
		rows[i] = f.Vector
	}
	return c.ClusterVectors(rows)
}

// ClusterVectors кластеризует матрицу признаков
func (c *SpeakerClusterer) ClusterVectors(rows [][]float64) ClusterResult {
	n := len(rows)
	if n < 2 {
		result := ClusterResult{Labels: make([]int, n)}
		if n == 1 {
			result.NumClusters = 1
		}
		return result
	}

	if spread := maxRelativeStd(rows); spread < nearIdenticalStdRatio {
		return collapsed(n, fmt.Sprintf("feature rows nearly identical (relative spread %.2g)", spread))
	}

	data := standardize(rows)

	k := c.numSpeakers
	if k <= 0 {
		k = c.estimateSpeakers(data)
	}
	if n >= 5 {
		if k < 2 {
			k = 2
		}
		if k > c.maxSpeakers {
			k = c.maxSpeakers
		}
	}
	if k > n {
		k = n
	}
	if k < 1 {
		k = 1
	}

	if k == 1 {
		result := ClusterResult{Labels: make([]int, n), NumClusters: 1}
		if c.numSpeakers != 1 {
			result.Reason = fmt.Sprintf("%d speech intervals are too few to estimate speakers", n)
		}
		return result
	}

	res := runKMeans(data, k, c.seed)

	// Проверка A: разделимость центроидов
	sep := meanCentroidDistance(res.centroids)
	if sep < separationRetryThreshold {
		log.Debug().Float64("separation", sep).Int("k", k).Msg("clusters too similar")
		if k > 2 {
			k = 2
			res = runKMeans(data, k, c.seed)
			sep = meanCentroidDistance(res.centroids)
		}
		if sep < separationCollapseThreshold {
			return collapsed(n, fmt.Sprintf("centroid separation %.3f below %.1f", sep, separationCollapseThreshold))
		}
	}

	// Проверка B: минимальный размер кластера, не больше maxSpeakers-2 шагов
	for step := 0; step < c.maxSpeakers-2 && k > 2 && smallestCluster(res.labels, k) < c.minClusterSize; step++ {
		k--
		log.Debug().Int("k", k).Msg("undersized cluster, retrying with fewer clusters")
		res = runKMeans(data, k, c.seed)
	}
	if smallest := smallestCluster(res.labels, k); smallest < c.minClusterSize {
		return collapsed(n, fmt.Sprintf("cluster of %d segments below minimum %d", smallest, c.minClusterSize))
	}

	labels := canonicalLabels(res.labels)
	if n > medianFilterWindow {
		labels = medianFilter(labels, medianFilterWindow)
	}

	return ClusterResult{Labels: labels, NumClusters: k}
}

// estimateSpeakers подбирает число кластеров по silhouette
func (c *SpeakerClusterer) estimateSpeakers(data [][]float64) int {
	n := len(data)
	if n < 4 {
		return 1
	}

	maxK := min(c.maxSpeakers, n/3, maxEstimatedK)
	if maxK < 2 {
		maxK = 2
	}

	bestK := 1
	bestScore := -1.0
	for k := 2; k <= maxK; k++ {
		if k >= n {
			continue
		}
		res := runKMeans(data, k, c.seed)
		score, err := silhouetteScore(data, res.labels)
		if err != nil {
			log.Debug().Err(err).Int("k", k).Msg("silhouette skipped")
			continue
		}
		log.Debug().Int("k", k).Float64("silhouette", score).Msg("speaker count candidate")
		if score > bestScore {
			bestScore = score
			bestK = k
		}
	}

	if bestK == 1 && n >= 10 {
		bestK = 2
	}
	return bestK
}

// standardize приводит каждое измерение к нулевому среднему и единичной дисперсии.
// Измерения с пренебрежимо малой дисперсией обнуляются.
func standardize(rows [][]float64) [][]float64 {
	n := len(rows)
	dim := 0
	for _, r := range rows {
		if len(r) > dim {
			dim = len(r)
		}
	}

	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, dim)
	}

	column := make([]float64, n)
	for d := 0; d < dim; d++ {
		for i, r := range rows {
			column[i] = 0
			if d < len(r) {
				column[i] = r[d]
			}
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		if std <= negligibleStdRatio*(math.Abs(mean)+1) {
			continue
		}
		for i := range out {
			out[i][d] = (column[i] - mean) / std
		}
	}
	return out
}

// maxRelativeStd наибольшее по измерениям отношение std/(|mean|+1) в исходной шкале
func maxRelativeStd(rows [][]float64) float64 {
	dim := 0
	for _, r := range rows {
		dim = max(dim, len(r))
	}

	var spread float64
	column := make([]float64, len(rows))
	for d := 0; d < dim; d++ {
		for i, r := range rows {
			column[i] = 0
			if d < len(r) {
				column[i] = r[d]
			}
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		spread = max(spread, std/(math.Abs(mean)+1))
	}
	return spread
}

// meanCentroidDistance средняя попарная евклидова дистанция между центроидами
func meanCentroidDistance(centroids [][]float64) float64 {
	var sum float64
	pairs := 0
	for i := 0; i < len(centroids); i++ {
		for j := i + 1; j < len(centroids); j++ {
			sum += floats.Distance(centroids[i], centroids[j], 2)
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

// smallestCluster размер наименьшего из k кластеров (пустые считаются)
func smallestCluster(labels []int, k int) int {
	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}
	smallest := counts[0]
	for _, c := range counts[1:] {
		if c < smallest {
			smallest = c
		}
	}
	return smallest
}

// medianFilter медианный фильтр по последовательности меток, края дополняются нулями
func medianFilter(labels []int, window int) []int {
	half := window / 2
	out := make([]int, len(labels))
	buf := make([]int, window)
	for i := range labels {
		for j := -half; j <= half; j++ {
			idx := i + j
			if idx >= 0 && idx < len(labels) {
				buf[j+half] = labels[idx]
			} else {
				buf[j+half] = 0
			}
		}
		sorted := append([]int(nil), buf...)
		sort.Ints(sorted)
		out[i] = sorted[half]
	}
	return out
}

func collapsed(n int, reason string) ClusterResult {
	log.Info().Str("reason", reason).Msg("speakers collapsed to one")
	return ClusterResult{
		Labels:      make([]int, n),
		NumClusters: 1,
		Collapsed:   true,
		Reason:      reason,
	}
}
