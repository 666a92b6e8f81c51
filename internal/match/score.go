package match

import "math"

// Reranker-path scaling. Scores are min-max normalized within one batch and
// mapped onto [25, 85], so the same raw reranker output can land on different
// final scores in different batches. A batch of uniformly poor matches still
// produces an 85 for its best lead; known tradeoff, scores are not comparable
// across batches.
const (
	rerankScoreFloor = 25
	rerankScoreSpan  = 60
)

// NormalizeRerankScores maps one batch's raw reranker scores to final scores.
// All-equal inputs normalize to the midpoint before scaling.
func NormalizeRerankScores(raw []float64) []int {
	if len(raw) == 0 {
		return nil
	}

	lo, hi := raw[0], raw[0]
	for _, v := range raw[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	scores := make([]int, len(raw))
	for i, v := range raw {
		norm := 0.5
		if hi > lo {
			norm = (v - lo) / (hi - lo)
		}
		scores[i] = clampScore(int(math.Round(rerankScoreFloor + norm*rerankScoreSpan)))
	}
	return scores
}

// SimilarityScore maps a raw cosine similarity to a final score. The mapping
// is absolute and batch-independent, calibrated against the empirical 0.3-0.9
// range real profile embeddings produce: below 0.3 scales into [0,30), the
// 0.3-0.9 band stretches across [30,100], and anything above 0.9 saturates.
func SimilarityScore(sim float64) int {
	sim = math.Max(0, math.Min(1, sim))

	var score float64
	switch {
	case sim < 0.3:
		score = sim / 0.3 * 30
	case sim <= 0.9:
		score = 30 + (sim-0.3)/0.6*70
	default:
		score = 100
	}
	return clampScore(int(math.Round(score)))
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
