package eval

import (
	"math"
	"sort"
)

// MetricsSet holds retrieval metrics for a single case or averaged
// across a dataset. K values follow how results are consumed: the CLI
// shows the top candidates, the mapper caps some branches at three.
type MetricsSet struct {
	Recall3 float64 `json:"recall@3"`
	Recall5 float64 `json:"recall@5"`
	NDCG10  float64 `json:"ndcg@10"`
	MRR10   float64 `json:"mrr@10"`
}

// RecallAtK computes the fraction of relevant services found in the
// top-k ranked names. Grades > 0 count as relevant.
func RecallAtK(ranked []string, relevant map[string]int, k int) float64 {
	totalRelevant := 0
	for _, rel := range relevant {
		if rel > 0 {
			totalRelevant++
		}
	}
	if totalRelevant == 0 {
		return 0
	}
	limit := min(k, len(ranked))
	found := 0
	for i := 0; i < limit; i++ {
		if relevant[ranked[i]] > 0 {
			found++
		}
	}
	return float64(found) / float64(totalRelevant)
}

// NDCGAtK computes Normalized Discounted Cumulative Gain at position
// k with graded relevance.
func NDCGAtK(ranked []string, relevant map[string]int, k int) float64 {
	limit := min(k, len(ranked))
	dcg := 0.0
	for i := 0; i < limit; i++ {
		if rel := relevant[ranked[i]]; rel > 0 {
			dcg += (math.Pow(2, float64(rel)) - 1) / math.Log2(float64(i+2))
		}
	}

	idealRels := make([]int, 0, len(relevant))
	for _, rel := range relevant {
		if rel > 0 {
			idealRels = append(idealRels, rel)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(idealRels)))
	idcg := 0.0
	for i := 0; i < min(k, len(idealRels)); i++ {
		idcg += (math.Pow(2, float64(idealRels[i])) - 1) / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// MRRAtK returns the reciprocal rank of the first relevant service
// within the top k, or 0 when none appears.
func MRRAtK(ranked []string, relevant map[string]int, k int) float64 {
	limit := min(k, len(ranked))
	for i := 0; i < limit; i++ {
		if relevant[ranked[i]] > 0 {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// ComputeAll calculates the standard MetricsSet for a single case.
func ComputeAll(ranked []string, relevant map[string]int) MetricsSet {
	return MetricsSet{
		Recall3: RecallAtK(ranked, relevant, 3),
		Recall5: RecallAtK(ranked, relevant, 5),
		NDCG10:  NDCGAtK(ranked, relevant, 10),
		MRR10:   MRRAtK(ranked, relevant, 10),
	}
}

// AverageMetrics computes the mean of per-case metrics.
func AverageMetrics(sets []MetricsSet) MetricsSet {
	if len(sets) == 0 {
		return MetricsSet{}
	}
	var sum MetricsSet
	for _, m := range sets {
		sum.Recall3 += m.Recall3
		sum.Recall5 += m.Recall5
		sum.NDCG10 += m.NDCG10
		sum.MRR10 += m.MRR10
	}
	n := float64(len(sets))
	return MetricsSet{
		Recall3: sum.Recall3 / n,
		Recall5: sum.Recall5 / n,
		NDCG10:  sum.NDCG10 / n,
		MRR10:   sum.MRR10 / n,
	}
}
