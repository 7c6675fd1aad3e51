package index

import "math"

// MMR re-ranks candidates with Maximal Marginal Relevance and returns k of them.
//
// At each step it picks the remaining candidate maximizing
//
//	lambda*Score - (1-lambda)*max(sim(candidate, selected))
//
// where Score is the candidate's similarity to the query. Candidates must be in
// search order; equal MMR scores go to the earlier candidate. Lambda is clamped
// to [0, 1]: 1 keeps plain relevance order, 0 maximizes diversity.
func MMR(candidates []Hit, k int, lambda float64, sim Similarity) []Hit {
	if len(candidates) == 0 || k <= 0 {
		return nil
	}
	if sim == nil {
		sim = Cosine
	}
	lambda = math.Max(0, math.Min(1, lambda))
	k = min(k, len(candidates))

	remaining := make([]Hit, len(candidates))
	copy(remaining, candidates)
	selected := make([]Hit, 0, k)
	// redundancy[i] is the highest similarity of remaining[i] to anything selected so far
	redundancy := make([]float64, len(remaining))

	for len(selected) < k {
		bestIdx := 0
		bestScore := math.Inf(-1)
		for i, c := range remaining {
			score := lambda * c.Score
			if len(selected) > 0 {
				score -= (1 - lambda) * redundancy[i]
			}
			// a NaN embedding ranks last
			if math.IsNaN(score) {
				score = math.Inf(-1)
			}
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		chosen := remaining[bestIdx]
		selected = append(selected, chosen)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		redundancy = append(redundancy[:bestIdx], redundancy[bestIdx+1:]...)

		for i, c := range remaining {
			if s := sim(c.Embedding, chosen.Embedding); len(selected) == 1 || s > redundancy[i] {
				redundancy[i] = s
			}
		}
	}
	return selected
}
