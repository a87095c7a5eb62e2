package search

import (
	"sort"
)

// fuseRRF merges ranked lists with reciprocal rank fusion:
// fused(doc) = Σ 1/(k + rank). Duplicate notes are merged keeping the
// snippet from the better-ranked occurrence; ties in fused score break
// on the best original engine score.
func fuseRRF(k int, lists ...[]Result) []Result {
	type fused struct {
		result    Result
		score     float64
		bestRank  int
		bestOrig  float64
		firstSeen int
	}

	byNote := make(map[int64]*fused)
	order := 0

	for _, list := range lists {
		for rank, r := range list {
			contribution := 1.0 / float64(k+rank+1)

			f, ok := byNote[r.NoteID]
			if !ok {
				byNote[r.NoteID] = &fused{
					result:    r,
					score:     contribution,
					bestRank:  rank,
					bestOrig:  r.Score,
					firstSeen: order,
				}
				order++
				continue
			}

			f.score += contribution
			if rank < f.bestRank {
				f.bestRank = rank
				f.result.Title = r.Title
				f.result.Snippet = r.Snippet
			}
			if r.Score > f.bestOrig {
				f.bestOrig = r.Score
			}
		}
	}

	out := make([]*fused, 0, len(byNote))
	for _, f := range byNote {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].bestOrig != out[j].bestOrig {
			return out[i].bestOrig > out[j].bestOrig
		}
		return out[i].firstSeen < out[j].firstSeen
	})

	results := make([]Result, len(out))
	for i, f := range out {
		r := f.result
		r.Score = f.score
		r.SearchType = TypeHybrid
		results[i] = r
	}
	return results
}
