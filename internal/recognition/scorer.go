package recognition

import (
	"sort"

	"github.com/nduongctu/face-reco-parents-preschool-child/internal/embedding"
	"github.com/nduongctu/face-reco-parents-preschool-child/internal/enrollment"
)

// topK is how many of the closest candidates take part in the vote.
const topK = 5

// Match is the selected guardian with its minimal contributing distance, kept
// for the audit trail.
type Match struct {
	GuardianID int     `json:"id_ph"`
	ImagePath  string  `json:"image_path"`
	Distance   float64 `json:"distance"`
}

type scored struct {
	enrollment.Candidate
	distance float64
}

// Score picks one guardian from the candidate set, or nil when no candidate
// lies within threshold ("no match" is a legitimate outcome, not an error).
//
// Candidates within threshold are ranked by Euclidean distance and the five
// closest vote: a guardian appearing at least twice among them wins (each
// guardian contributes two reference embeddings, original plus mirror, so two
// hits mean the face matched in both orientations). Ties between qualifying
// guardians go to the one with the smallest contributing distance. With no
// qualifying guardian the single closest candidate wins.
func Score(query embedding.Vector, candidates []enrollment.Candidate, threshold float64) *Match {
	within := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		d := embedding.Distance(query, c.Embedding)
		if d < threshold {
			within = append(within, scored{Candidate: c, distance: d})
		}
	}
	if len(within) == 0 {
		return nil
	}

	sort.SliceStable(within, func(i, j int) bool { return within[i].distance < within[j].distance })
	top := within
	if len(top) > topK {
		top = top[:topK]
	}

	counts := make(map[int]int, len(top))
	for _, s := range top {
		counts[s.GuardianID]++
	}

	// Ascending order means the first guardian with two or more hits is also
	// the one contributing the smallest qualifying distance.
	for _, s := range top {
		if counts[s.GuardianID] >= 2 {
			return &Match{GuardianID: s.GuardianID, ImagePath: s.ImagePath, Distance: s.distance}
		}
	}

	best := top[0]
	return &Match{GuardianID: best.GuardianID, ImagePath: best.ImagePath, Distance: best.distance}
}
