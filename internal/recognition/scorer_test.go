package recognition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nduongctu/face-reco-parents-preschool-child/internal/embedding"
	"github.com/nduongctu/face-reco-parents-preschool-child/internal/enrollment"
)

// vec returns a vector whose distance to the zero vector is exactly d.
func vec(d float64) embedding.Vector {
	v := make(embedding.Vector, embedding.Dim)
	v[0] = float32(d)
	return v
}

func zeroQuery() embedding.Vector {
	return make(embedding.Vector, embedding.Dim)
}

func cand(guardianID int, path string, d float64) enrollment.Candidate {
	return enrollment.Candidate{GuardianID: guardianID, ImagePath: path, Embedding: vec(d)}
}

func TestScoreNoCandidateWithinThreshold(t *testing.T) {
	candidates := []enrollment.Candidate{
		cand(1, "a.jpg", 0.9),
		cand(2, "b.jpg", 0.75),
	}
	assert.Nil(t, Score(zeroQuery(), candidates, 0.5))
}

func TestScoreEmptyCandidates(t *testing.T) {
	assert.Nil(t, Score(zeroQuery(), nil, 0.5))
}

func TestScoreThresholdIsExclusive(t *testing.T) {
	// Distance equal to the threshold does not qualify.
	assert.Nil(t, Score(zeroQuery(), []enrollment.Candidate{cand(1, "a.jpg", 0.5)}, 0.5))
}

func TestScoreSingleGuardianBothOrientations(t *testing.T) {
	candidates := []enrollment.Candidate{
		cand(7, "g7-base.jpg", 0.08),
		cand(7, "g7-mirror.jpg", 0.10),
		cand(9, "g9-base.jpg", 0.30),
	}
	m := Score(zeroQuery(), candidates, 0.5)
	require.NotNil(t, m)
	assert.Equal(t, 7, m.GuardianID)
	assert.Equal(t, "g7-base.jpg", m.ImagePath)
	assert.InDelta(t, 0.08, m.Distance, 1e-9)
}

func TestScoreRankOneFallback(t *testing.T) {
	// No guardian reaches two hits; the single closest wins.
	candidates := []enrollment.Candidate{
		cand(1, "g1.jpg", 0.20),
		cand(2, "g2.jpg", 0.12),
		cand(3, "g3.jpg", 0.40),
	}
	m := Score(zeroQuery(), candidates, 0.5)
	require.NotNil(t, m)
	assert.Equal(t, 2, m.GuardianID)
	assert.InDelta(t, 0.12, m.Distance, 1e-9)
}

func TestScoreTieBreakSmallestQualifyingDistance(t *testing.T) {
	// Two guardians both appear twice in the top five; the one contributing
	// the smaller distance is intended to win, not an ordering accident.
	candidates := []enrollment.Candidate{
		cand(2, "g2-base.jpg", 0.11),
		cand(2, "g2-mirror.jpg", 0.25),
		cand(5, "g5-base.jpg", 0.13),
		cand(5, "g5-mirror.jpg", 0.14),
	}
	m := Score(zeroQuery(), candidates, 0.5)
	require.NotNil(t, m)
	assert.Equal(t, 2, m.GuardianID)
	assert.InDelta(t, 0.11, m.Distance, 1e-9)
}

func TestScoreVoteBeatsCloserSingleton(t *testing.T) {
	// A guardian with two agreeing hits wins over a closer lone hit.
	candidates := []enrollment.Candidate{
		cand(1, "g1.jpg", 0.05),
		cand(4, "g4-base.jpg", 0.10),
		cand(4, "g4-mirror.jpg", 0.12),
	}
	m := Score(zeroQuery(), candidates, 0.5)
	require.NotNil(t, m)
	assert.Equal(t, 4, m.GuardianID)
	assert.InDelta(t, 0.10, m.Distance, 1e-9)
}

func TestScoreOnlyTopFiveVote(t *testing.T) {
	// Guardian 8 has two hits but both outside the five closest; it must not
	// qualify through the vote.
	candidates := []enrollment.Candidate{
		cand(1, "g1.jpg", 0.01),
		cand(2, "g2.jpg", 0.02),
		cand(3, "g3.jpg", 0.03),
		cand(4, "g4.jpg", 0.04),
		cand(5, "g5.jpg", 0.05),
		cand(8, "g8-base.jpg", 0.06),
		cand(8, "g8-mirror.jpg", 0.07),
	}
	m := Score(zeroQuery(), candidates, 0.5)
	require.NotNil(t, m)
	assert.Equal(t, 1, m.GuardianID)
}

func TestScoreEndToEndExample(t *testing.T) {
	// Guardian G with original+mirror both within 0.1 of the query,
	// threshold 0.5: G is selected with the minimum of the two distances.
	candidates := []enrollment.Candidate{
		cand(42, "g42-base.jpg", 0.09),
		cand(42, "g42-mirror.jpg", 0.07),
	}
	m := Score(zeroQuery(), candidates, 0.5)
	require.NotNil(t, m)
	assert.Equal(t, 42, m.GuardianID)
	assert.Equal(t, "g42-mirror.jpg", m.ImagePath)
	assert.InDelta(t, 0.07, m.Distance, 1e-9)
}
