package analyze

import (
	"sort"

	"github.com/xxxsen/chatwrapped/internal/model"
)

// ScoreFunc folds the similarities of a question's nearest neighbors
// into one difficulty value. It is a pure function of the similarity
// list so alternative formulas plug in without touching the scorer.
type ScoreFunc func(neighborSims []float64) float64

// IsolationScore is the default heuristic: one minus the mean
// similarity to the nearest neighbors. A question far from every other
// question scores high (novel, treated as hard); a question in a dense
// cluster scores low. This is an explicit proxy, not a ground-truth
// difficulty measure.
func IsolationScore(neighborSims []float64) float64 {
	if len(neighborSims) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range neighborSims {
		sum += s
	}
	return 1 - sum/float64(len(neighborSims))
}

// scoredQuestion is one user message eligible for difficulty scoring.
type scoredQuestion struct {
	id        string
	timestamp float64
	row       []float32
}

// scoreQuestions computes a difficulty value for every user question
// with a usable embedding. Neighbor candidates are restricted to a
// window of nearby questions in timestamp order, bounding the
// comparison cost; within the window the k highest similarities feed
// the score function. The result depends only on the embedding set and
// the (k, window) parameters, never on processing order.
func scoreQuestions(questions []scoredQuestion, k, window int, score ScoreFunc) []model.QuestionScore {
	if k <= 0 {
		k = 5
	}
	if window <= 0 {
		window = 200
	}
	out := make([]model.QuestionScore, len(questions))
	for i := range questions {
		out[i] = model.QuestionScore{
			MessageID: questions[i].id,
			Score:     scoreOne(questions, i, k, window, score),
			Timestamp: questions[i].timestamp,
		}
	}
	return out
}

func scoreOne(questions []scoredQuestion, i, k, window int, score ScoreFunc) float64 {
	lo := i - window
	if lo < 0 {
		lo = 0
	}
	hi := i + window
	if hi >= len(questions) {
		hi = len(questions) - 1
	}
	sims := make([]float64, 0, hi-lo)
	for j := lo; j <= hi; j++ {
		if j == i {
			continue
		}
		sims = append(sims, Cosine(questions[i].row, questions[j].row))
	}
	if len(sims) == 0 {
		return 0
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sims)))
	if len(sims) > k {
		sims = sims[:k]
	}
	return score(sims)
}

// extremes picks the hardest (max score) and easiest (min score)
// questions, breaking ties toward the earliest timestamp.
func extremes(scores []model.QuestionScore) (hardest, easiest *model.QuestionScore) {
	for i := range scores {
		s := &scores[i]
		if hardest == nil || s.Score > hardest.Score ||
			(s.Score == hardest.Score && s.Timestamp < hardest.Timestamp) {
			hardest = s
		}
		if easiest == nil || s.Score < easiest.Score ||
			(s.Score == easiest.Score && s.Timestamp < easiest.Timestamp) {
			easiest = s
		}
	}
	return hardest, easiest
}
