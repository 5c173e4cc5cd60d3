// Package scoring implements the weighted aggregation of a player's best
// records into a single rating/accuracy pair.
package scoring

import (
	"math"

	"github.com/refx-online/omajinai/internal/domain/model"
)

// Weighting constants of the published aggregation formula.
const (
	weightDecay   = 0.95
	bonusDecay    = 0.9994
	bonusPPScale  = 416.6667
	bonusAccScale = 20.0
)

// Aggregate computes the weighted rating and accuracy from a player's best
// scores, which must be ordered by descending rating. The rating is rounded
// half away from zero exactly once; the accuracy is left unrounded.
//
// Callers must not invoke Aggregate with an empty slice: a player with no
// eligible records keeps their previous aggregate untouched.
func Aggregate(best []model.BestScore) (pp, acc float64) {
	n := len(best)

	var weightedPP, weightedAcc float64
	for i, s := range best {
		weight := math.Pow(weightDecay, float64(i))
		weightedPP += s.PP * weight
		weightedAcc += s.Acc * weight
	}

	bonusPP := bonusPPScale * (1.0 - math.Pow(bonusDecay, float64(n)))
	bonusAcc := 100.0 / (bonusAccScale * (1.0 - math.Pow(weightDecay, float64(n))))

	pp = math.Round(weightedPP + bonusPP)
	acc = (weightedAcc * bonusAcc) / 100.0

	return pp, acc
}
