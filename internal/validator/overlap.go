package validator

import "math"

// OverlapAccuracy reports the fraction of reference overlapping-speech
// duration (cells where ≥2 speakers are simultaneously active) that is also
// predicted as overlapping within toleranceSeconds, per spec §4.7.
func OverlapAccuracy(reference, predicted []SpeakerSegment, totalDuration, toleranceSeconds float64) float64 {
	numCells := int(math.Ceil(totalDuration / derGridSeconds))
	if numCells <= 0 {
		return 0
	}
	refGrid := discretize(reference, numCells)
	predGrid := discretize(predicted, numCells)
	toleranceCells := int(math.Ceil(toleranceSeconds / derGridSeconds))

	var refOverlapCells, matchedCells int
	for c := 0; c < numCells; c++ {
		if len(refGrid[c]) < 2 {
			continue
		}
		refOverlapCells++
		if predictedOverlapsNear(predGrid, c, toleranceCells) {
			matchedCells++
		}
	}
	if refOverlapCells == 0 {
		return 0
	}
	return float64(matchedCells) / float64(refOverlapCells)
}

func predictedOverlapsNear(predGrid [][]string, center, toleranceCells int) bool {
	lo := center - toleranceCells
	hi := center + toleranceCells
	if lo < 0 {
		lo = 0
	}
	if hi >= len(predGrid) {
		hi = len(predGrid) - 1
	}
	for c := lo; c <= hi; c++ {
		if len(predGrid[c]) >= 2 {
			return true
		}
	}
	return false
}
