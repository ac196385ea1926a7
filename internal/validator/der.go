package validator

import "math"

// derGridSeconds is the DER time-grid resolution from spec §4.7 (10ms).
const derGridSeconds = 0.01

// DERResult is the cell-count breakdown behind one DER score.
type DERResult struct {
	FalseAlarmCells  int
	MissCells        int
	SpeakerErrorCells int
	ReferenceSpeechCells int
	TotalCells       int
	DER              float64
}

// DER discretizes reference and predicted speaker segments into 10ms cells
// over [0, totalDuration) and scores each cell as correct speech, false
// alarm, miss, or speaker error, per spec §4.7. Overlapping segments are
// tolerated: a cell's reference/predicted "identity" is the set of speakers
// active in it, and a cell counts as correct whenever that set intersects,
// consistent with how segments are allowed to overlap in spec §3.
func DER(reference, predicted []SpeakerSegment, totalDuration float64) DERResult {
	numCells := int(math.Ceil(totalDuration / derGridSeconds))
	if numCells <= 0 {
		return DERResult{}
	}
	refGrid := discretize(reference, numCells)
	predGrid := discretize(predicted, numCells)

	var res DERResult
	res.TotalCells = numCells
	for c := 0; c < numCells; c++ {
		refActive := len(refGrid[c]) > 0
		predActive := len(predGrid[c]) > 0

		if refActive {
			res.ReferenceSpeechCells++
		}

		switch {
		case !refActive && !predActive:
			// silence, correctly predicted
		case !refActive && predActive:
			res.FalseAlarmCells++
		case refActive && !predActive:
			res.MissCells++
		default:
			if !intersects(refGrid[c], predGrid[c]) {
				res.SpeakerErrorCells++
			}
		}
	}

	if res.ReferenceSpeechCells > 0 {
		res.DER = float64(res.FalseAlarmCells+res.MissCells+res.SpeakerErrorCells) / float64(res.ReferenceSpeechCells)
	}
	return res
}

func discretize(segments []SpeakerSegment, numCells int) [][]string {
	grid := make([][]string, numCells)
	for _, seg := range segments {
		startCell := int(seg.Start / derGridSeconds)
		endCell := int(math.Ceil(seg.End / derGridSeconds))
		if startCell < 0 {
			startCell = 0
		}
		if endCell > numCells {
			endCell = numCells
		}
		for c := startCell; c < endCell; c++ {
			grid[c] = appendUnique(grid[c], seg.SpeakerID)
		}
	}
	return grid
}

func appendUnique(speakers []string, id string) []string {
	for _, s := range speakers {
		if s == id {
			return speakers
		}
	}
	return append(speakers, id)
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
