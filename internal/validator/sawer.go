package validator

// overlapMinSeconds is the minimum interval overlap, in seconds, for a
// predicted word to be matched against a reference word for speaker
// attribution scoring (100ms, per spec §4.7).
const overlapMinSeconds = 0.1

// SAWERResult is speaker-attributed WER: the weighted-mean WER across
// per-speaker partitions, plus independent attribution accuracy.
type SAWERResult struct {
	SAWER               float64
	PerSpeakerWER       map[string]float64
	AttributedWords     int
	CorrectAttributions int
	AttributionAccuracy float64
}

// SAWER partitions reference and hypothesis words by speaker_id, computes
// WER within each partition, and weights the per-speaker WERs by that
// speaker's reference word count to get the overall SA-WER.
func SAWER(reference, hypothesis []Word) SAWERResult {
	refBySpeaker := partitionBySpeaker(reference)
	hypBySpeaker := partitionBySpeaker(hypothesis)

	perSpeaker := make(map[string]float64, len(refBySpeaker))
	var weightedSum float64
	var totalRefWords int
	for speaker, refWords := range refBySpeaker {
		res := werTokens(wordTexts(refWords), wordTexts(hypBySpeaker[speaker]))
		perSpeaker[speaker] = res.WER
		weightedSum += res.WER * float64(len(refWords))
		totalRefWords += len(refWords)
	}

	result := SAWERResult{PerSpeakerWER: perSpeaker}
	if totalRefWords > 0 {
		result.SAWER = weightedSum / float64(totalRefWords)
	}

	result.AttributedWords, result.CorrectAttributions = attributionCounts(reference, hypothesis)
	if result.AttributedWords > 0 {
		result.AttributionAccuracy = float64(result.CorrectAttributions) / float64(result.AttributedWords)
	}
	return result
}

func partitionBySpeaker(words []Word) map[string][]Word {
	out := make(map[string][]Word)
	for _, w := range words {
		out[w.SpeakerID] = append(out[w.SpeakerID], w)
	}
	return out
}

func wordTexts(words []Word) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, tokenize(w.Text)...)
	}
	return out
}

// attributionCounts matches each hypothesis word to the reference word its
// interval overlaps the most (by at least overlapMinSeconds), and reports
// how many of those matches agree on speaker_id.
func attributionCounts(reference, hypothesis []Word) (attributed, correct int) {
	for _, hw := range hypothesis {
		best, ok := bestOverlap(hw, reference)
		if !ok {
			continue
		}
		attributed++
		if best.SpeakerID == hw.SpeakerID {
			correct++
		}
	}
	return attributed, correct
}

func bestOverlap(hw Word, reference []Word) (Word, bool) {
	var best Word
	var bestOverlapSeconds float64
	found := false
	for _, rw := range reference {
		ov := overlapSeconds(hw.Start, hw.End, rw.Start, rw.End)
		if ov < overlapMinSeconds {
			continue
		}
		if ov > bestOverlapSeconds {
			bestOverlapSeconds = ov
			best = rw
			found = true
		}
	}
	return best, found
}

func overlapSeconds(aStart, aEnd, bStart, bEnd float64) float64 {
	start := max(aStart, bStart)
	end := min(aEnd, bEnd)
	if end <= start {
		return 0
	}
	return end - start
}
