package validator

// CERResult holds the Levenshtein alignment counts behind one CER score.
type CERResult struct {
	Substitutions int
	Insertions    int
	Deletions     int
	ReferenceLen  int
	HypothesisLen int
	CER           float64
}

// CER computes character error rate over the raw, untokenized text of both
// sides, operating on Unicode scalars rather than bytes, per spec §4.7.
func CER(reference, hypothesis string) CERResult {
	ref := []rune(reference)
	hyp := []rune(hypothesis)
	s, i, d := levenshteinOps(ref, hyp)
	res := CERResult{
		Substitutions: s,
		Insertions:    i,
		Deletions:     d,
		ReferenceLen:  len(ref),
		HypothesisLen: len(hyp),
	}
	if len(ref) == 0 {
		if len(hyp) == 0 {
			res.CER = 0
		} else {
			res.CER = 1
		}
		return res
	}
	res.CER = float64(s+i+d) / float64(len(ref))
	return res
}
