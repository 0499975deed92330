package quiz

// MaskQuestions strips correct-answer metadata unless the caller holds
// quiz-management rights. Applied to quiz reads, question listings and
// attempt-start responses; never to the scoring path or to an owner's
// post-submission review.
func MaskQuestions(qs []Question, canManage bool) []Question {
	if canManage {
		return qs
	}
	out := make([]Question, len(qs))
	for i, q := range qs {
		masked := q
		masked.Options = make([]Option, len(q.Options))
		for j, o := range q.Options {
			o.IsCorrect = nil
			masked.Options[j] = o
		}
		out[i] = masked
	}
	return out
}
