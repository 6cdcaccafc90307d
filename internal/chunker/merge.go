package chunker

import "unicode/utf8"

// MergeShort folds a chunk shorter than threshold into its successor when
// the successor is more than ratio times longer. It makes one forward pass;
// a merged chunk takes part in the next comparison, so runs of short chunks
// only partly coalesce.
func MergeShort(chunks []string, threshold int, ratio float64) []string {
	if len(chunks) < 2 {
		return chunks
	}
	work := make([]string, len(chunks))
	copy(work, chunks)
	consumed := make([]bool, len(work))

	for i := 1; i < len(work); i++ {
		prev := utf8.RuneCountInString(work[i-1])
		if prev >= threshold {
			continue
		}
		if prev == 0 {
			consumed[i-1] = true
			continue
		}
		cur := utf8.RuneCountInString(work[i])
		if float64(cur)/float64(prev) > ratio {
			work[i] = work[i-1] + " " + work[i]
			consumed[i-1] = true
		}
	}

	out := make([]string, 0, len(work))
	for i, c := range work {
		if !consumed[i] {
			out = append(out, c)
		}
	}
	return out
}
