package detection

import (
	"fmt"
	"math"
)

// Sigmoid maps a logit to (0,1).
func Sigmoid(x float32) float64 {
	return 1 / (1 + math.Exp(-float64(x)))
}

// PlaceholderPhrase is the label the fallback gives the i-th kept box.
func PlaceholderPhrase(i int) string {
	return fmt.Sprintf("obj_%d", i)
}

// FilterLogits applies the fallback post-processing to raw detector output.
//
// logits is a row-major [numQueries x numTokens] matrix of per-box,
// per-token logits and boxes holds one normalized box per query. Each
// query's confidence is the maximum sigmoid over its tokens; queries whose
// confidence is strictly greater than boxThreshold are kept in query order
// and labelled with placeholder phrases. The result is marked Degraded.
func FilterLogits(logits []float32, numTokens int, boxes []Box, boxThreshold float64) (*Result, error) {
	if numTokens <= 0 {
		return nil, fmt.Errorf("invalid token count %d", numTokens)
	}
	if len(logits) != len(boxes)*numTokens {
		return nil, fmt.Errorf("logits length %d does not match %d boxes x %d tokens",
			len(logits), len(boxes), numTokens)
	}

	res := &Result{Detections: []Detection{}, Degraded: true}
	for q, box := range boxes {
		row := logits[q*numTokens : (q+1)*numTokens]
		best := row[0]
		for _, v := range row[1:] {
			if v > best {
				best = v
			}
		}
		// Sigmoid is monotonic, so taking it after the max is equivalent.
		conf := Sigmoid(best)
		if conf > boxThreshold {
			res.Detections = append(res.Detections, Detection{
				Box:        box,
				Confidence: conf,
				Phrase:     PlaceholderPhrase(len(res.Detections)),
			})
		}
	}
	return res, nil
}
