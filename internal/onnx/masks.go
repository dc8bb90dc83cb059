package onnx

// TextInputs are the text-side model inputs for a single caption. Matrices
// are row-major; TextTokenMask is Len x Len.
type TextInputs struct {
	InputIDs      []int64
	AttentionMask []int64
	PositionIDs   []int64
	TokenTypeIDs  []int64
	TextTokenMask []int64
}

// Len is the number of tokens.
func (in *TextInputs) Len() int { return len(in.InputIDs) }

// BuildTextInputs derives the model inputs from token ids.
//
// Tokens between two special tokens form a phrase: they attend only to each
// other and their position ids restart at 0. A special token at either end
// of the sequence attends only to itself. Inputs longer than maxLen are cut
// to maxLen after the masks are built.
func BuildTextInputs(ids []int64, special map[int64]bool, maxLen int) *TextInputs {
	n := len(ids)
	mask := make([]int64, n*n)
	pos := make([]int64, n)
	for i := 0; i < n; i++ {
		mask[i*n+i] = 1
	}

	prev := 0
	for col, id := range ids {
		if !special[id] {
			continue
		}
		if col == 0 || col == n-1 {
			mask[col*n+col] = 1
			pos[col] = 0
		} else {
			for r := prev + 1; r <= col; r++ {
				for c := prev + 1; c <= col; c++ {
					mask[r*n+c] = 1
				}
				pos[r] = int64(r - prev - 1)
			}
		}
		prev = col
	}

	l := n
	if maxLen > 0 && l > maxLen {
		l = maxLen
	}
	in := &TextInputs{
		InputIDs:      append([]int64(nil), ids[:l]...),
		AttentionMask: make([]int64, l),
		PositionIDs:   pos[:l],
		TokenTypeIDs:  make([]int64, l),
		TextTokenMask: make([]int64, l*l),
	}
	for i := 0; i < l; i++ {
		in.AttentionMask[i] = 1
		copy(in.TextTokenMask[i*l:(i+1)*l], mask[i*n:i*n+l])
	}
	return in
}
