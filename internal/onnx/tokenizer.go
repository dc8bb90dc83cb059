package onnx

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Special tokens of the uncased BERT vocabulary.
const (
	tokenCLS = "[CLS]"
	tokenSEP = "[SEP]"
	tokenUNK = "[UNK]"

	maxWordChars = 100
)

// Tokenizer is an uncased BERT WordPiece tokenizer.
type Tokenizer struct {
	vocab  map[string]int64
	tokens map[int64]string
	cls    int64
	sep    int64
	unk    int64
}

// LoadTokenizer reads a vocab.txt file with one token per line; the line
// number is the token id.
func LoadTokenizer(path string) (*Tokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary: %w", err)
	}
	defer f.Close()

	tok, err := NewTokenizer(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary %s: %w", path, err)
	}
	return tok, nil
}

// NewTokenizer builds a tokenizer from vocab.txt content.
func NewTokenizer(r io.Reader) (*Tokenizer, error) {
	vocab := map[string]int64{}
	tokens := map[int64]string{}
	sc := bufio.NewScanner(r)
	var id int64
	for sc.Scan() {
		token := strings.TrimRight(sc.Text(), "\r")
		if _, dup := vocab[token]; !dup {
			vocab[token] = id
			tokens[id] = token
		}
		id++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	t := &Tokenizer{vocab: vocab, tokens: tokens}
	for _, sp := range []struct {
		name string
		dst  *int64
	}{{tokenCLS, &t.cls}, {tokenSEP, &t.sep}, {tokenUNK, &t.unk}} {
		v, ok := vocab[sp.name]
		if !ok {
			return nil, fmt.Errorf("vocabulary has no %s token", sp.name)
		}
		*sp.dst = v
	}
	return t, nil
}

// ID returns the id of token and whether it is in the vocabulary.
func (t *Tokenizer) ID(token string) (int64, bool) {
	id, ok := t.vocab[token]
	return id, ok
}

// SpecialIDs are the ids at which the text self-attention mask is split:
// [CLS], [SEP], "." and "?".
func (t *Tokenizer) SpecialIDs() map[int64]bool {
	ids := map[int64]bool{t.cls: true, t.sep: true}
	for _, p := range []string{".", "?"} {
		if id, ok := t.vocab[p]; ok {
			ids[id] = true
		}
	}
	return ids
}

// Encode returns [CLS] wordpieces(text) [SEP].
func (t *Tokenizer) Encode(text string) []int64 {
	ids := []int64{t.cls}
	for _, word := range basicTokenize(text) {
		ids = append(ids, t.wordPiece(word)...)
	}
	return append(ids, t.sep)
}

// Tokens maps ids back to token strings for debug logging. Unknown ids map
// to "".
func (t *Tokenizer) Tokens(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = t.tokens[id]
	}
	return out
}

// wordPiece splits a word by greedy longest-match-first.
func (t *Tokenizer) wordPiece(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordChars {
		return []int64{t.unk}
	}

	var ids []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		found := false
		for ; end > start; end-- {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				ids = append(ids, id)
				found = true
				break
			}
		}
		if !found {
			return []int64{t.unk}
		}
		start = end
	}
	return ids
}

// basicTokenize lowercases, strips accents and splits on whitespace and
// punctuation. CJK characters become single-rune words.
func basicTokenize(text string) []string {
	var b strings.Builder
	for _, r := range norm.NFD.String(strings.ToLower(text)) {
		switch {
		case r == 0 || r == unicode.ReplacementChar || isControl(r):
		case unicode.Is(unicode.Mn, r):
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case isPunct(r) || isCJK(r):
			b.WriteRune(' ')
			b.WriteRune(r)
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Fields(b.String())
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r) || unicode.In(r, unicode.Cf)
}

// isPunct treats all non-alphanumeric ASCII as punctuation, plus Unicode P*.
func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r)
}
