package onnx

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// testVocab is a tiny vocabulary; ids are line numbers.
var testVocab = []string{
	"[PAD]",  // 0
	"[UNK]",  // 1
	"[CLS]",  // 2
	"[SEP]",  // 3
	".",      // 4
	"?",      // 5
	"cat",    // 6
	"dog",    // 7
	"red",    // 8
	"car",    // 9
	"play",   // 10
	"##ing",  // 11
	"cafe",   // 12
	",",      // 13
	"person", // 14
}

func newTestTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	tok, err := NewTokenizer(strings.NewReader(strings.Join(testVocab, "\n") + "\n"))
	if err != nil {
		t.Fatalf("NewTokenizer failed: %v", err)
	}
	return tok
}

func TestEncode(t *testing.T) {
	tok := newTestTokenizer(t)

	tests := []struct {
		name string
		text string
		want []int64
	}{
		{"single", "cat .", []int64{2, 6, 4, 3}},
		{"multiple", "Cat . Dog .", []int64{2, 6, 4, 7, 4, 3}},
		{"punct attached", "red car, cat.", []int64{2, 8, 9, 13, 6, 4, 3}},
		{"wordpiece", "playing", []int64{2, 10, 11, 3}},
		{"accent", "Café", []int64{2, 12, 3}},
		{"unknown", "zebra", []int64{2, 1, 3}},
		{"partial unknown", "plays", []int64{2, 1, 3}},
		{"empty", "   ", []int64{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tok.Encode(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Encode(%q): got %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTokens(t *testing.T) {
	tok := newTestTokenizer(t)
	got := tok.Tokens(tok.Encode("playing ."))
	want := []string{"[CLS]", "play", "##ing", ".", "[SEP]"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := tok.Tokens([]int64{6, 999}); got[0] != "cat" || got[1] != "" {
		t.Errorf("Tokens with unknown id: got %q", got)
	}
}

func TestSpecialIDs(t *testing.T) {
	tok := newTestTokenizer(t)
	got := tok.SpecialIDs()
	want := map[int64]bool{2: true, 3: true, 4: true, 5: true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if id, ok := tok.ID("person"); !ok || id != 14 {
		t.Errorf("ID(person): got %d, %v", id, ok)
	}
}

func TestNewTokenizer_MissingSpecial(t *testing.T) {
	if _, err := NewTokenizer(strings.NewReader("[PAD]\ncat\n")); err == nil {
		t.Error("vocabulary without [CLS]/[SEP]/[UNK] should be rejected")
	}
}

func TestLoadTokenizer(t *testing.T) {
	path := filepath.Join(t.TempDir(), VocabFile)
	if err := os.WriteFile(path, []byte(strings.Join(testVocab, "\r\n")), 0644); err != nil {
		t.Fatal(err)
	}
	tok, err := LoadTokenizer(path)
	if err != nil {
		t.Fatalf("LoadTokenizer failed: %v", err)
	}
	if got := tok.Encode("dog"); !reflect.DeepEqual(got, []int64{2, 7, 3}) {
		t.Errorf("CRLF vocabulary: got %v", got)
	}

	if _, err := LoadTokenizer(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("missing vocabulary should be an error")
	}
}

func TestBasicTokenize(t *testing.T) {
	got := basicTokenize("A\tred-car ?")
	want := []string{"a", "red", "-", "car", "?"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
