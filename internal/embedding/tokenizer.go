package embedding

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// WordPieceTokenizer encodes text for BERT-style ONNX exports using the model's own
// tokenizer.json (vocabulary, normalizer, special tokens). Output is padded to a fixed length
// so it can be copied straight into pre-allocated tensors.
type WordPieceTokenizer struct {
	mu sync.Mutex
	tk *tokenizer.Tokenizer
}

// LoadTokenizer reads a Hugging Face tokenizer.json.
func LoadTokenizer(path string) (*WordPieceTokenizer, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: tokenizer path is empty", ErrEmbedding)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: tokenizer: %w", ErrEmbedding, err)
	}
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: load tokenizer %s: %w", ErrEmbedding, path, err)
	}
	return &WordPieceTokenizer{tk: tk}, nil
}

// Tokenize produces [CLS] tokens [SEP] padded to maxTokens. Empty text yields [CLS][SEP].
func (t *WordPieceTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64, err error) {
	t.mu.Lock()
	en, err := t.tk.EncodeSingle(text, true)
	t.mu.Unlock()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: tokenize: %w", ErrEmbedding, err)
	}
	inputIDs, attentionMask, tokenTypeIDs = fitEncoding(en, maxTokens)
	return inputIDs, attentionMask, tokenTypeIDs, nil
}

// TokenizePair produces [CLS] first [SEP] second [SEP] for cross-encoders, with segment ids 0
// for the first part and 1 for the second. Sequences longer than maxTokens lose the tail of the
// second part; the final [SEP] is kept.
func (t *WordPieceTokenizer) TokenizePair(first, second string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64, err error) {
	t.mu.Lock()
	en, err := t.tk.EncodePair(first, second, true)
	t.mu.Unlock()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: tokenize pair: %w", ErrEmbedding, err)
	}
	inputIDs, attentionMask, tokenTypeIDs = fitEncoding(en, maxTokens)
	return inputIDs, attentionMask, tokenTypeIDs, nil
}

// fitEncoding copies the real (unpadded) tokens of en into slices of length maxTokens.
func fitEncoding(en *tokenizer.Encoding, maxTokens int) (ids, mask, types []int64) {
	n := len(en.Ids)
	if len(en.AttentionMask) == n {
		for n > 0 && en.AttentionMask[n-1] == 0 {
			n--
		}
	}
	ids, mask, types = make([]int64, maxTokens), make([]int64, maxTokens), make([]int64, maxTokens)
	if n == 0 || maxTokens <= 0 {
		return ids, mask, types
	}
	keep := n
	if keep > maxTokens {
		keep = maxTokens
	}
	for i := 0; i < keep; i++ {
		ids[i] = int64(en.Ids[i])
		mask[i] = 1
		if i < len(en.TypeIds) {
			types[i] = int64(en.TypeIds[i])
		}
	}
	if n > maxTokens {
		ids[keep-1] = int64(en.Ids[n-1])
		if n-1 < len(en.TypeIds) {
			types[keep-1] = int64(en.TypeIds[n-1])
		}
	}
	return ids, mask, types
}

// SplitWords lowercases text and splits it on anything that is not a letter or digit.
func SplitWords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(words) == 0 {
		return nil
	}
	return words
}

// HashString returns a deterministic non-negative hash of s.
func HashString(s string) int {
	var h uint32
	for _, c := range s {
		h = 31*h + uint32(c)
	}
	return int(h & 0x7fffffff)
}
