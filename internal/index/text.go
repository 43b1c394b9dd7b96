package index

import (
	"strings"
	"sync"
	"unicode"

	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/value"
)

// Tokenizer splits field text into the tokens a TextIndex indexes.
type Tokenizer interface {
	Tokenize(text string) []string
}

// stopWordTokenizer lower-cases, splits on non-letter/non-digit runes, and
// drops configured stop words, matching the reference tokenizer's English
// default.
type stopWordTokenizer struct {
	stopWords map[string]struct{}
}

// NewTokenizer builds the default tokenizer from a configured stop-word
// list (spec's TextIndexConfig).
func NewTokenizer(stopWords []string) Tokenizer {
	set := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		set[strings.ToLower(w)] = struct{}{}
	}
	return &stopWordTokenizer{stopWords: set}
}

func (t *stopWordTokenizer) Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		lower := strings.ToLower(f)
		if _, stop := t.stopWords[lower]; stop {
			continue
		}
		out = append(out, lower)
	}
	return out
}

// TextIndex is an inverted index: token -> array of NitriteIds. A
// case-insensitive variant is exposed alongside the case-sensitive one by
// storing tokens under an "i_"-prefixed key, matching the reference's
// naming for its folded variant.
type TextIndex struct {
	mu         sync.RWMutex
	field      string
	tokenizer  Tokenizer
	m          map[string][]uint64 // token -> ids
	foldedM    map[string][]uint64 // "i_"+lower(token) -> ids, same content
}

func NewTextIndex(field string, tokenizer Tokenizer) *TextIndex {
	return &TextIndex{
		field:     field,
		tokenizer: tokenizer,
		m:         make(map[string][]uint64),
		foldedM:   make(map[string][]uint64),
	}
}

func (idx *TextIndex) Type() Type        { return TypeText }
func (idx *TextIndex) Fields() []string  { return []string{idx.field} }

func (idx *TextIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.m)
}

func (idx *TextIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.m = make(map[string][]uint64)
	idx.foldedM = make(map[string][]uint64)
}

// decompose tokenizes the first field's value. A KindArray value is
// supported here since text indexes only ever have one field (it is, by
// construction, always "the first field" the spec's array-of-strings rule
// allows); every element of the array must itself be a string.
func (idx *TextIndex) decompose(v value.Value) ([]string, error) {
	if v.Kind() == value.KindArray {
		elems, _ := v.AsArray()
		var tokens []string
		for _, elem := range elems {
			s, ok := elem.AsString()
			if !ok {
				return nil, dberrors.New(dberrors.IndexingError, "TextIndex",
					"invalid value type for text index, array elements must be strings")
			}
			tokens = append(tokens, idx.tokenizer.Tokenize(s)...)
		}
		return tokens, nil
	}
	s, ok := v.AsString()
	if !ok {
		return nil, dberrors.New(dberrors.IndexingError, "TextIndex", "invalid value type for text index, field must be a string")
	}
	return idx.tokenizer.Tokenize(s), nil
}

func (idx *TextIndex) Write(docID uint64, fieldValues []value.Value) error {
	if len(fieldValues) != 1 {
		return dberrors.New(dberrors.IndexingError, "TextIndex.Write", "expected exactly one field value")
	}
	tokens, err := idx.decompose(fieldValues[0])
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, tok := range tokens {
		idx.m[tok] = appendUnique(idx.m[tok], docID)
		folded := "i_" + strings.ToLower(tok)
		idx.foldedM[folded] = appendUnique(idx.foldedM[folded], docID)
	}
	return nil
}

func (idx *TextIndex) Remove(docID uint64, fieldValues []value.Value) error {
	if len(fieldValues) != 1 {
		return dberrors.New(dberrors.IndexingError, "TextIndex.Remove", "expected exactly one field value")
	}
	tokens, err := idx.decompose(fieldValues[0])
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, tok := range tokens {
		idx.m[tok] = removeID(idx.m[tok], docID)
		if len(idx.m[tok]) == 0 {
			delete(idx.m, tok)
		}
		folded := "i_" + strings.ToLower(tok)
		idx.foldedM[folded] = removeID(idx.foldedM[folded], docID)
		if len(idx.foldedM[folded]) == 0 {
			delete(idx.foldedM, folded)
		}
	}
	return nil
}

// Find returns the ids for a single exact token (case-sensitive).
func (idx *TextIndex) Find(key value.Value) ([]uint64, error) {
	tok, ok := key.AsString()
	if !ok {
		return nil, dberrors.New(dberrors.IndexingError, "TextIndex.Find", "text filter value must be a string")
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]uint64(nil), idx.m[tok]...), nil
}

// FindCaseInsensitive returns the ids for a token regardless of case.
func (idx *TextIndex) FindCaseInsensitive(token string) []uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]uint64(nil), idx.foldedM["i_"+strings.ToLower(token)]...)
}

// FindRange is not supported for text indexes: text queries are
// token-equality lookups, never range scans.
func (idx *TextIndex) FindRange(lower value.Value, hasLower bool, upper value.Value, hasUpper bool) ([]uint64, error) {
	return nil, dberrors.New(dberrors.IndexingError, "TextIndex.FindRange", "text index does not support range queries")
}

// FindPhrase tokenizes a multi-word query the same way indexed text was
// tokenized and intersects the per-token id sets, implementing the spec's
// chosen AND semantics for multi-token text search.
func (idx *TextIndex) FindPhrase(query string) []uint64 {
	tokens := idx.tokenizer.Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	sets := make([][]uint64, len(tokens))
	for i, tok := range tokens {
		sets[i] = idx.m[tok]
	}
	return intersectAll(sets)
}

func intersectAll(sets [][]uint64) []uint64 {
	if len(sets) == 0 {
		return nil
	}
	present := make(map[uint64]int)
	for _, set := range sets {
		seen := make(map[uint64]struct{}, len(set))
		for _, id := range set {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			present[id]++
		}
	}
	var out []uint64
	for id, count := range present {
		if count == len(sets) {
			out = append(out, id)
		}
	}
	return out
}

func appendUnique(ids []uint64, id uint64) []uint64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
