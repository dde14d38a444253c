package trainers

import (
	"container/heap"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/models"
	"github.com/gomlx/go-tokenizers/tokens"
)

// DefaultVocabSize is the default target vocabulary size of the trainers.
const DefaultVocabSize = 30_000

// BPE trains a models.BPE: starting from the alphabet of the corpus, it repeatedly merges
// the most frequent pair of adjacent tokens until the vocabulary reaches VocabSize.
// Ties between pairs with the same count are broken by the lexicographic order of the pair.
type BPE struct {
	// VocabSize is the target size of the vocabulary, special tokens included.
	VocabSize int

	// MinFrequency is the minimum number of occurrences of a pair to be merged.
	MinFrequency uint64

	// SpecialTokens are added first to the vocabulary, in order.
	SpecialTokens []tokens.AddedToken

	// LimitAlphabet keeps only the most frequent characters in the initial alphabet.
	// 0 means no limit.
	LimitAlphabet int

	// InitialAlphabet characters are always included, even if not in the corpus.
	InitialAlphabet []rune

	ContinuingSubwordPrefix string
	EndOfWordSuffix         string

	// MaxTokenLength (in characters) prevents merges creating longer tokens. 0 means no limit.
	MaxTokenLength int

	ShowProgress bool

	wordCounter
}

var _ Trainer = (*BPE)(nil)

// NewBPE returns a BPE trainer with the default options.
func NewBPE() *BPE {
	return &BPE{VocabSize: DefaultVocabSize, ShowProgress: true}
}

func (*BPE) isTrainer() {}

// ShouldShowProgress implements Trainer.
func (t *BPE) ShouldShowProgress() bool { return t.ShowProgress }

// trainWord is a word of the corpus, as a sequence of token ids.
type trainWord struct {
	symbols []uint32
}

type idPair struct {
	a, b uint32
}

type pairChange struct {
	pair  idPair
	delta int64
}

// merge replaces every occurrence of the pair (a, b) by newID, and returns the changes
// to the counts of the neighboring pairs.
func (w *trainWord) merge(a, b, newID uint32) []pairChange {
	var changes []pairChange
	for ii := 0; ii < len(w.symbols)-1; ii++ {
		if w.symbols[ii] != a || w.symbols[ii+1] != b {
			continue
		}
		if ii > 0 {
			prev := w.symbols[ii-1]
			changes = append(changes, pairChange{idPair{prev, a}, -1}, pairChange{idPair{prev, newID}, 1})
		}
		w.symbols[ii] = newID
		w.symbols = slices.Delete(w.symbols, ii+1, ii+2)
		if ii+1 < len(w.symbols) {
			next := w.symbols[ii+1]
			changes = append(changes, pairChange{idPair{b, next}, -1}, pairChange{idPair{newID, next}, 1})
		}
	}
	return changes
}

// bpeVocab is the vocabulary being built.
type bpeVocab struct {
	toID  models.Vocab
	words []string
}

func (v *bpeVocab) add(token string) uint32 {
	if id, found := v.toID[token]; found {
		return id
	}
	id := uint32(len(v.words))
	v.toID[token] = id
	v.words = append(v.words, token)
	return id
}

// mergeCandidate is an entry of the merge queue. count may be stale.
type mergeCandidate struct {
	pair  idPair
	a, b  string
	count int64
}

// mergeQueue is a max-heap on count, ties broken by the (a, b) strings ascending.
type mergeQueue []mergeCandidate

func (q mergeQueue) Len() int { return len(q) }
func (q mergeQueue) Less(i, j int) bool {
	if q[i].count != q[j].count {
		return q[i].count > q[j].count
	}
	if q[i].a != q[j].a {
		return q[i].a < q[j].a
	}
	return q[i].b < q[j].b
}
func (q mergeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *mergeQueue) Push(x any)   { *q = append(*q, x.(mergeCandidate)) }
func (q *mergeQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

// computeAlphabet returns the characters of the initial vocabulary, sorted.
func (t *BPE) computeAlphabet(words []wordCount) []rune {
	charCounts := make(map[rune]uint64)
	for _, wc := range words {
		for _, r := range wc.word {
			charCounts[r] += wc.count
		}
	}
	const mustKeep = ^uint64(0)
	for _, r := range t.InitialAlphabet {
		charCounts[r] = mustKeep
	}
	alphabet := make([]rune, 0, len(charCounts))
	for r := range charCounts {
		alphabet = append(alphabet, r)
	}
	if t.LimitAlphabet > 0 && len(alphabet) > t.LimitAlphabet {
		// Keep the most frequent, ties broken by the character.
		slices.SortFunc(alphabet, func(a, b rune) int {
			if charCounts[a] != charCounts[b] {
				if charCounts[a] > charCounts[b] {
					return -1
				}
				return 1
			}
			return int(a) - int(b)
		})
		alphabet = alphabet[:max(t.LimitAlphabet, len(t.InitialAlphabet))]
	}
	slices.Sort(alphabet)
	return alphabet
}

// train returns the vocabulary and merges.
func (t *BPE) train() (models.Vocab, []models.Pair, error) {
	words, err := t.sortedWords()
	if err != nil {
		return nil, nil, err
	}
	specialVocab, specialOrder := specialTokensVocab(t.SpecialTokens)
	vocab := &bpeVocab{toID: specialVocab, words: specialOrder}

	alphabet := t.computeAlphabet(words)
	inAlphabet := make(map[rune]bool, len(alphabet))
	for _, r := range alphabet {
		vocab.add(string(r))
		inAlphabet[r] = true
	}

	// Split words into characters, with prefix and suffix.
	trainWords := make([]trainWord, len(words))
	for ii, wc := range words {
		numChars := utf8.RuneCountInString(wc.word)
		symbols := make([]uint32, 0, numChars)
		charIdx := 0
		for _, r := range wc.word {
			charIdx++
			if !inAlphabet[r] {
				continue
			}
			s := string(r)
			if charIdx > 1 && t.ContinuingSubwordPrefix != "" {
				s = t.ContinuingSubwordPrefix + s
			}
			if charIdx == numChars && t.EndOfWordSuffix != "" {
				s += t.EndOfWordSuffix
			}
			symbols = append(symbols, vocab.add(s))
		}
		trainWords[ii].symbols = symbols
	}

	// Count pairs and where they occur.
	bar := newProgressBar(t.ShowProgress, len(trainWords), "Count pairs")
	pairCounts := make(map[idPair]int64)
	whereToUpdate := make(map[idPair]map[int]struct{})
	for ii, w := range trainWords {
		for jj := 0; jj+1 < len(w.symbols); jj++ {
			pair := idPair{w.symbols[jj], w.symbols[jj+1]}
			pairCounts[pair] += int64(words[ii].count)
			if whereToUpdate[pair] == nil {
				whereToUpdate[pair] = make(map[int]struct{})
			}
			whereToUpdate[pair][ii] = struct{}{}
		}
		progressAdd(bar, 1)
	}
	progressFinish(bar)

	queue := make(mergeQueue, 0, len(pairCounts))
	for pair, count := range pairCounts {
		if count > 0 {
			queue = append(queue, mergeCandidate{pair: pair, a: vocab.words[pair.a], b: vocab.words[pair.b], count: count})
		}
	}
	heap.Init(&queue)

	var merges []models.Pair
	bar = newProgressBar(t.ShowProgress, max(t.VocabSize-len(vocab.words), 0), "Compute merges")
	for len(vocab.words) < t.VocabSize && queue.Len() > 0 {
		top := heap.Pop(&queue).(mergeCandidate)
		if current := pairCounts[top.pair]; top.count != current {
			top.count = current
			if current > 0 {
				heap.Push(&queue, top)
			}
			continue
		}
		if top.count < 1 || uint64(top.count) < t.MinFrequency {
			break
		}

		partB := top.b
		if t.ContinuingSubwordPrefix != "" {
			partB = strings.TrimPrefix(partB, t.ContinuingSubwordPrefix)
		}
		newToken := top.a + partB
		if t.MaxTokenLength > 0 && utf8.RuneCountInString(newToken) > t.MaxTokenLength {
			delete(pairCounts, top.pair)
			continue
		}
		sizeBefore := len(vocab.words)
		newID := vocab.add(newToken)
		progressAdd(bar, len(vocab.words)-sizeBefore)
		merges = append(merges, models.Pair{A: top.a, B: top.b})

		changed := make(map[idPair]struct{})
		for wordIdx := range whereToUpdate[top.pair] {
			for _, change := range trainWords[wordIdx].merge(top.pair.a, top.pair.b, newID) {
				pairCounts[change.pair] += change.delta * int64(words[wordIdx].count)
				if change.delta > 0 {
					if whereToUpdate[change.pair] == nil {
						whereToUpdate[change.pair] = make(map[int]struct{})
					}
					whereToUpdate[change.pair][wordIdx] = struct{}{}
					changed[change.pair] = struct{}{}
				}
			}
		}
		delete(pairCounts, top.pair)
		delete(whereToUpdate, top.pair)
		for pair := range changed {
			if count := pairCounts[pair]; count > 0 {
				heap.Push(&queue, mergeCandidate{pair: pair, a: vocab.words[pair.a], b: vocab.words[pair.b], count: count})
			}
		}
	}
	progressFinish(bar)
	slog.Debug("BPE trained", "vocab_size", len(vocab.words), "merges", len(merges), "words", len(words))
	return vocab.toID, merges, nil
}

// Train implements Trainer. model must be a *models.BPE or nil.
func (t *BPE) Train(model models.Model) (models.Model, []tokens.AddedToken, error) {
	config := models.DefaultBPEConfig()
	switch m := model.(type) {
	case nil:
	case *models.BPE:
		config = m.Config()
	default:
		return nil, nil, errs.Errorf(errs.ErrTraining, "BPE trainer can't train a %T model", model)
	}
	vocab, merges, err := t.train()
	if err != nil {
		return nil, nil, err
	}
	config.ContinuingSubwordPrefix = t.ContinuingSubwordPrefix
	config.EndOfWordSuffix = t.EndOfWordSuffix
	if _, found := vocab[config.UnkToken]; config.UnkToken != "" && !found {
		return nil, nil, errs.Errorf(errs.ErrTraining, "unknown token %q is not in the trained vocabulary, add it to the special tokens", config.UnkToken)
	}
	bpe, err := models.NewBPE(vocab, merges, config)
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrTraining, err, "building the trained BPE model")
	}
	return bpe, slices.Clone(t.SpecialTokens), nil
}
