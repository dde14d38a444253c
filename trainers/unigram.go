package trainers

import (
	"cmp"
	"log/slog"
	"math"
	"slices"
	"unicode/utf8"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/models"
	"github.com/gomlx/go-tokenizers/tokens"
	conciter "github.com/sourcegraph/conc/iter"
)

const (
	DefaultUnigramVocabSize = 8000
	DefaultShrinkingFactor  = 0.75
	DefaultMaxPieceLength   = 16
	DefaultSeedSize         = 1_000_000
	DefaultNSubIterations   = 2

	// wordBoundary is the Metaspace replacement: pieces can only start with it.
	wordBoundary = '▁'

	// expectedFrequencyThreshold is the minimum expected count of a piece to survive the M-step.
	expectedFrequencyThreshold = 0.5
)

// Unigram trains a models.Unigram with the Expectation-Maximization algorithm of SentencePiece:
// it starts from a large seed vocabulary of frequent substrings and alternates EM rounds
// with pruning of the pieces whose removal least reduces the corpus likelihood, until
// the vocabulary is close to VocabSize.
type Unigram struct {
	VocabSize       int
	NSubIterations  int
	ShrinkingFactor float64
	SpecialTokens   []tokens.AddedToken

	// InitialAlphabet characters are always included in the vocabulary.
	InitialAlphabet []rune

	// UnkToken, if set, is added to the vocabulary (in front of it if it is not one of the
	// SpecialTokens), and used as the unknown token of the model.
	UnkToken string

	// MaxPieceLength is the maximum length, in characters, of a piece.
	MaxPieceLength int

	// SeedSize is the number of pieces of the initial vocabulary.
	SeedSize int

	ShowProgress bool

	wordCounter
}

var _ Trainer = (*Unigram)(nil)

// NewUnigram returns a Unigram trainer with the default options.
func NewUnigram() *Unigram {
	return &Unigram{
		VocabSize:       DefaultUnigramVocabSize,
		NSubIterations:  DefaultNSubIterations,
		ShrinkingFactor: DefaultShrinkingFactor,
		MaxPieceLength:  DefaultMaxPieceLength,
		SeedSize:        DefaultSeedSize,
		ShowProgress:    true,
	}
}

func (*Unigram) isTrainer() {}

// ShouldShowProgress implements Trainer.
func (t *Unigram) ShouldShowProgress() bool { return t.ShowProgress }

type scoredPiece struct {
	piece string
	score float64
}

// sortByScore sorts pieces by score descending, ties broken by the piece.
func sortByScore(pieces []scoredPiece) {
	slices.SortStableFunc(pieces, func(a, b scoredPiece) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.piece, b.piece)
	})
}

// requiredChars returns the characters of the corpus and of the initial alphabet, most
// frequent first.
func (t *Unigram) requiredChars(words []wordCount) []scoredPiece {
	counts := make(map[rune]float64)
	for _, wc := range words {
		for _, r := range wc.word {
			counts[r] += float64(wc.count)
		}
	}
	for _, r := range t.InitialAlphabet {
		counts[r] = math.Inf(1)
	}
	chars := make([]scoredPiece, 0, len(counts))
	for r, count := range counts {
		chars = append(chars, scoredPiece{piece: string(r), score: count})
	}
	sortByScore(chars)
	return chars
}

// isValidPiece reports whether a substring can be a seed piece: the word boundary marker
// can only be its first character.
func isValidPiece(runes []rune) bool {
	for ii, r := range runes {
		if r == wordBoundary && ii > 0 {
			return false
		}
	}
	return true
}

// seedPieces returns the initial vocabulary: all characters plus the most frequent
// substrings, scored by frequency times length, and normalized to log-probabilities.
func (t *Unigram) seedPieces(words []wordCount, chars []scoredPiece) []scoredPiece {
	maxLength := max(t.MaxPieceLength, 2)
	bar := newProgressBar(t.ShowProgress, len(words), "Seed pieces")
	substrings := make(map[string]float64)
	for _, wc := range words {
		runes := []rune(wc.word)
		for start := range runes {
			for end := start + 2; end <= min(len(runes), start+maxLength); end++ {
				if !isValidPiece(runes[start:end]) {
					break
				}
				substrings[string(runes[start:end])] += float64(wc.count) * float64(end-start)
			}
		}
		progressAdd(bar, 1)
	}
	progressFinish(bar)

	seeds := make([]scoredPiece, 0, len(chars)+len(substrings))
	for _, c := range chars {
		score := c.score
		if math.IsInf(score, 1) {
			score = 1
		}
		seeds = append(seeds, scoredPiece{piece: c.piece, score: score})
	}
	candidates := make([]scoredPiece, 0, len(substrings))
	for piece, score := range substrings {
		candidates = append(candidates, scoredPiece{piece: piece, score: score})
	}
	sortByScore(candidates)
	if room := t.SeedSize - len(seeds); len(candidates) > room {
		candidates = candidates[:max(room, 0)]
	}
	seeds = append(seeds, candidates...)
	toLogProbs(seeds)
	return seeds
}

// toLogProbs replaces the scores (frequencies) by their log-probabilities.
func toLogProbs(pieces []scoredPiece) {
	var sum float64
	for _, p := range pieces {
		sum += p.score
	}
	logSum := math.Log(sum)
	for ii := range pieces {
		pieces[ii].score = math.Log(pieces[ii].score) - logSum
	}
}

func buildModel(pieces []scoredPiece) (*models.Unigram, error) {
	modelPieces := make([]models.UnigramPiece, len(pieces))
	for ii, p := range pieces {
		modelPieces[ii] = models.UnigramPiece{Piece: p.piece, Score: p.score}
	}
	return models.NewUnigram(modelPieces, -1, false)
}

// expectedCounts segments every word with the current model (Viterbi, i.e. hard EM),
// and counts the occurrences of each piece weighted by the word counts.
func expectedCounts(model *models.Unigram, words []wordCount) ([]float64, error) {
	segmentations, err := conciter.MapErr(words, func(wc *wordCount) ([]uint32, error) {
		pieces, err := model.Encode(wc.word)
		if err != nil {
			return nil, err
		}
		ids := make([]uint32, len(pieces))
		for ii, piece := range pieces {
			id, found := model.TokenToID(piece)
			if !found {
				return nil, errs.Errorf(errs.ErrInternal, "piece %q of %q is not in the training vocabulary", piece, wc.word)
			}
			ids[ii] = id
		}
		return ids, nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrTraining, err, "segmenting the corpus")
	}
	counts := make([]float64, model.GetVocabSize())
	for ii, ids := range segmentations {
		for _, id := range ids {
			counts[id] += float64(words[ii].count)
		}
	}
	return counts, nil
}

// mStep drops the pieces with a low expected count, and re-estimates the log-probabilities.
// Single characters are always kept.
func mStep(pieces []scoredPiece, counts []float64) []scoredPiece {
	kept := make([]scoredPiece, 0, len(pieces))
	for ii, p := range pieces {
		count := counts[ii]
		if count < expectedFrequencyThreshold {
			if utf8.RuneCountInString(p.piece) > 1 {
				continue
			}
			count = expectedFrequencyThreshold
		}
		kept = append(kept, scoredPiece{piece: p.piece, score: count})
	}
	toLogProbs(kept)
	return kept
}

// alternativeScore returns the score of the best segmentation of piece that doesn't use
// piece itself, and whether there is one.
func alternativeScore(piece string, scores map[string]float64, maxLength int) (float64, bool) {
	runes := []rune(piece)
	best := make([]float64, len(runes)+1)
	for ii := 1; ii <= len(runes); ii++ {
		best[ii] = math.Inf(-1)
		for start := max(0, ii-maxLength); start < ii; start++ {
			if start == 0 && ii == len(runes) {
				continue
			}
			score, found := scores[string(runes[start:ii])]
			if !found || math.IsInf(best[start], -1) {
				continue
			}
			best[ii] = max(best[ii], best[start]+score)
		}
	}
	alternative := best[len(runes)]
	return alternative, !math.IsInf(alternative, -1)
}

// prune keeps the single characters plus the pieces whose removal would cost the most
// log-likelihood, down to max(desiredSize, ShrinkingFactor × len(pieces)) pieces.
func (t *Unigram) prune(pieces []scoredPiece, counts []float64, desiredSize int) []scoredPiece {
	scores := make(map[string]float64, len(pieces))
	for _, p := range pieces {
		scores[p.piece] = p.score
	}
	type candidate struct {
		index int
		loss  float64
	}
	keep := make([]bool, len(pieces))
	numKept := 0
	var candidates []candidate
	for ii, p := range pieces {
		if utf8.RuneCountInString(p.piece) == 1 {
			keep[ii] = true
			numKept++
			continue
		}
		alternative, found := alternativeScore(p.piece, scores, max(t.MaxPieceLength, 1))
		if !found {
			keep[ii] = true
			numKept++
			continue
		}
		candidates = append(candidates, candidate{index: ii, loss: counts[ii] * (p.score - alternative)})
	}
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		if c := cmp.Compare(b.loss, a.loss); c != 0 {
			return c
		}
		return cmp.Compare(pieces[a.index].piece, pieces[b.index].piece)
	})
	prunedSize := max(desiredSize, int(t.ShrinkingFactor*float64(len(pieces))))
	for _, c := range candidates {
		if numKept >= prunedSize {
			break
		}
		keep[c.index] = true
		numKept++
	}
	pruned := make([]scoredPiece, 0, numKept)
	for ii, p := range pieces {
		if keep[ii] {
			pruned = append(pruned, p)
		}
	}
	return pruned
}

// finalize builds the model: special tokens first, then the required characters, then the
// pieces with the highest scores, up to VocabSize.
func (t *Unigram) finalize(pieces []scoredPiece, chars []scoredPiece, byteFallback bool) (*models.Unigram, error) {
	var specials []scoredPiece
	inserted := make(map[string]bool)
	for _, st := range t.SpecialTokens {
		if inserted[st.Content] {
			continue
		}
		inserted[st.Content] = true
		specials = append(specials, scoredPiece{piece: st.Content})
	}
	unkID := -1
	if t.UnkToken != "" {
		unkID = slices.IndexFunc(specials, func(p scoredPiece) bool { return p.piece == t.UnkToken })
		if unkID < 0 {
			specials = slices.Insert(specials, 0, scoredPiece{piece: t.UnkToken})
			inserted[t.UnkToken] = true
			unkID = 0
		}
	}
	sizeWithoutSpecials := t.VocabSize - len(specials)

	existing := make(map[string]float64, len(pieces))
	minScore := math.Inf(1)
	for _, p := range pieces {
		existing[p.piece] = p.score
		minScore = min(minScore, p.score)
	}
	const penaltyDelta = 0.0001
	penalty := 0.0
	var final []scoredPiece
	for _, c := range chars {
		if inserted[c.piece] {
			continue
		}
		inserted[c.piece] = true
		score, found := existing[c.piece]
		if !found {
			penalty += penaltyDelta
			score = minScore - penalty
		}
		final = append(final, scoredPiece{piece: c.piece, score: score})
	}
	sorted := slices.Clone(pieces)
	sortByScore(sorted)
	for _, p := range sorted {
		if len(final) >= sizeWithoutSpecials {
			break
		}
		if inserted[p.piece] {
			continue
		}
		inserted[p.piece] = true
		final = append(final, p)
	}
	sortByScore(final)

	all := append(specials, final...)
	modelPieces := make([]models.UnigramPiece, len(all))
	for ii, p := range all {
		modelPieces[ii] = models.UnigramPiece{Piece: p.piece, Score: p.score}
	}
	return models.NewUnigram(modelPieces, unkID, byteFallback)
}

// Train implements Trainer. model must be a *models.Unigram or nil: only its byte fallback
// option is used.
func (t *Unigram) Train(model models.Model) (models.Model, []tokens.AddedToken, error) {
	byteFallback := false
	switch m := model.(type) {
	case nil:
	case *models.Unigram:
		byteFallback = m.ByteFallback()
	default:
		return nil, nil, errs.Errorf(errs.ErrTraining, "Unigram trainer can't train a %T model", model)
	}
	if t.ShrinkingFactor <= 0 || t.ShrinkingFactor >= 1 {
		return nil, nil, errs.Errorf(errs.ErrTraining, "Unigram shrinking factor must be in (0, 1), got %g", t.ShrinkingFactor)
	}
	words, err := t.sortedWords()
	if err != nil {
		return nil, nil, err
	}
	chars := t.requiredChars(words)
	pieces := t.seedPieces(words, chars)
	desiredSize := t.VocabSize * 11 / 10
	slog.Debug("Unigram seeded", "pieces", len(pieces), "chars", len(chars), "words", len(words))

	bar := newProgressBar(t.ShowProgress, -1, "EM training")
	for round := 0; ; round++ {
		for range max(t.NSubIterations, 1) {
			current, err := buildModel(pieces)
			if err != nil {
				return nil, nil, errs.Wrap(errs.ErrTraining, err, "building the training model")
			}
			counts, err := expectedCounts(current, words)
			if err != nil {
				return nil, nil, err
			}
			pieces = mStep(pieces, counts)
			progressAdd(bar, 1)
		}
		slog.Debug("Unigram EM round", "round", round, "pieces", len(pieces))
		if len(pieces) <= desiredSize {
			break
		}
		current, err := buildModel(pieces)
		if err != nil {
			return nil, nil, errs.Wrap(errs.ErrTraining, err, "building the training model")
		}
		counts, err := expectedCounts(current, words)
		if err != nil {
			return nil, nil, err
		}
		pruned := t.prune(pieces, counts, desiredSize)
		if len(pruned) == len(pieces) {
			// Only single characters are left.
			break
		}
		pieces = pruned
	}
	progressFinish(bar)

	unigram, err := t.finalize(pieces, chars, byteFallback)
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrTraining, err, "building the trained Unigram model")
	}
	slog.Debug("Unigram trained", "vocab_size", unigram.GetVocabSize())
	return unigram, slices.Clone(t.SpecialTokens), nil
}

