package mining

import "github.com/cognicore/docminer/pkg/docminer/nlp"

// BuildIndex filters the token stream and returns the lemma sequence of the
// surviving words and the inverted index over them.
//
// Index positions are the tokens' original stream indices, ascending per lemma.
// The index keys and the set of lemmas in the sequence are always equal.
func BuildIndex(tokens []nlp.Token) (LemmaSequence, InvertedIndex) {
	lemmas := make(LemmaSequence, 0, len(tokens))
	index := make(InvertedIndex)

	for _, tok := range tokens {
		if !tok.Filtered() {
			continue
		}
		lemma := tok.Lemma
		if lemma == "" {
			lemma = tok.Text
		}
		index[lemma] = append(index[lemma], tok.Index)
		lemmas = append(lemmas, lemma)
	}

	return lemmas, index
}
