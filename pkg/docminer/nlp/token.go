package nlp

// Token is one unit of the annotated token stream.
type Token struct {
	Text    string
	Lemma   string
	Index   int // position in the stream, space and punctuation tokens included
	Start   int // byte offset into the annotated text
	IsStop  bool
	IsPunct bool
	IsSpace bool
}

// Filtered reports whether the token is a content word: not a stopword,
// not punctuation and not whitespace.
func (t Token) Filtered() bool {
	return !t.IsStop && !t.IsPunct && !t.IsSpace
}

// Entity is a recognized named entity.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Annotation is the output of a model over one text.
type Annotation struct {
	Tokens   []Token
	Entities []Entity
}
