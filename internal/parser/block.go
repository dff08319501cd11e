// Package parser extracts AI directive blocks from Markdown documents and
// splices answers back into them.
package parser

// Status classifies a directive block after parsing.
type Status int

const (
	// StatusPending means the block carries a reply marker and must be processed.
	StatusPending Status = iota
	// StatusAnswered means the block is not actionable: it either already
	// contains a rendered answer region, or has no reply marker at all.
	StatusAnswered
	// StatusMalformed means the block markup is structurally invalid
	// (unmatched or nested entry/exit markers).
	StatusMalformed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAnswered:
		return "answered"
	case StatusMalformed:
		return "malformed"
	}
	return "unknown"
}

// Span is a half-open byte range [Start, End) into the original document text.
type Span struct {
	Start int
	End   int
}

// DirectiveKind identifies a directive tag.
type DirectiveKind int

const (
	DirModel DirectiveKind = iota
	DirTemperature
	DirMaxTokens
	DirSystemPrompt
	DirThink
	DirDebug
	DirMock
	DirTools
	DirContext
)

// ContextKind identifies the source a context directive refers to.
type ContextKind int

const (
	CtxCurrentDocument ContextKind = iota
	CtxNoteLink
	CtxURL
	CtxPDF
	CtxImage
	CtxPrompt
)

func (k ContextKind) String() string {
	switch k {
	case CtxCurrentDocument:
		return "this"
	case CtxNoteLink:
		return "doc"
	case CtxURL:
		return "url"
	case CtxPDF:
		return "pdf"
	case CtxImage:
		return "image"
	case CtxPrompt:
		return "prompt"
	}
	return "unknown"
}

// Directive is one parsed directive tag inside a block.
type Directive struct {
	Kind    DirectiveKind
	Context ContextKind // valid only when Kind == DirContext
	Arg     string      // cooked argument: quotes stripped, escapes resolved
	Span    Span
}

// Diagnostic records a non-fatal parse problem.
type Diagnostic struct {
	Span    Span
	Message string
}

// Entry marker options. The default (empty) option splices the answer
// region in place of the reply marker; the alternatives change what the
// answer replaces.
const (
	// OptionReplace replaces the whole block with the bare answer.
	OptionReplace = "rep"
	// OptionDocument replaces the entire document with the answer.
	OptionDocument = "all"
)

// Block is one occurrence of the directive block markup.
type Block struct {
	Span   Span   // entry marker through exit marker, inclusive
	Option string // entry marker argument ("", "rep", "all")

	Directives []Directive

	// Conversation is the raw text between the directive section and the
	// reply marker (or block end): the instruction text, plus any prior
	// answer regions when the block hosts an ongoing dialogue.
	Conversation string

	Reply    Span // the reply marker line including its newline
	HasReply bool

	Answer    Span // prior answer region, first MarkerAI line to last MarkerMe line
	HasAnswer bool

	Status Status
}

// Document is the parse result for one note.
type Document struct {
	Text   string
	Blocks []Block
}

// Pending returns the blocks that require processing, in document order.
func (d *Document) Pending() []*Block {
	var out []*Block
	for i := range d.Blocks {
		if d.Blocks[i].Status == StatusPending {
			out = append(out, &d.Blocks[i])
		}
	}
	return out
}
