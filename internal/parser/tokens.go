package parser

// Block markup tokens. Exact spellings are a compatibility surface and must
// round-trip unchanged through Parse and Render.
const (
	EntryPrefix = "<ai!" // entry marker: "<ai!>" or "<ai!option>"
	ExitMarker  = "</ai!>"
	ReplyMarker = "<reply!>"

	MarkerAI    = "|AI|"
	MarkerMe    = "|ME|"
	MarkerError = "|ERROR|"

	MarkerToolStart = "|TOOL_START|"
	MarkerToolEnd   = "|TOOL_END|"

	MarkerThought    = "|THOUGHT|"
	MarkerEndThought = "|/THOUGHT|"

	// Token usage beacon: a line like "|TOKENS|In=120,Out=456|==".
	TokensPrefix = "|TOKENS|"
	TokensSuffix = "|=="
)
