package chat

// Usage records token consumption for one model call, including the
// cache-creation and cache-read counts reported when a cache marker was
// present in the request.
type Usage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_input_tokens"`
	CacheReadTokens     int `json:"cache_read_input_tokens"`
}

type EventType int

const (
	// EventTextDelta: incremental assistant text, rendered in real time.
	EventTextDelta EventType = iota

	// EventSearchStatus: the model started a server-side web search.
	EventSearchStatus

	// EventCitation: a complete web search citation.
	EventCitation

	// EventDone: end of the turn, includes token usage.
	EventDone

	// EventError: the stream failed.
	EventError
)

// Event is one element of a streamed model reply.
type Event struct {
	Type EventType

	// EventTextDelta
	TextDelta string

	// EventSearchStatus: 1-based index of the search within the turn.
	SearchIndex int

	// EventCitation
	Citation *Block

	// EventDone
	Usage *Usage

	// EventError
	Err error
}

// Response is a complete, non-streamed model reply.
type Response struct {
	Blocks []Block
	Usage  Usage
}
