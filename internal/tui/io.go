// Package tui defines the IO interface between the session controller and
// the terminal, plus PlainIO, the line-oriented implementation.
package tui

// Status is the session snapshot shown in the status line.
type Status struct {
	Model         string
	SearchEnabled bool
	CacheStatus   string
	Messages      int
	Files         int
	Cost          string
}

// IO is the contract between the session loop and the terminal layer.
// Every method maps to a distinct visual event so the controller never
// depends on a specific rendering implementation.
type IO interface {
	// ReadInput blocks until the user submits a line of input.
	// Returns ("", io.EOF) when the user quits.
	ReadInput() (string, error)

	// UserMessage displays the user's submitted message in the output area.
	UserMessage(text string)

	// ThinkingStart signals that the model has started processing.
	ThinkingStart()

	// TextDelta appends an incremental text chunk from the response stream.
	TextDelta(delta string)

	// TextDone signals that the current response is complete. fullText is
	// the entire reply; implementations that did not stream it render it
	// here.
	TextDone(fullText string)

	// SearchStatus signals that the model started its n-th web search.
	SearchStatus(n, max int)

	// Citation displays a source citation attached to the reply.
	Citation(title, url string)

	// SystemMessage displays a command result or session notice.
	SystemMessage(text string)

	// Error displays an error message with prominent styling.
	Error(msg string)

	// SetStatus updates the session status line.
	SetStatus(s Status)
}
