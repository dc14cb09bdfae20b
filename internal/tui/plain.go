package tui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	searchStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	citationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	systemStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

// PlainIO implements IO using line-oriented terminal output. Streamed
// deltas print as they arrive; blocking responses are rendered as
// Markdown on completion when stdout is a terminal.
type PlainIO struct {
	scanner    *bufio.Scanner
	mu         sync.Mutex
	isTTY      bool
	streamed   bool // a delta was printed for the current response
	mdRenderer *glamour.TermRenderer
}

// NewPlainIO creates a PlainIO that reads from stdin.
func NewPlainIO() *PlainIO {
	s := bufio.NewScanner(os.Stdin)
	s.Buffer(make([]byte, 1024*1024), 1024*1024)
	return &PlainIO{
		scanner: s,
		isTTY:   term.IsTerminal(int(os.Stdout.Fd())),
	}
}

func (p *PlainIO) ReadInput() (string, error) {
	fmt.Print("\n> ")
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

func (p *PlainIO) UserMessage(_ string) {
	// The user already sees what they typed.
}

func (p *PlainIO) ThinkingStart() {
	p.mu.Lock()
	p.streamed = false
	p.mu.Unlock()
	fmt.Println()
}

func (p *PlainIO) TextDelta(delta string) {
	p.mu.Lock()
	p.streamed = true
	p.mu.Unlock()
	fmt.Print(delta)
}

func (p *PlainIO) TextDone(fullText string) {
	p.mu.Lock()
	streamed := p.streamed
	p.mu.Unlock()
	if streamed {
		fmt.Println()
		return
	}
	fmt.Println(p.renderMarkdown(fullText))
}

func (p *PlainIO) SearchStatus(n, max int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Println(searchStyle.Render(fmt.Sprintf("\n[searching the web... %d/%d]", n, max)))
}

func (p *PlainIO) Citation(title, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if title == "" {
		title = url
	}
	fmt.Println(citationStyle.Render(fmt.Sprintf("  • %s — %s", title, url)))
}

func (p *PlainIO) SystemMessage(text string) {
	fmt.Println(systemStyle.Render(text))
}

func (p *PlainIO) Error(msg string) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+msg))
}

func (p *PlainIO) SetStatus(s Status) {
	parts := []string{s.Model}
	if s.SearchEnabled {
		parts = append(parts, "web:on")
	}
	if s.CacheStatus != "" {
		parts = append(parts, "cache:"+s.CacheStatus)
	}
	parts = append(parts, fmt.Sprintf("%d msgs", s.Messages))
	if s.Files > 0 {
		parts = append(parts, fmt.Sprintf("%d files", s.Files))
	}
	if s.Cost != "" {
		parts = append(parts, s.Cost)
	}
	fmt.Println(statusStyle.Render("[" + strings.Join(parts, " │ ") + "]"))
}

func (p *PlainIO) renderMarkdown(text string) string {
	if !p.isTTY {
		return text
	}
	if p.mdRenderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(76),
		)
		if err != nil {
			return text
		}
		p.mdRenderer = r
	}
	rendered, err := p.mdRenderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}
