package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Renderer renders page markdown for the terminal, caching rendered
// output so revisits (back/forward/traverse) are instant.
type Renderer struct {
	render func(string) (string, error)
	cache  *lru.Cache[string, string]
	plain  bool
}

// NewRenderer builds a renderer. Plain mode skips styling entirely and
// is forced when stdout is not a terminal.
func NewRenderer(plain bool) *Renderer {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		plain = true
	}

	cache, _ := lru.New[string, string](64)
	r := &Renderer{cache: cache, plain: plain}

	if !plain {
		tr, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(), // Automatically detect light/dark background
		)
		if err == nil {
			r.render = tr.Render
		}
	}
	return r
}

// Page renders the markdown for a URL, serving cache hits for revisits.
func (r *Renderer) Page(url, markdown string) string {
	if out, ok := r.cache.Get(url); ok {
		return out
	}

	out := markdown
	if r.render != nil {
		if rendered, err := r.render(markdown); err == nil {
			out = rendered
		}
	}
	r.cache.Add(url, out)
	return out
}

// Status prints a colored one-line status message.
func (r *Renderer) Status(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if r.plain {
		fmt.Printf(">>> %s\n", msg)
		return
	}
	p := termenv.ColorProfile()
	fmt.Println(termenv.String(">>> " + msg).Foreground(p.Color("#818cf8")))
}

// Error prints a colored one-line error message.
func (r *Renderer) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if r.plain {
		fmt.Printf("!!! %s\n", msg)
		return
	}
	p := termenv.ColorProfile()
	fmt.Println(termenv.String("!!! " + msg).Foreground(p.Color("#fb7185")))
}

// PrintBanner outputs the tool banner with the version.
func (r *Renderer) PrintBanner(version string) {
	if r.plain {
		fmt.Printf("traverse %s\n", version)
		return
	}
	p := termenv.ColorProfile()
	s1 := termenv.String("  _                                   ").Foreground(p.Color("#818cf8"))
	s2 := termenv.String(" | |_ _ __ __ ___   _____ _ __ ___  ___").Foreground(p.Color("#a78bfa"))
	s3 := termenv.String(" | __| '__/ _` \\ \\ / / _ \\ '__/ __|/ _ \\").Foreground(p.Color("#c084fc"))
	s4 := termenv.String(" | |_| | | (_| |\\ V /  __/ |  \\__ \\  __/").Foreground(p.Color("#e879f9"))
	s5 := termenv.String("  \\__|_|  \\__,_| \\_/ \\___|_|  |___/\\___|").Foreground(p.Color("#f472b6"))

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(s5)
	fmt.Printf("  %s\n\n", version)
}
