package agent

import (
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Wrapper word-wraps streamed text to a fixed column width. Lines break only
// at whitespace; a word wider than the whole line is hard-broken. Text is
// held back only until the current word is complete, so output stays
// incremental. Call Flush when the stream ends.
type Wrapper struct {
	w      io.Writer
	width  int
	col    int
	spaces strings.Builder
	word   []rune
	err    error
}

// NewWrapper wraps w at width columns; width <= 0 disables wrapping.
func NewWrapper(w io.Writer, width int) *Wrapper {
	return &Wrapper{w: w, width: width}
}

// SetColumn records that n columns of the current line were already written
// by someone else, e.g. a prompt header.
func (ww *Wrapper) SetColumn(n int) { ww.col = n }

// WriteString feeds a fragment of text.
func (ww *Wrapper) WriteString(s string) (int, error) {
	if ww.width <= 0 {
		ww.emit(s)
		return len(s), ww.err
	}
	for _, r := range s {
		switch r {
		case '\n':
			ww.flushWord()
			ww.spaces.Reset()
			ww.emit("\n")
			ww.col = 0
		case ' ', '\t':
			ww.flushWord()
			ww.spaces.WriteRune(r)
		default:
			ww.word = append(ww.word, r)
			ww.breakLongWord()
		}
	}
	return len(s), ww.err
}

// Write implements io.Writer.
func (ww *Wrapper) Write(p []byte) (int, error) {
	return ww.WriteString(string(p))
}

// Flush writes any held-back word. Trailing whitespace is dropped.
func (ww *Wrapper) Flush() error {
	ww.flushWord()
	ww.spaces.Reset()
	return ww.err
}

func (ww *Wrapper) flushWord() {
	if len(ww.word) == 0 {
		return
	}
	word := string(ww.word)
	ww.word = ww.word[:0]

	spaces := ww.spaces.String()
	ww.spaces.Reset()

	needed := runewidth.StringWidth(spaces) + runewidth.StringWidth(word)
	if ww.col+needed <= ww.width {
		ww.emit(spaces + word)
		ww.col += needed
		return
	}
	if ww.col > 0 {
		ww.emit("\n")
	}
	ww.emit(word)
	ww.col = runewidth.StringWidth(word)
}

// breakLongWord hard-breaks the pending word once it cannot fit on a line
// of its own.
func (ww *Wrapper) breakLongWord() {
	for runewidth.StringWidth(string(ww.word)) > ww.width {
		if ww.col > 0 {
			ww.emit("\n")
			ww.col = 0
		}
		ww.spaces.Reset()

		n, w := 0, 0
		for n < len(ww.word) {
			rw := runewidth.RuneWidth(ww.word[n])
			if w+rw > ww.width && n > 0 {
				break
			}
			w += rw
			n++
		}
		ww.emit(string(ww.word[:n]) + "\n")
		ww.word = append(ww.word[:0], ww.word[n:]...)
	}
}

func (ww *Wrapper) emit(s string) {
	if ww.err != nil || s == "" {
		return
	}
	_, ww.err = io.WriteString(ww.w, s)
}

// WrapText wraps a complete text to width columns.
func WrapText(text string, width int) string {
	var b strings.Builder
	ww := NewWrapper(&b, width)
	ww.WriteString(text)
	ww.Flush()
	return b.String()
}
