// Package segment splits agent output into chunks that respect the chat
// platform's hard size limits, keeping fenced code blocks intact where possible.
package segment

import (
	"errors"
	"strings"
)

// Discord size limits, in characters. Split is parameterized by maxLen so the
// same engine serves any of these budgets.
const (
	MaxMessageLen       = 2000 // plain message body
	MaxEmbedDescription = 4096 // single embed description
	MaxFieldValue       = 1024 // single embed field value
	MaxFooterLen        = 2048 // embed footer
	MaxEmbedPayload     = 6000 // total characters across one message's embeds
)

// ErrInvalidLimit is returned when Split is called with a non-positive limit.
var ErrInvalidLimit = errors.New("segment: max length must be positive")

// Chunk is one platform-sized piece of a larger message. Index is the
// zero-based position within the sequence and Total the sequence length.
// Code marks chunks whose text is entirely fenced-code content.
type Chunk struct {
	Text  string
	Code  bool
	Index int
	Total int
}

// flushNum/flushDen: a buffer at or above 90% of the limit is flushed early
// rather than topped up right to the edge.
const (
	flushNum = 9
	flushDen = 10
)

// boundaryNum/boundaryDen: a newline or space boundary is only taken if the
// resulting piece keeps at least 80% of the budget; otherwise we cut hard.
const (
	boundaryNum = 4
	boundaryDen = 5
)

// Split breaks text into ordered chunks of at most maxLen characters.
// Concatenating the chunk texts, minus the fence markers the engine inserts
// when it has to split an oversized code block, reproduces text exactly.
// When preserveCode is true, a fenced code block is never split across chunks
// unless the block itself is longer than maxLen.
func Split(text string, maxLen int, preserveCode bool) ([]Chunk, error) {
	if maxLen <= 0 {
		return nil, ErrInvalidLimit
	}
	if text == "" {
		return nil, nil
	}
	if len(text) <= maxLen {
		return finalize([]Chunk{{Text: text}}), nil
	}
	if !preserveCode {
		return finalize(plainChunks(text, maxLen)), nil
	}

	var chunks []Chunk
	var buf strings.Builder
	bufPlain, bufCode := false, false

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{Text: buf.String(), Code: bufCode && !bufPlain})
		buf.Reset()
		bufPlain, bufCode = false, false
	}

	for _, reg := range partition(text) {
		if reg.code {
			if buf.Len()+len(reg.text) > maxLen {
				flush()
			}
			if len(reg.text) > maxLen {
				// Block is bigger than a whole chunk; split it at line
				// boundaries, re-fencing each piece.
				for _, piece := range splitCode(reg.text, reg.lang, maxLen) {
					chunks = append(chunks, Chunk{Text: piece, Code: true})
				}
			} else {
				buf.WriteString(reg.text)
				bufCode = true
			}
		} else {
			rest := reg.text
			for len(rest) > 0 {
				budget := maxLen - buf.Len()
				if budget <= 0 {
					flush()
					budget = maxLen
				}
				n := cutPoint(rest, budget)
				buf.WriteString(rest[:n])
				bufPlain = true
				rest = rest[n:]
				if len(rest) > 0 {
					flush()
				}
			}
		}
		// Safety margin: don't let a nearly-full buffer accumulate more.
		if buf.Len()*flushDen >= maxLen*flushNum {
			flush()
		}
	}
	flush()

	return finalize(chunks), nil
}

// finalize numbers the chunks and drops empty ones.
func finalize(chunks []Chunk) []Chunk {
	out := chunks[:0]
	for _, c := range chunks {
		if c.Text == "" {
			continue
		}
		out = append(out, c)
	}
	for i := range out {
		out[i].Index = i
		out[i].Total = len(out)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// plainChunks is the preserveCode=false path: pure natural-boundary splitting.
func plainChunks(text string, maxLen int) []Chunk {
	var chunks []Chunk
	for len(text) > 0 {
		n := cutPoint(text, maxLen)
		chunks = append(chunks, Chunk{Text: text[:n]})
		text = text[n:]
	}
	return chunks
}

// cutPoint returns the length of the next piece of s under budget. It prefers
// cutting just after a newline, then just after a space, as long as the piece
// keeps at least 80% of the budget; otherwise it cuts hard at the budget.
func cutPoint(s string, budget int) int {
	if len(s) <= budget {
		return len(s)
	}
	floor := budget * boundaryNum / boundaryDen
	for i := budget - 1; i >= floor; i-- {
		if s[i] == '\n' {
			return i + 1
		}
	}
	for i := budget - 1; i >= floor; i-- {
		if s[i] == ' ' {
			return i + 1
		}
	}
	return budget
}

// region is a run of text that is either entirely inside one fenced code
// block (including its fence lines) or entirely outside any.
type region struct {
	text string
	code bool
	lang string
}

// partition slices text into an alternating sequence of plain and fenced-code
// regions, in original order. An unterminated opening fence is treated as
// plain text.
func partition(text string) []region {
	var regs []region
	rest := text
	for {
		open := strings.Index(rest, "```")
		if open < 0 {
			if rest != "" {
				regs = append(regs, region{text: rest})
			}
			return regs
		}
		// The closing marker must come after the opening fence line.
		lineEnd := strings.IndexByte(rest[open:], '\n')
		if lineEnd < 0 {
			regs = append(regs, region{text: rest})
			return regs
		}
		bodyStart := open + lineEnd + 1
		closing := strings.Index(rest[bodyStart:], "```")
		if closing < 0 {
			regs = append(regs, region{text: rest})
			return regs
		}
		end := bodyStart + closing + 3
		if open > 0 {
			regs = append(regs, region{text: rest[:open]})
		}
		block := rest[open:end]
		regs = append(regs, region{text: block, code: true, lang: fenceLang(block)})
		rest = rest[end:]
	}
}

// fenceLang extracts the language tag from a fenced block's opening line.
func fenceLang(block string) string {
	nl := strings.IndexByte(block, '\n')
	if nl < 0 {
		return ""
	}
	return strings.TrimSpace(block[3:nl])
}

// splitCode splits an oversized fenced block into pieces of at most maxLen,
// re-opening the fence (with its language tag) at the start of every
// continuation piece and re-closing it at the end of every piece except the
// last, which keeps the block's own closing fence.
func splitCode(block, lang string, maxLen int) []string {
	reopen := "```" + lang + "\n"
	const reclose = "\n```"
	overhead := len(reopen) + len(reclose)
	if overhead >= maxLen {
		// Limit too small to carry fences at all; degrade to hard cuts.
		var pieces []string
		for len(block) > 0 {
			n := maxLen
			if n > len(block) {
				n = len(block)
			}
			pieces = append(pieces, block[:n])
			block = block[n:]
		}
		return pieces
	}

	nl := strings.IndexByte(block, '\n')
	openLine := block[:nl+1]
	body := block[nl+1:]
	closing := "```"
	body = strings.TrimSuffix(body, "```")
	if strings.HasSuffix(body, "\n") {
		body = strings.TrimSuffix(body, "\n")
		closing = "\n```"
	}

	var pieces []string
	cur := openLine
	curEmpty := true // cur holds only its opening fence line
	emit := func(last bool) {
		if last {
			pieces = append(pieces, cur+closing)
		} else {
			pieces = append(pieces, cur+reclose)
		}
		cur = reopen
		curEmpty = true
	}

	lines := strings.SplitAfter(body, "\n")
	for _, line := range lines {
		for len(cur)+len(line)+len(reclose) > maxLen {
			if !curEmpty {
				// Close out what we have before placing more of this line.
				emit(false)
				continue
			}
			// A single line longer than the budget: cut it hard.
			room := maxLen - len(cur) - len(reclose)
			cur += line[:room]
			line = line[room:]
			emit(false)
		}
		cur += line
		curEmpty = curEmpty && line == ""
	}
	emit(true)
	return pieces
}
