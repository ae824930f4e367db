package subtitle

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// Default line limits for languages without a complex-script override.
const (
	DefaultMaxLineLength  = 45
	DefaultMinSplitLength = 30

	complexMaxLineLength  = 30
	complexMinSplitLength = 20
)

// DefaultCreditText is appended as the final cue of every subtitle file.
const DefaultCreditText = "Subtitles by\n<i>subgen</i>"

// Processor turns transcription segments into display-ready subtitle cues.
// Splitting honors clause punctuation and conjunctions of the target
// language before falling back to length-based midpoint splits.
type Processor struct {
	segments       []Segment
	lang           string
	maxLineLength  int
	minSplitLength int
	vtt            bool

	comma        string
	conjunctions map[string]bool
	creditText   string
}

// NewProcessor creates a processor for the given segments and language.
// Complex-script languages override the requested line limits with
// tighter ones.
func NewProcessor(segments []Segment, lang string, maxLineLength, minSplitLength int, vtt bool) *Processor {
	p := &Processor{
		segments:       segments,
		lang:           lang,
		maxLineLength:  maxLineLength,
		minSplitLength: minSplitLength,
		vtt:            vtt,
		comma:          clauseComma(lang),
		conjunctions:   conjunctionSet(lang),
		creditText:     DefaultCreditText,
	}
	if complexScriptLanguages[lang] {
		p.maxLineLength = complexMaxLineLength
		p.minSplitLength = complexMinSplitLength
	}
	return p
}

// SetCreditText overrides the trailing credit cue. An empty string keeps
// the cue in the count but omits it from the written file.
func (p *Processor) SetCreditText(text string) {
	p.creditText = text
}

// ReplaceSegments swaps the working segment list while keeping the
// language and line settings. Used after translating cue texts.
func (p *Processor) ReplaceSegments(segments []Segment) {
	p.segments = segments
}

// token is one splittable unit of a segment. Tokens built from word-level
// transcription data carry (possibly estimated) timing; tokens built by
// splitting plain text are timed by apportioning the segment duration.
type token struct {
	text  string
	timed bool
	start *float64
	end   *float64
}

func tokensForSegment(seg Segment) []token {
	if len(seg.Words) > 0 {
		toks := make([]token, len(seg.Words))
		for i, w := range seg.Words {
			toks[i] = token{text: w.Text, timed: true, start: w.Start, end: w.End}
		}
		return toks
	}
	fields := strings.Fields(seg.Text)
	toks := make([]token, len(fields))
	for i, f := range fields {
		toks[i] = token{text: f}
	}
	return toks
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// estimateWordTiming fills in missing start/end times for words[i] from
// its neighbours. Roughly 0.25s per character is assumed when no boundary
// is available.
func (p *Processor) estimateWordTiming(words []token, i int, nextSegStart *float64) {
	const k = 0.25
	hasPrevEnd := i > 0 && words[i-1].end != nil
	hasNextStart := i < len(words)-1 && words[i+1].start != nil
	wordLen := float64(runeLen(words[i].text))
	haveNextSeg := nextSegStart != nil && *nextSegStart != 0

	switch {
	case hasPrevEnd:
		start := *words[i-1].end
		words[i].start = &start
		switch {
		case hasNextStart:
			end := *words[i+1].start
			words[i].end = &end
		case haveNextSeg:
			end := *nextSegStart - 0.5
			if *nextSegStart-start <= 1 {
				end = *nextSegStart
			}
			words[i].end = &end
		default:
			end := start + wordLen*k
			words[i].end = &end
		}
	case hasNextStart:
		start := *words[i+1].start - wordLen*k
		end := *words[i+1].start
		words[i].start, words[i].end = &start, &end
	default:
		if haveNextSeg {
			start := *nextSegStart - 1
			end := *nextSegStart - 0.5
			words[i].start, words[i].end = &start, &end
		} else {
			start, end := 0.0, 0.0
			words[i].start, words[i].end = &start, &end
		}
	}
}

// determineSplitPoints walks the tokens once and records the indices after
// which a new cue should begin. Missing word timings are estimated along
// the way so cue generation sees a fully timed token list.
func (p *Processor) determineSplitPoints(words []token, nextSegStart *float64) []int {
	var splitPoints []int
	lastSplitPoint := 0
	charCount := 0

	addSpace := 1
	if noSpaceLanguages[p.lang] {
		addSpace = 0
	}

	totalCharCount := 0
	for _, w := range words {
		n := runeLen(w.text)
		if !w.timed {
			n += addSpace
		}
		totalCharCount += n
	}
	charCountAfter := totalCharCount

	for i := range words {
		wordText := words[i].text
		wordLength := runeLen(wordText) + addSpace
		charCount += wordLength
		charCountAfter -= wordLength
		charCountBefore := charCount - wordLength

		if words[i].timed && (words[i].start == nil || words[i].end == nil) {
			p.estimateWordTiming(words, i, nextSegStart)
		}

		switch {
		case strings.HasSuffix(wordText, p.comma) &&
			charCountBefore >= p.minSplitLength && charCountAfter >= p.minSplitLength:
			splitPoints = append(splitPoints, i)
			lastSplitPoint = i + 1
			charCount = 0

		case p.conjunctions[strings.ToLower(wordText)] &&
			charCountBefore >= p.minSplitLength && charCountAfter >= p.minSplitLength:
			splitPoints = append(splitPoints, i-1)
			lastSplitPoint = i
			charCount = wordLength

		case charCount >= p.maxLineLength:
			midpoint := (lastSplitPoint + i) / 2
			if charCountBefore >= p.minSplitLength {
				splitPoints = append(splitPoints, midpoint)
				lastSplitPoint = midpoint + 1
				charCount = 0
				for j := lastSplitPoint; j <= i; j++ {
					n := runeLen(words[j].text)
					if !words[j].timed {
						n += addSpace
					}
					charCount += n
				}
			}
		}
	}
	return splitPoints
}

// cuesFromSplitPoints slices the token list at the split points and builds
// one cue per fragment. Gaps to the following word or segment of 0.8s or
// less are closed by extending the cue.
func (p *Processor) cuesFromSplitPoints(seg Segment, words []token, splitPoints []int, nextSegStart *float64) []Cue {
	var cues []Cue
	totalWordCount := len(words)
	totalTime := seg.End - seg.Start
	elapsed := seg.Start
	prefix := " "
	if noSpaceLanguages[p.lang] {
		prefix = ""
	}

	startIdx := 0
	for _, sp := range splitPoints {
		if sp+1 <= startIdx || sp+1 > len(words) {
			continue
		}
		frag := words[startIdx : sp+1]

		var start, end float64
		var text string
		if frag[0].timed {
			start = floatOrZero(frag[0].start)
			end = floatOrZero(frag[len(frag)-1].end)
			if sp+1 < len(words) {
				if ns := words[sp+1].start; ns != nil && *ns != 0 && *ns-end <= 0.8 {
					end = *ns
				}
			}
			text = joinTokens(frag, prefix)
		} else {
			text = strings.TrimSpace(joinTokens(frag, prefix))
			duration := float64(len(frag)) / float64(totalWordCount) * totalTime
			start = elapsed
			end = elapsed + duration
			elapsed += duration
		}

		cues = append(cues, Cue{Start: start, End: end, Text: text})
		startIdx = sp + 1
	}

	if startIdx < len(words) {
		frag := words[startIdx:]

		var start, end float64
		var text string
		if frag[0].timed {
			start = floatOrZero(frag[0].start)
			end = floatOrZero(frag[len(frag)-1].end)
			text = joinTokens(frag, prefix)
		} else {
			text = strings.TrimSpace(joinTokens(frag, prefix))
			duration := float64(len(frag)) / float64(totalWordCount) * totalTime
			start = elapsed
			end = elapsed + duration
		}

		if nextSegStart != nil && *nextSegStart != 0 && *nextSegStart-end <= 0.8 {
			end = *nextSegStart
		}

		cues = append(cues, Cue{Start: start, End: end, Text: text})
	}

	return cues
}

func joinTokens(words []token, prefix string) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.text
	}
	return strings.Join(parts, prefix)
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// PreSplitSentences rewrites the segments so that each holds a single
// sentence, apportioning segment time by character share. Sentences
// shorter than ten characters are merged into the following one. Word
// level timing is discarded. Used when the cue text differs from the
// transcription, e.g. after translation.
func (p *Processor) PreSplitSentences() {
	const minLength = 10
	var newSegments []Segment

	for _, seg := range p.segments {
		sentences := splitSentences(seg.Text)

		totalLength := 0
		for _, s := range sentences {
			totalLength += runeLen(s)
		}
		if totalLength == 0 {
			continue
		}

		elapsed := 0.0
		for i, sentence := range sentences {
			if runeLen(sentence) < minLength && i < len(sentences)-1 {
				sentences[i+1] = sentence + " " + sentences[i+1]
				continue
			}

			ratio := float64(runeLen(sentence)) / float64(totalLength)
			interval := (seg.End - seg.Start) * ratio

			newSegments = append(newSegments, Segment{
				Start: seg.Start + elapsed,
				End:   seg.Start + elapsed + interval,
				Text:  strings.TrimSpace(sentence),
			})
			elapsed += interval
		}
	}

	p.segments = newSegments
}

// splitSentences splits text on runs of spaces that follow sentence-final
// punctuation. The punctuation stays attached to the preceding sentence.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		if runes[i] != ' ' {
			continue
		}
		if i == 0 {
			continue
		}
		prev := runes[i-1]
		if prev != '.' && prev != '!' && prev != '?' {
			continue
		}
		sentences = append(sentences, string(runes[start:i]))
		for i < len(runes) && runes[i] == ' ' {
			i++
		}
		start = i
		i--
	}
	sentences = append(sentences, string(runes[start:]))
	return sentences
}

// ProcessSegments flattens the segments into cues. With advanced splitting
// each segment is split along language-aware split points; without it each
// segment becomes a single cue.
func (p *Processor) ProcessSegments(advancedSplitting bool) []Cue {
	var cues []Cue

	for i, seg := range p.segments {
		var nextSegStart *float64
		if i+1 < len(p.segments) {
			nextSegStart = floatPtr(p.segments[i+1].Start)
		}

		words := tokensForSegment(seg)

		if advancedSplitting {
			splitPoints := p.determineSplitPoints(words, nextSegStart)
			cues = append(cues, p.cuesFromSplitPoints(seg, words, splitPoints, nextSegStart)...)
			continue
		}

		for j := range words {
			if words[j].timed && (words[j].start == nil || words[j].end == nil) {
				p.estimateWordTiming(words, j, nextSegStart)
			}
		}
		cues = append(cues, Cue{Start: seg.Start, End: seg.End, Text: seg.Text})
	}

	return cues
}

// Save writes the cues to path and returns how many cues the file holds,
// the trailing credit cue included. Cues whose text is empty keep their
// index but are not written.
func (p *Processor) Save(path string, advancedSplitting bool) (int, error) {
	cues := p.ProcessSegments(advancedSplitting)

	lastEnd := 0.0
	if len(cues) > 0 {
		lastEnd = cues[len(cues)-1].End
	}
	cues = append(cues, Cue{Start: lastEnd + 1, End: lastEnd + 4.5, Text: p.creditText})

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create subtitle file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if p.vtt {
		fmt.Fprint(w, "WEBVTT\n\n")
	}
	for i, cue := range cues {
		text := strings.TrimSpace(cue.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(w, "%d\n", i+1)
		fmt.Fprintf(w, "%s --> %s\n", FormatTimestamp(cue.Start, p.vtt), FormatTimestamp(cue.End, p.vtt))
		fmt.Fprintf(w, "%s\n\n", text)
	}
	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("failed to write subtitle file: %w", err)
	}

	return len(cues), nil
}
