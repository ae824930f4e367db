package subtitle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateWordTimingFromPreviousEnd(t *testing.T) {
	p := NewProcessor(nil, "en", DefaultMaxLineLength, DefaultMinSplitLength, false)
	words := []token{
		{text: "Hi", timed: true, end: floatPtr(1.0)},
		{text: "there", timed: true},
	}

	p.estimateWordTiming(words, 1, nil)

	require.NotNil(t, words[1].start)
	require.NotNil(t, words[1].end)
	assert.InDelta(t, 1.0, *words[1].start, 1e-9)
	assert.InDelta(t, 2.25, *words[1].end, 1e-9)
}

func TestEstimateWordTimingBackDerived(t *testing.T) {
	p := NewProcessor(nil, "en", DefaultMaxLineLength, DefaultMinSplitLength, false)
	words := []token{
		{text: "okay", timed: true},
		{text: "then", timed: true, start: floatPtr(3.0), end: floatPtr(3.5)},
	}

	p.estimateWordTiming(words, 0, nil)

	require.NotNil(t, words[0].start)
	assert.InDelta(t, 3.0-4*0.25, *words[0].start, 1e-9)
	assert.InDelta(t, 3.0, *words[0].end, 1e-9)
}

func TestEstimateWordTimingNoNeighborTiming(t *testing.T) {
	p := NewProcessor(nil, "en", DefaultMaxLineLength, DefaultMinSplitLength, false)

	words := []token{{text: "lone", timed: true}}
	p.estimateWordTiming(words, 0, floatPtr(10.0))
	assert.InDelta(t, 9.0, *words[0].start, 1e-9)
	assert.InDelta(t, 9.5, *words[0].end, 1e-9)

	words = []token{{text: "lone", timed: true}}
	p.estimateWordTiming(words, 0, nil)
	assert.Zero(t, *words[0].start)
	assert.Zero(t, *words[0].end)
}

func TestEstimateWordTimingNextSegmentGapCap(t *testing.T) {
	p := NewProcessor(nil, "en", DefaultMaxLineLength, DefaultMinSplitLength, false)

	// gap to next segment within one second, use its start directly
	words := []token{
		{text: "so", timed: true, end: floatPtr(4.5)},
		{text: "anyway", timed: true},
	}
	p.estimateWordTiming(words, 1, floatPtr(5.0))
	assert.InDelta(t, 5.0, *words[1].end, 1e-9)

	// gap wider than one second, back off half a second
	words = []token{
		{text: "so", timed: true, end: floatPtr(2.0)},
		{text: "anyway", timed: true},
	}
	p.estimateWordTiming(words, 1, floatPtr(5.0))
	assert.InDelta(t, 4.5, *words[1].end, 1e-9)
}

func TestComplexScriptOverridesLineLimits(t *testing.T) {
	p := NewProcessor(nil, "ar", 75, 30, false)
	assert.Equal(t, 30, p.maxLineLength)
	assert.Equal(t, 20, p.minSplitLength)
	assert.Equal(t, "،", p.comma)

	p = NewProcessor(nil, "en", 75, 30, false)
	assert.Equal(t, 75, p.maxLineLength)
	assert.Equal(t, 30, p.minSplitLength)
}

func TestMidpointSplit(t *testing.T) {
	seg := Segment{Start: 0, End: 5, Text: "x x x x x x x x x x"}
	p := NewProcessor([]Segment{seg}, "en", 4, 1, false)

	points := p.determineSplitPoints(tokensForSegment(seg), nil)

	require.NotEmpty(t, points)
	found := false
	for _, sp := range points {
		if sp >= 1 && sp <= 3 {
			found = true
		}
	}
	assert.True(t, found, "expected a midpoint split near index 2, got %v", points)
}

func TestCommaSplit(t *testing.T) {
	seg := Segment{Start: 0, End: 6, Text: "hello there, general kenobi here"}
	p := NewProcessor([]Segment{seg}, "en", 100, 5, false)

	cues := p.ProcessSegments(true)

	require.Len(t, cues, 2)
	assert.Equal(t, "hello there,", cues[0].Text)
	assert.Equal(t, "general kenobi here", cues[1].Text)
}

func TestConjunctionSplitBeforeWord(t *testing.T) {
	seg := Segment{Start: 0, End: 9, Text: "the cat sat quietly and the dog barked loudly"}
	p := NewProcessor([]Segment{seg}, "en", 200, 10, false)

	cues := p.ProcessSegments(true)

	require.Len(t, cues, 2)
	assert.Equal(t, "the cat sat quietly", cues[0].Text)
	assert.Equal(t, "and the dog barked loudly", cues[1].Text)
	// untimed fragments apportion time by word-count share
	assert.InDelta(t, 0.0, cues[0].Start, 1e-9)
	assert.InDelta(t, 4.0, cues[0].End, 1e-9)
	assert.InDelta(t, 4.0, cues[1].Start, 1e-9)
	assert.InDelta(t, 9.0, cues[1].End, 1e-9)
}

func TestTimedCueEndPulledToNextWord(t *testing.T) {
	seg := Segment{
		Start: 0, End: 2, Text: "Hello, world",
		Words: []Word{
			{Text: "Hello,", Start: floatPtr(0), End: floatPtr(1.0)},
			{Text: "world", Start: floatPtr(1.5), End: floatPtr(2.0)},
		},
	}
	p := NewProcessor([]Segment{seg}, "en", 100, 0, false)

	cues := p.ProcessSegments(true)

	require.Len(t, cues, 2)
	// the 0.5s gap to the next word is closed
	assert.InDelta(t, 1.5, cues[0].End, 1e-9)
	assert.Equal(t, "Hello,", cues[0].Text)
	assert.Equal(t, "world", cues[1].Text)
}

func TestLastCueEndPulledToNextSegment(t *testing.T) {
	segs := []Segment{
		{
			Start: 0, End: 2, Text: "first part",
			Words: []Word{
				{Text: "first", Start: floatPtr(0), End: floatPtr(1.0)},
				{Text: "part", Start: floatPtr(1.2), End: floatPtr(2.0)},
			},
		},
		{
			Start: 2.5, End: 4, Text: "second part",
			Words: []Word{
				{Text: "second", Start: floatPtr(2.5), End: floatPtr(3.2)},
				{Text: "part", Start: floatPtr(3.3), End: floatPtr(4.0)},
			},
		},
	}
	p := NewProcessor(segs, "en", 100, 30, false)

	cues := p.ProcessSegments(true)

	require.Len(t, cues, 2)
	assert.InDelta(t, 2.5, cues[0].End, 1e-9)
	assert.InDelta(t, 4.0, cues[1].End, 1e-9)
}

func TestCueBoundsOrdering(t *testing.T) {
	segs := []Segment{
		{Start: 0, End: 4, Text: "this is a longer piece of spoken text that needs splitting into lines"},
		{Start: 4.2, End: 8, Text: "and here comes even more text that also has to be broken up nicely"},
	}
	p := NewProcessor(segs, "en", DefaultMaxLineLength, DefaultMinSplitLength, false)

	cues := p.ProcessSegments(true)

	require.NotEmpty(t, cues)
	for i, cue := range cues {
		assert.NotEmpty(t, strings.TrimSpace(cue.Text))
		assert.GreaterOrEqual(t, cue.End, cue.Start, "cue %d", i)
		if i > 0 {
			assert.GreaterOrEqual(t, cue.Start, cues[i-1].Start, "cue %d", i)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First one. Second one! Third?  Fourth")
	assert.Equal(t, []string{"First one.", "Second one!", "Third?", "Fourth"}, got)

	got = splitSentences("No terminal punctuation here")
	assert.Equal(t, []string{"No terminal punctuation here"}, got)
}

func TestPreSplitSentences(t *testing.T) {
	segs := []Segment{{Start: 0, End: 10, Text: "This is the first sentence. And here the second one."}}
	p := NewProcessor(segs, "en", DefaultMaxLineLength, DefaultMinSplitLength, false)

	p.PreSplitSentences()

	require.Len(t, p.segments, 2)
	assert.Equal(t, "This is the first sentence.", p.segments[0].Text)
	assert.Equal(t, "And here the second one.", p.segments[1].Text)
	assert.InDelta(t, 0, p.segments[0].Start, 1e-9)
	assert.InDelta(t, 10.0*27.0/51.0, p.segments[0].End, 1e-9)
	assert.InDelta(t, p.segments[0].End, p.segments[1].Start, 1e-9)
	assert.InDelta(t, 10.0, p.segments[1].End, 1e-9)
}

func TestPreSplitSentencesMergesShortOnes(t *testing.T) {
	segs := []Segment{{Start: 0, End: 5.8, Text: "Hi. This is a longer sentence."}}
	p := NewProcessor(segs, "en", DefaultMaxLineLength, DefaultMinSplitLength, false)

	p.PreSplitSentences()

	require.Len(t, p.segments, 1)
	assert.Equal(t, "Hi. This is a longer sentence.", p.segments[0].Text)
	assert.InDelta(t, 0, p.segments[0].Start, 1e-9)
	assert.InDelta(t, 5.8*30.0/29.0, p.segments[0].End, 1e-9)
}

func TestSaveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	segs := func() []Segment {
		return []Segment{
			{Start: 0, End: 4, Text: "this is a longer piece of spoken text that needs splitting into lines"},
			{Start: 4.2, End: 8, Text: "and here comes even more text that also has to be broken up nicely"},
		}
	}

	path1 := filepath.Join(dir, "one.srt")
	path2 := filepath.Join(dir, "two.srt")

	count1, err := NewProcessor(segs(), "en", DefaultMaxLineLength, DefaultMinSplitLength, false).Save(path1, true)
	require.NoError(t, err)
	count2, err := NewProcessor(segs(), "en", DefaultMaxLineLength, DefaultMinSplitLength, false).Save(path2, true)
	require.NoError(t, err)

	assert.Equal(t, count1, count2)
	data1, err := os.ReadFile(path1)
	require.NoError(t, err)
	data2, err := os.ReadFile(path2)
	require.NoError(t, err)
	assert.Equal(t, data1, data2)
}

func TestSaveWritesVTTHeaderAndCredit(t *testing.T) {
	dir := t.TempDir()
	segs := []Segment{{Start: 0, End: 2, Text: "hello out there"}}
	p := NewProcessor(segs, "en", DefaultMaxLineLength, DefaultMinSplitLength, true)

	path := filepath.Join(dir, "out.vtt")
	count, err := p.Save(path, true)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "WEBVTT\n\n"))
	assert.Contains(t, text, "00:00:00.000 --> 00:00:02.000")
	assert.Contains(t, text, "Subtitles by")
}

func TestSaveSkipsEmptyCreditButCountsIt(t *testing.T) {
	dir := t.TempDir()
	segs := []Segment{{Start: 0, End: 2, Text: "hello out there"}}
	p := NewProcessor(segs, "en", DefaultMaxLineLength, DefaultMinSplitLength, false)
	p.SetCreditText("")

	path := filepath.Join(dir, "out.srt")
	count, err := p.Save(path, true)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Subtitles by")
	// the skipped credit keeps its index, so only cue 1 appears
	assert.NotContains(t, string(data), "\n2\n")
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:00,000", FormatTimestamp(0, false))
	assert.Equal(t, "01:01:01,500", FormatTimestamp(3661.5, false))
	assert.Equal(t, "00:00:01.234", FormatTimestamp(1.234, true))
	assert.Equal(t, "00:00:00,000", FormatTimestamp(-3, false))
	assert.Equal(t, "10:00:00,000", FormatTimestamp(36000, false))
}

func TestNoSpaceLanguageJoinsWithoutSpaces(t *testing.T) {
	seg := Segment{
		Start: 0, End: 2, Text: "你好世界",
		Words: []Word{
			{Text: "你好", Start: floatPtr(0), End: floatPtr(1.0)},
			{Text: "世界", Start: floatPtr(1.0), End: floatPtr(2.0)},
		},
	}
	p := NewProcessor([]Segment{seg}, "zh", 100, 0, false)

	cues := p.ProcessSegments(true)

	require.NotEmpty(t, cues)
	joined := ""
	for _, c := range cues {
		joined += c.Text
	}
	assert.Equal(t, "你好世界", joined)
}
