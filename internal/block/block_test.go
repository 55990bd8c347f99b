package block

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(ls []Line) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.Text)
	}
	return out
}

func TestExtract_BetweenMarkers(t *testing.T) {
	lines := []string{
		"noise before",
		"Flaky Agent Table Start Time: 12:00:01",
		"5,2,[a_1_2],",
		"7,1,[c_2_5],",
		"Using time feedback mode: true",
		"9,9,[z_0_0],",
	}

	got := Extract(lines, DefaultMarkers())
	assert.Equal(t, []string{"5,2,[a_1_2],", "7,1,[c_2_5],"}, texts(got))
	assert.Equal(t, 3, got[0].No)
	assert.Equal(t, 4, got[1].No)
}

func TestExtract_MissingStartYieldsNothing(t *testing.T) {
	got := Extract([]string{"5,2,[a_1_2]", "Using time feedback mode: x"}, DefaultMarkers())
	assert.Empty(t, got)
}

func TestExtract_MissingStopTakesRest(t *testing.T) {
	got := Extract([]string{"Flaky Agent Table Start Time:", "1,1,[a_1_1]", "2,1,[a_2_2]"}, DefaultMarkers())
	assert.Equal(t, []string{"1,1,[a_1_1]", "2,1,[a_2_2]"}, texts(got))
}

func TestExtract_PrefixMatchOnly(t *testing.T) {
	// 行首不是标记（前面有空格）时不算标记。
	got := Extract([]string{" Flaky Agent Table Start Time:", "1,1,[a_1_1]"}, DefaultMarkers())
	assert.Empty(t, got)
}

func TestExtract_SkipsRepeatedStartAndBlankLines(t *testing.T) {
	got := Extract([]string{
		"Flaky Agent Table Start Time: a",
		"",
		"1,1,[a_1_1]",
		"Flaky Agent Table Start Time: b",
		"   ",
		"2,1,[a_2_2]\r\n",
	}, DefaultMarkers())
	assert.Equal(t, []string{"1,1,[a_1_1]", "2,1,[a_2_2]"}, texts(got))
}

func TestExtract_CustomMarkers(t *testing.T) {
	got := Extract([]string{"BEGIN", "1,1,[a_1_1]", "END", "2,2,[b_1_1]"}, Markers{Start: "BEGIN", Stop: "END"})
	assert.Equal(t, []string{"1,1,[a_1_1]"}, texts(got))
}

func TestExtractor_StateTransitions(t *testing.T) {
	e := NewExtractor(Markers{})
	require.Equal(t, BeforeStart, e.State())

	assert.False(t, e.Feed("Using time feedback mode:"), "开始前的结束标记不应生效")
	assert.Equal(t, BeforeStart, e.State())

	assert.False(t, e.Feed("Flaky Agent Table Start Time:"))
	assert.Equal(t, InBlock, e.State())

	assert.True(t, e.Feed("1,1,[a_1_1]"))
	assert.False(t, e.Feed("Using time feedback mode: on"))
	assert.Equal(t, Done, e.State())

	assert.False(t, e.Feed("Flaky Agent Table Start Time:"), "Done 是终态")
	assert.Equal(t, Done, e.State())
	assert.Equal(t, "done", e.State().String())
}

func TestExtractReader_LineNumbersAndStop(t *testing.T) {
	in := strings.Join([]string{
		"header",
		"Flaky Agent Table Start Time: now",
		"10,1,[x_2_3],",
		"Using time feedback mode: yes",
		"trailing",
	}, "\n")

	lines, total, err := ExtractReader(strings.NewReader(in), DefaultMarkers())
	require.NoError(t, err)
	assert.Equal(t, 4, total, "遇到结束标记后不再读取")
	require.Len(t, lines, 1)
	assert.Equal(t, Line{No: 3, Text: "10,1,[x_2_3],"}, lines[0])
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestExtractReader_PropagatesReadError(t *testing.T) {
	_, _, err := ExtractReader(failingReader{}, DefaultMarkers())
	assert.EqualError(t, err, "boom")
}

func TestExtractReader_VeryLongLine(t *testing.T) {
	long := "1,1," + strings.Repeat("[a_1_1],", 700_000) // 约 5.6 MiB
	in := "Flaky Agent Table Start Time: 1\n" + long + "\nUsing time feedback mode: x\n"

	lines, total, err := ExtractReader(strings.NewReader(in), DefaultMarkers())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, lines, 1)
	assert.Equal(t, len(long), len(lines[0].Text))
}

func TestExtractReader_LastLineWithoutNewline(t *testing.T) {
	in := "Flaky Agent Table Start Time: 1\r\n5,2,[a_1_2],\r\n7,1,[c_2_5],"

	lines, total, err := ExtractReader(strings.NewReader(in), DefaultMarkers())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"5,2,[a_1_2],", "7,1,[c_2_5],"}, texts(lines))
}
