package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/flakyrank/internal/config"
	"github.com/John-Robertt/flakyrank/internal/domain"
)

func writeLog(t *testing.T, dir string, idx int, rows ...string) {
	t.Helper()
	body := "boot\nFlaky Agent Table Start Time: 1\n" + strings.Join(rows, "\n") + "\nUsing time feedback mode: on\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("output-%d.txt", idx)), []byte(body), 0o644))
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errb bytes.Buffer
	code = execute(args, &out, &errb)
	return code, out.String(), errb.String()
}

func decodeReport(t *testing.T, stdout string) domain.RunReport {
	t.Helper()
	var rr domain.RunReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &rr), "stdout 应是单个 RunReport JSON：%q", stdout)
	return rr
}

func TestRun_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, 0, "5,2,[a_1_2],", "7,1,[c_2_5],")
	writeLog(t, dir, 1, "7,1,[c_1_1],", "5,2,[a_1_2],")

	code, stdout, stderr := runCLI(t, "run", dir, "--target-id", "5", "--occurrence", "2")
	require.Equal(t, 0, code, "stderr=%s", stderr)

	rr := decodeReport(t, stdout)
	assert.Equal(t, []int{0, 1}, rr.Summary.Ranks)
	assert.Equal(t, "output-{i}.txt", rr.Pattern)
	assert.NotContains(t, stdout, "配置（生效）")
	assert.Contains(t, stderr, "完成：blocks=2 ranked=2")
}

func TestRun_NotFoundExitsOne(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, 0, "7,1,[c_2_5],")

	code, stdout, _ := runCLI(t, "run", dir, "--target-id", "5", "--occurrence", "2")
	assert.Equal(t, 1, code)
	rr := decodeReport(t, stdout)
	require.Len(t, rr.Items, 1)
	assert.Equal(t, domain.ErrCodeTargetNotFound, rr.Items[0].ErrorCode)
}

func TestRun_ConfigErrorBecomesReportItem(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, 0, "5,2,[a_1_2],")

	code, stdout, _ := runCLI(t, "run", dir)
	assert.Equal(t, 1, code)
	rr := decodeReport(t, stdout)
	require.Len(t, rr.Items, 1)
	assert.Equal(t, -1, rr.Items[0].Index)
	assert.Equal(t, config.ErrCodeMissingTarget, rr.Items[0].ErrorCode)
}

func TestRun_NoSources(t *testing.T) {
	code, _, stderr := runCLI(t, "run", t.TempDir(), "--target-id", "1", "--occurrence", "1")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "未找到任何输入文件")
}

func TestRun_UsageErrorsExitTwo(t *testing.T) {
	cases := [][]string{
		{"run", "--bogus"},
		{"run", "a", "b"},
		{"run", "--max-blocks", "x"},
		{"nope"},
	}
	for _, args := range cases {
		code, stdout, stderr := runCLI(t, args...)
		assert.Equal(t, 2, code, "args=%v", args)
		assert.Empty(t, stdout, "用法错误不应输出报告：args=%v", args)
		assert.Contains(t, stderr, "参数错误", "args=%v", args)
	}
}

func TestRun_OutWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, 0, "5,2,[a_3_3],", "7,1,[c_1_1],")
	writeLog(t, dir, 1, "7,1,[c_2_5],")
	writeLog(t, dir, 2, "5,2,[a_1_1],", "7,1,[c_2_5],")
	out := filepath.Join(t.TempDir(), "plots")

	code, stdout, _ := runCLI(t, "run", dir, "--target-id=5", "--occurrence=2", "--out", out)
	assert.Equal(t, 1, code)

	b, err := os.ReadFile(filepath.Join(out, reportFileName))
	require.NoError(t, err)
	fromFile := decodeReport(t, string(b))
	fromStdout := decodeReport(t, stdout)
	assert.Equal(t, fromStdout.RunID, fromFile.RunID)
	assert.Equal(t, []int{1, 0}, fromFile.Summary.Ranks)

	f, err := os.Open(filepath.Join(out, plotFileName))
	require.NoError(t, err)
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), doc.Find("h1").Text())
	assert.Equal(t, 2, doc.Find("svg#chart circle.point").Length())
	assert.Equal(t, 3, doc.Find("table#ranks tbody tr").Length())
}

func TestRun_MaxBlocksAndPID(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, 0, "5,2,7,[a_1_1],", "5,2,3,[a_4_4],")
	writeLog(t, dir, 1, "5,2,3,[a_1_1],")

	code, stdout, _ := runCLI(t, "run", dir, "--target-id=5", "--occurrence=2", "--pid=3", "--max-blocks=1")
	assert.Equal(t, 0, code)
	rr := decodeReport(t, stdout)
	require.Len(t, rr.Items, 1)
	require.NotNil(t, rr.Selector.PID)
	assert.Equal(t, int64(3), *rr.Selector.PID)
	assert.Equal(t, 1, rr.Items[0].Result.Rank)
}

func TestPlot_FromReport(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, 0, "5,2,[a_1_2],", "7,1,[c_2_5],")
	out := t.TempDir()
	code, _, _ := runCLI(t, "run", dir, "--target-id=5", "--occurrence=2", "--out", out)
	require.Equal(t, 0, code)

	code, stdout, stderr := runCLI(t, "plot", filepath.Join(out, reportFileName))
	require.Equal(t, 0, code, "stderr=%s", stderr)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(stdout))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("circle.point").Length())

	again := t.TempDir()
	code, _, _ = runCLI(t, "plot", filepath.Join(out, reportFileName), "--out", again)
	require.Equal(t, 0, code)
	assert.FileExists(t, filepath.Join(again, plotFileName))
}

func TestPlot_BadReport(t *testing.T) {
	p := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(p, []byte("not json"), 0o644))

	code, _, stderr := runCLI(t, "plot", p)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "不是合法的 RunReport JSON")
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestRun_StdoutWriteFailureExitsOne(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, 0, "5,2,[a_1_2],", "7,1,[c_2_5],")

	var stderr bytes.Buffer
	code := execute([]string{"run", dir, "--target-id=5", "--occurrence=2"}, brokenWriter{}, &stderr)
	assert.Equal(t, 1, code, "全部 ranked 但报告写不出去时不应返回 0")
	assert.Contains(t, stderr.String(), "输出报告失败")
	assert.Contains(t, stderr.String(), "broken pipe")
	assert.NotContains(t, stderr.String(), "完成：")
}
