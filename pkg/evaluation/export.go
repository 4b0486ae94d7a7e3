package evaluation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/segbench/pkg/common"
)

// SplitLines returns the trimmed, non-blank lines of raw.
func SplitLines(raw string) []string {
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// IsBatch reports whether raw holds more than one sample.
func IsBatch(raw string) bool {
	return len(SplitLines(raw)) > 1
}

// ExportFileName is the download name of an export created at t.
func ExportFileName(t time.Time) string {
	return fmt.Sprintf("批量分词评测结果-%d.json", t.UnixMilli())
}

// Export serializes data verbatim as indented JSON.
func Export(data *common.BatchComparisonData) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ComparisonMode selects which methods a view shows.
type ComparisonMode string

const (
	ModeBoth            ComparisonMode = "BOTH"
	ModeTraditionalOnly ComparisonMode = "TRADITIONAL_ONLY"
	ModeMGeoOnly        ComparisonMode = "MGEO_ONLY"
)

// MethodView is one method of one sample as displayed.
//
// Report is nil when the overall score is below the view's minimum. Diff[i]
// is true when word i does not occur in the other method's result.
type MethodView struct {
	Result *common.SegmentationResult
	Report *common.EvaluationReport
	Diff   []bool
}

// ItemView is the displayed part of one sample. A method hidden by the
// comparison mode is nil.
type ItemView struct {
	Item        *common.ComparisonData
	Traditional *MethodView
	MGeo        *MethodView
}

// View selects sample index of data for display. It reports false when
// index is out of range. data is not modified.
func View(data *common.BatchComparisonData, index int, mode ComparisonMode, minScore float64) (ItemView, bool) {
	if data == nil || index < 0 || index >= len(data.Items) {
		return ItemView{}, false
	}
	item := &data.Items[index]
	v := ItemView{Item: item}

	if mode == ModeBoth || mode == ModeTraditionalOnly {
		v.Traditional = methodView(&item.Traditional, &item.TraditionalEval, item.MGeo.Words, minScore)
	}
	if mode == ModeBoth || mode == ModeMGeoOnly {
		v.MGeo = methodView(&item.MGeo, &item.MGeoEval, item.Traditional.Words, minScore)
	}
	return v, true
}

func methodView(res *common.SegmentationResult, report *common.EvaluationReport, other []common.SegmentWord, minScore float64) *MethodView {
	present := make(map[string]struct{}, len(other))
	for _, w := range other {
		present[w.Text] = struct{}{}
	}
	diff := make([]bool, len(res.Words))
	for i, w := range res.Words {
		_, ok := present[w.Text]
		diff[i] = !ok
	}

	mv := &MethodView{Result: res, Diff: diff}
	if report.OverallScore >= minScore {
		mv.Report = report
	}
	return mv
}
