package evaluation

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/OFFIS-RIT/segbench/pkg/common"
)

func TestExportRoundTrip(t *testing.T) {
	data := sampleBatch("南山区科技园", "深南大道100号")
	normalize(data)

	raw, err := Export(data)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.HasPrefix(string(raw), "{\n  \"items\": [") {
		t.Fatalf("export is not indented with two spaces:\n%s", raw)
	}
	if strings.HasSuffix(string(raw), "\n") {
		t.Fatal("export ends with a newline")
	}

	var back common.BatchComparisonData
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(*data, back) {
		t.Fatalf("round trip changed the value:\n%+v\n%+v", *data, back)
	}
}

func TestExportWireNames(t *testing.T) {
	data := sampleBatch("南山区")
	data.Summary.KeyInsights = "MGeo > Traditional & 更准确"
	raw, err := Export(data)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	for _, key := range []string{`"traditionalEval"`, `"mgeoEval"`, `"mgeo"`, `"overallScore"`, `"levelIndex": 4`, `"categoryName": "区"`, `"mgeoAvgScore"`, `"keyInsights"`} {
		if !strings.Contains(string(raw), key) {
			t.Errorf("export lacks %s", key)
		}
	}
	if !strings.Contains(string(raw), `"MGeo > Traditional & 更准确"`) {
		t.Fatal("export escapes HTML characters")
	}
}

func TestExportFileName(t *testing.T) {
	ts := time.UnixMilli(1735689600123)
	if got := ExportFileName(ts); got != "批量分词评测结果-1735689600123.json" {
		t.Fatalf("ExportFileName = %q", got)
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"  \n \n", nil},
		{"南山区", []string{"南山区"}},
		{" 南山区 \r\n\n福田区\n", []string{"南山区", "福田区"}},
	}
	for _, tt := range tests {
		got := SplitLines(tt.raw)
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("SplitLines(%q) = %#v, want %#v", tt.raw, got, tt.want)
		}
	}

	if IsBatch("南山区\n  \n") || !IsBatch("南山区\n福田区") {
		t.Fatal("IsBatch misreports")
	}
}

func TestView(t *testing.T) {
	data := sampleBatch("南山区")

	v, ok := View(data, 0, ModeBoth, 80)
	if !ok {
		t.Fatal("expected a view")
	}
	if v.Traditional == nil || v.MGeo == nil {
		t.Fatal("both methods expected")
	}
	if v.Traditional.Report != nil {
		t.Fatal("traditional report scores 70 and must be filtered at 80")
	}
	if v.MGeo.Report == nil || v.MGeo.Report.OverallScore != 90 {
		t.Fatal("mgeo report expected")
	}
	// 南山 and 区 do not occur in the MGeo result, 南山区 does not occur in the traditional one
	if !reflect.DeepEqual(v.Traditional.Diff, []bool{true, true}) || !reflect.DeepEqual(v.MGeo.Diff, []bool{true}) {
		t.Fatalf("unexpected diffs %v %v", v.Traditional.Diff, v.MGeo.Diff)
	}

	v, _ = View(data, 0, ModeMGeoOnly, 0)
	if v.Traditional != nil || v.MGeo == nil {
		t.Fatal("MGEO_ONLY must hide the traditional method")
	}
	v, _ = View(data, 0, ModeTraditionalOnly, 0)
	if v.Traditional == nil || v.MGeo != nil || v.Traditional.Report == nil {
		t.Fatal("TRADITIONAL_ONLY must hide the mgeo method")
	}

	if _, ok := View(data, 1, ModeBoth, 0); ok {
		t.Fatal("out of range index must report false")
	}
	if _, ok := View(nil, 0, ModeBoth, 0); ok {
		t.Fatal("nil data must report false")
	}
}
