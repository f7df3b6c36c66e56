package analysis

import (
	"encoding/base64"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/dqcheck-cli/internal/dataset"
)

var csvRows = []string{
	"Group;Concentration (g/L);Temp (°F);Score;LocaleNumber;Category;Note",
	"A;0,5;70;10,0;1.000,0;alpha;first",
	"A;0,6;71;11,0;1.100,0;alpha;second",
	"A;0,55;69;9,5;0.900,0;beta;third",
	"B;0,7;75;10,5;1.050,0;alpha;fourth",
	"B;0,65;74;9,8;0.980,0;beta;fifth",
	"B;0,68;73;10,2;1.020,0;alpha;sixth",
	"A;0,52;68;8,8;0.880,0;gamma;seventh",
	"B;0,75;76;9,7;0.970,0;beta;eighth",
	"A;3,0;95;50,0;5.000,0;alpha;ninth",
	"B;0,66;72;10,1;1.010,0;gamma;tenth",
}

const xlsxFixtureBase64 = `
UEsDBBQAAAAIAMEwN1vYAxPv/wAAALYCAAATABwAW0NvbnRlbnRfVHlwZXNdLnhtbFVUCQADyjjSaMo40mh1eAsAAQQAAAAABAAAAAC1ks1OwzAQhO95CsvX
Kt60B4RQkh74OQKH8gDG3iRW/CfbLeHtcVIEEqIIpHJaWTOz32jlejsZTQ4YonK2oWtWUYJWOKls39Cn3V15SbdtUe9ePUaSvTY2dEjJXwFEMaDhkTmPNiud
C4an/Aw9eC5G3iNsquoChLMJbSrTvIO2BSH1DXZ8rxO5nbJyRAfUkZLro3fGNZR7r5XgKetwsPILqHyHsJxcPHFQPq6ygcIpyCyeZnxGH/JFgpJIHnlI99xk
I0waXlwYn50b2c97vunquk4JlE7sTY6w6ANyGQfEZDRbJjNc2dWvKiz+CMtYn7nLx/6/V9n8d5Ualm/YFm9QSwMECgAAAAAAxDA3WwAAAAAAAAAAAAAAAAMA
HAB4bC9VVAkAA9A40mjyONJodXgLAAEEAAAAAAQAAAAAUEsDBBQAAAAIAMQwN1tM2kS6xQAAAEkBAAAPABwAeGwvd29ya2Jvb2sueG1sVVQJAAPQONJo0DjS
aHV4CwABBAAAAAAEAAAAAI1Qu27DMAzc/RUC90aOhyIwZGcJAnhvP0CxaVuIRRqk+vj8qjEMZOjQ7Y7k3ZF05++4mE8UDUwNHA8lGKSeh0BTA+9v15cTnNvC
fbHcb8x3k8dJG5hTWmtrtZ8xej3wipQ7I0v0KVOZrK6CftAZMcXFVmX5aqMPBJtDLf/x4HEMPV64/4hIaTMRXHzKy+ocVoW2MMY9QvQX7sSQj9hANxELgnnU
uiHfB0bqkIF0wxHsH5KLT/5JUD0Jqk3g7J7n7P6WtvgBUEsDBAoAAAAAANIwN1sAAAAAAAAAAAAAAAAOABwAeGwvd29ya3NoZWV0cy9VVAkAA+s40mjyONJo
dXgLAAEEAAAAAAQAAAAAUEsDBBQAAAAIANIwN1u3fFZsqwIAAIASAAAYABwAeGwvd29ya3NoZWV0cy9zaGVldDIueG1sVVQJAAPrONJo6zjSaHV4CwABBAAA
AAAEAAAAAJ3YT26bQBiH4X1OgVilkguD/wEVJkoMzibKJukBJngMqGYGDeMkvVXP0JN1nEhVQ/r7QCxx/BDsV9/gIbl6bY7Os9BdreTGDTzmOkIWal/LcuN+
f9x9jdyr9CJ5UfpHVwlhHPt+2W3cypj2m+93RSUa3nmqFdL+5aB0w4091KXftVrw/Rtqjv6csbXf8Fq66YXjJG8vZ9zw85E91urF0fb/u+/H9pXifHwduI7Z
uLU81lI8GO2mSd2liUlvtTq1iW/SxD+/4Bcf3Q1yWyULIY3mxn5e57L0777gs2zRWR5F0zqXv3/tCJwh/FAoLbDLkbtTBT+K+1PzJDTmO/jJuRGl0j8xvUX0
Xpn/XHDi22gf8837+ebgjNdEOmTYbEWkQipkRCKEAjYjWA6Zxxgpd0jyY1txogxyh1p3ZlSaRT/NYkIaZNhsTaRBKgyINAgFAZkGMi8YSIPkUBrkOlEouR/V
Ztlvs5zQBhk7NtTcILaOiTgIxdSI5vAKvXigDZJPwlBpEDNVrceVWfXLrMApb4gyyLBZSIRBKiS+4gyhgFw8c8g8tqLLIDk0Ncgd1EmbalSbdb/NekIbZOyK
Rk0NYuGSiINQPIuINvAKvTii2yA5MDWIHerDyDJhv0w4oQwytgzxdW0RCxdEGYTs2MyJNJB5bE6nQXJobJDr6teRbaJ+m2jCvQYZu8oQ39cWMSpohlBETg28
Qi8amBokS940VBrkOvFsNxzj4sT9OPGEwUHG3m6oJQ2xkPhplyEUU7e2HF6hF4d0HCQHljTERF1WI9ME7NPWlE2YHIgW1OfeQhZTvwagom/qOXaDGxxIh1Y2
CGU9dnqCz08P0I6Wmh+I7J2H2uZAFxJrYgaVvfcQ+6McO4/R29cdpENLHIRmYIVL/H+e9yT+34dJ6cUfUEsDBBQAAAAIAMcwN1sqMey0swAAAPgAAAAYABwA
eGwvd29ya3NoZWV0cy9zaGVldDEueG1sVVQJAAPWONJo1jjSaHV4CwABBAAAAAAEAAAAAE2P3WrDMAxG7/MURverkl6MUhyXwegLrHsA46iNqf+QxbLHr5OO
0cvzSfoO0qffGNQPcfU5jTDselCUXJ58uo3wfTm/HeBkOr1kvteZSFTbT3WEWaQcEaubKdq6y4VSm1wzRysN+Ya1MNlpO4oB933/jtH6BKZTSm/xpxW7UmPO
i+Lmhye3xK38MYCSEXwKPtGXMBjtq9FiSrCO5hwmYo1iNK4xur82bHWbBl88Gv+fMN0DUEsDBAoAAAAAAMYwN1sAAAAAAAAAAAAAAAAJABwAeGwvX3JlbHMv
VVQJAAPTONJo8jjSaHV4CwABBAAAAAAEAAAAAFBLAwQUAAAACADGMDdbCmPblLYAAACtAQAAGgAcAHhsL19yZWxzL3dvcmtib29rLnhtbC5yZWxzVVQJAAPT
ONJo0zjSaHV4CwABBAAAAAAEAAAAAL2QSwrCMBBA9z1FmL2dtgsRadqNCN1KPUBIpx/aJiGJv9sbBMWCgitXw/zePCYvr/PEzmTdoBWHNE6AkZK6GVTH4Vjv
Vxsoiyg/0CR8GHH9YBwLO8px6L03W0Qne5qFi7UhFTqttrPwIbUdGiFH0RFmSbJG+86AImJsgWVVw8FWTQqsvhn6Ba/bdpC00/I0k/IfruBF29H1RD5Ahe3I
c3iVHD5CGgcq4Fef7M8+2dMnx8XXi+gOUEsDBAoAAAAAAMMwN1sAAAAAAAAAAAAAAAAGABwAX3JlbHMvVVQJAAPNONJo8jjSaHV4CwABBAAAAAAEAAAAAFBL
AwQUAAAACADDMDdbDxvLDKoAAAAcAQAACwAcAF9yZWxzLy5yZWxzVVQJAAPNONJozTjSaHV4CwABBAAAAAAEAAAAAI3PsQ6CMBAG4J2naG6XgoMxxsJiTFgN
PkAtRyHQXtNWxbe3oxgHx8v9913+Y72YmT3Qh5GsgDIvgKFV1I1WC7i2580e6io7XnCWMUXCMLrA0o0NAoYY3YHzoAY0MuTk0KZNT97ImEavuZNqkhr5tih2
3H8aUGWMrVjWdAJ805XA2pfDf3jq+1HhidTdoI0/vnwlkiy9xihgmfmT/HQjmvKEAk8d+apklb0BUEsBAh4DFAAAAAgAwTA3W9gDE+//AAAAtgIAABMAGAAA
AAAAAQAAAKSBAAAAAFtDb250ZW50X1R5cGVzXS54bWxVVAUAA8o40mh1eAsAAQQAAAAABAAAAABQSwECHgMKAAAAAADEMDdbAAAAAAAAAAAAAAAAAwAYAAAA
AAAAABAA7UFMAQAAeGwvVVQFAAPQONJodXgLAAEEAAAAAAQAAAAAUEsBAh4DFAAAAAgAxDA3W0zaRLrFAAAASQEAAA8AGAAAAAAAAQAAAKSBiQEAAHhsL3dv
cmtib29rLnhtbFVUBQAD0DjSaHV4CwABBAAAAAAEAAAAAFBLAQIeAwoAAAAAANIwN1sAAAAAAAAAAAAAAAAOABgAAAAAAAAAEADtQZcCAAB4bC93b3Jrc2hl
ZXRzL1VUBQAD6zjSaHV4CwABBAAAAAAEAAAAAFBLAQIeAxQAAAAIANIwN1u3fFZsqwIAAIASAAAYABgAAAAAAAEAAACkgd8CAAB4bC93b3Jrc2hlZXRzL3No
ZWV0Mi54bWxVVAUAA+s40mh1eAsAAQQAAAAABAAAAABQSwECHgMUAAAACADHMDdbKjHstLMAAAD4AAAAGAAYAAAAAAABAAAApIHcBQAAeGwvd29ya3NoZWV0
cy9zaGVldDEueG1sVVQFAAPWONJodXgLAAEEAAAAAAQAAAAAUEsBAh4DCgAAAAAAxjA3WwAAAAAAAAAAAAAAAAkAGAAAAAAAAAAQAO1B4QYAAHhsL19yZWxz
L1VUBQAD0zjSaHV4CwABBAAAAAAEAAAAAFBLAQIeAxQAAAAIAMYwN1sKY9uUtgAAAK0BAAAaABgAAAAAAAEAAACkgSQHAAB4bC9fcmVscy93b3JrYm9vay54
bWwucmVsc1VUBQAD0zjSaHV4CwABBAAAAAAEAAAAAFBLAQIeAwoAAAAAAMMwN1sAAAAAAAAAAAAAAAAGABgAAAAAAAAAEADtQS4IAABfcmVscy9VVAUAA804
0mh1eAsAAQQAAAAABAAAAABQSwECHgMUAAAACADDMDdbDxvLDKoAAAAcAQAACwAYAAAAAAABAAAApIFuCAAAX3JlbHMvLnJlbHNVVAUAA8040mh1eAsAAQQA
AAAABAAAAABQSwUGAAAAAAoACgBTAwAAXQkAAAAA
`

func loaderOptions() dataset.Options {
	opt := dataset.DefaultOptions()
	opt.Delimiter = ';'
	opt.MaxRows = 9
	opt.DecimalSeparator = ','
	opt.ThousandsSeparator = '.'
	return opt
}

func TestProfileCSVAndMarkdown(t *testing.T) {
	tmp := t.TempDir()
	csvPath := filepath.Join(tmp, "metrics.csv")
	if err := os.WriteFile(csvPath, []byte(strings.Join(csvRows, "\n")), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	tab, err := dataset.LoadCSV(csvPath, loaderOptions())
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	opt := DefaultOptions()
	opt.SampleRows = 3
	rep := Profile(tab, opt)
	assertReport(t, rep, "metrics.csv")

	md := rep.Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]",
		"Source: metrics.csv",
		"Rows: ~10 (profiled 9)",
		"- Score: numeric/float",
		"outliers: 1 above |z|>3.5",
		"- Group: categorical/text",
		"top: A(5), B(4)",
		"[HEAD AND SAMPLE ROWS]",
		"| A | 0.5 | 70 | 10 | 1000 | alpha | first |",
		"[NOTES]",
		"loaded only 9/10 rows due to MaxRows",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestProfileXLSXSheetSelection(t *testing.T) {
	path := writeXLSXFixture(t)
	opt := loaderOptions()
	opt.Sheet = "Data"
	byName, err := dataset.LoadXLSX(path, opt)
	if err != nil {
		t.Fatalf("LoadXLSX name: %v", err)
	}
	popt := DefaultOptions()
	popt.SampleRows = 3
	assertReport(t, Profile(byName, popt), "analysis_dataset.xlsx")

	opt.Sheet = ""
	opt.SheetIndex = 2
	byIndex, err := dataset.LoadXLSX(path, opt)
	if err != nil {
		t.Fatalf("LoadXLSX index: %v", err)
	}
	assertReport(t, Profile(byIndex, popt), "analysis_dataset.xlsx")
}

func writeXLSXFixture(t *testing.T) string {
	t.Helper()
	raw := strings.ReplaceAll(strings.TrimSpace(xlsxFixtureBase64), "\n", "")
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("decode xlsx fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "analysis_dataset.xlsx")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write xlsx fixture: %v", err)
	}
	return path
}

func assertReport(t *testing.T, rep *Report, expectName string) {
	t.Helper()
	if rep.Name != expectName {
		t.Fatalf("report name = %q, want %q", rep.Name, expectName)
	}
	if rep.Rows != 9 || rep.SourceRows != 10 {
		t.Fatalf("rows = %d/%d, want 9/10", rep.Rows, rep.SourceRows)
	}
	if len(rep.Warnings) != 1 || rep.Warnings[0] != "loaded only 9/10 rows due to MaxRows" {
		t.Fatalf("warnings = %#v", rep.Warnings)
	}
	if len(rep.Samples) != 3 {
		t.Fatalf("samples = %d, want 3", len(rep.Samples))
	}
	expectFirst := []string{"A", "0.5", "70", "10", "1000", "alpha", "first"}
	if strings.Join(rep.Samples[0], ",") != strings.Join(expectFirst, ",") {
		t.Fatalf("first sample = %#v, want %#v", rep.Samples[0], expectFirst)
	}
	if len(rep.Cols) != 7 {
		t.Fatalf("cols = %d, want 7", len(rep.Cols))
	}
	byName := map[string]ColumnSummary{}
	for _, c := range rep.Cols {
		byName[c.Name] = c
	}
	score := byName["Score"]
	if score.Kind != "numeric" || score.DType != dataset.KindFloat {
		t.Fatalf("score kind = %s/%s", score.Kind, score.DType)
	}
	if score.OutliersCount != 1 || score.OutliersMaxAbsZ < 50 {
		t.Fatalf("score outliers = %d (max z %.2f)", score.OutliersCount, score.OutliersMaxAbsZ)
	}
	if math.Abs(score.Min-8.8) > 1e-9 || math.Abs(score.Max-50) > 1e-9 {
		t.Fatalf("score min/max = %v/%v", score.Min, score.Max)
	}
	temp := byName["Temp (°F)"]
	if temp.DType != dataset.KindInteger || temp.OutliersCount != 1 {
		t.Fatalf("temp = %s, outliers %d", temp.DType, temp.OutliersCount)
	}
	locale := byName["LocaleNumber"]
	if math.Abs(locale.Max-5000) > 1e-9 || math.Abs(locale.Min-880) > 1e-9 {
		t.Fatalf("locale min/max = %v/%v", locale.Min, locale.Max)
	}
	group := byName["Group"]
	if group.Kind != "categorical" || group.Distinct != 2 || len(group.TopValues) != 2 || group.TopValues[0].Value != "A" {
		t.Fatalf("group summary = %#v", group)
	}
}

func TestOutlierMask(t *testing.T) {
	tab, err := dataset.ReadCSV(strings.NewReader(strings.Join(csvRows, "\n")), "m", ';', loaderOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	mask := OutlierMask(tab, 3.5)
	if len(mask) != 9 {
		t.Fatalf("mask len = %d", len(mask))
	}
	for i, m := range mask {
		if m != (i == 8) {
			t.Fatalf("mask[%d] = %v", i, m)
		}
	}
	if CountTrue(mask) != 1 {
		t.Fatalf("CountTrue = %d", CountTrue(mask))
	}
}

func TestOutlierMaskNeedsEightValues(t *testing.T) {
	tab := dataset.FromRecords("small", []string{"x"}, []map[string]any{
		{"x": 1}, {"x": 1}, {"x": 2}, {"x": 1}, {"x": 1000},
	})
	if n := CountTrue(OutlierMask(tab, 3.5)); n != 0 {
		t.Fatalf("flagged %d rows in a 5-value column", n)
	}
}

func TestProfileNullAndDistinctPercentages(t *testing.T) {
	tab := dataset.FromRecords("t", []string{"a", "b", "c"}, []map[string]any{
		{"a": "x", "b": 1},
		{"a": "y", "b": 2},
		{"a": nil, "b": 3},
		{"a": "z", "b": 4},
	})
	rep := Profile(tab, DefaultOptions())
	a, b, c := rep.Cols[0], rep.Cols[1], rep.Cols[2]
	if a.NullCount != 1 || a.NullPct != 25 || a.Distinct != 3 || a.DistinctPct != 75 {
		t.Fatalf("a = %#v", a)
	}
	if b.NullPct != 0 || b.DistinctPct != 100 || b.Kind != "numeric" {
		t.Fatalf("b = %#v", b)
	}
	if c.DType != dataset.KindEmpty || c.NullPct != 100 || c.Kind != "unknown" {
		t.Fatalf("c = %#v", c)
	}

	// completeness 7/12, uniqueness 7/12, validity 1/2 (c is empty), consistency 1.
	if got := Score(rep); math.Abs(got-65) > 1e-9 {
		t.Fatalf("score = %v, want 65", got)
	}
	rep.Cols = rep.Cols[:2]
	if got := Score(rep); math.Abs(got-92.5) > 1e-9 {
		t.Fatalf("score = %v, want 92.5", got)
	}
}

func TestScoreWithoutColumns(t *testing.T) {
	if got := Score(&Report{}); got != 0 {
		t.Fatalf("score = %v", got)
	}
	if got := Score(nil); got != 0 {
		t.Fatalf("nil score = %v", got)
	}
}

func TestProfileDatetimeAndTextKinds(t *testing.T) {
	long := strings.Repeat("lorem ipsum ", 10)
	tab := dataset.FromRecords("t", []string{"when", "body"}, []map[string]any{
		{"when": "2024-01-02", "body": long + "a"},
		{"when": "2024-01-03", "body": long + "b"},
	})
	rep := Profile(tab, DefaultOptions())
	if rep.Cols[0].Kind != "datetime" {
		t.Fatalf("when kind = %s", rep.Cols[0].Kind)
	}
	if rep.Cols[1].Kind != "text" || len(rep.Cols[1].ExampleTexts) != 2 {
		t.Fatalf("body = %#v", rep.Cols[1])
	}
	if md := rep.Markdown(); !strings.Contains(md, "...") {
		t.Fatalf("long text not truncated:\n%s", md)
	}
}
