package export

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/flood-cli/internal/evaluate"
	"github.com/sells-group/flood-cli/internal/model"
)

// Summary is the YAML digest of a sweep.
type Summary struct {
	RunID        string           `yaml:"run_id,omitempty"`
	Method       string           `yaml:"method"`
	Selection    string           `yaml:"selection"`
	Combinations int              `yaml:"combinations"`
	AUC          float64          `yaml:"auc"`
	Best         *BestSummary     `yaml:"best,omitempty"`
	Curve        []model.ROCPoint `yaml:"curve"`
	Skipped      []evaluate.Skip  `yaml:"skipped,omitempty"`
}

// BestSummary is the Youden-optimal combination.
type BestSummary struct {
	Key    string       `yaml:"key"`
	Index  int          `yaml:"index"`
	Youden float64      `yaml:"youden"`
	TPR    float64      `yaml:"tpr"`
	FPR    float64      `yaml:"fpr"`
	Params model.Params `yaml:"params"`
}

// Summarize builds the YAML digest of rep.
func Summarize(runID string, rep *evaluate.Report) Summary {
	s := Summary{
		RunID:        runID,
		Method:       rep.Method,
		Selection:    rep.Selection.ExportKey(),
		Combinations: len(rep.Results),
		AUC:          rep.AUC,
		Curve:        rep.Curve(),
		Skipped:      rep.Skipped,
	}
	if b := rep.Best; b != nil {
		s.Best = &BestSummary{
			Key:    b.Params.SweepKey(rep.Method),
			Index:  b.Index,
			Youden: b.Youden(),
			TPR:    b.TPR,
			FPR:    b.FPR,
			Params: b.Params,
		}
	}
	return s
}

// WriteYAML writes the sweep digest.
func WriteYAML(w io.Writer, s Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return eris.Wrap(err, "export: encode yaml")
	}
	return eris.Wrap(enc.Close(), "export: close yaml encoder")
}

var rocHeader = []string{
	"index", "key", "threshold", "perennial_threshold", "week_freq", "year_freq",
	"tp", "fp", "fn", "tn", "tpr", "fpr", "youden",
}

func rocRecord(method string, r model.CombinationResult) []string {
	return []string{
		strconv.Itoa(r.Index),
		r.Params.SweepKey(method),
		ftoa(r.Params.Threshold), ftoa(r.Params.PerennialThreshold), ftoa(r.Params.WeekFreq), ftoa(r.Params.YearFreq),
		strconv.FormatInt(r.Counts.TP, 10), strconv.FormatInt(r.Counts.FP, 10),
		strconv.FormatInt(r.Counts.FN, 10), strconv.FormatInt(r.Counts.TN, 10),
		ftoa(r.TPR), ftoa(r.FPR), ftoa(r.Youden()),
	}
}

// WriteROCCSV writes the ROC table in report order (ascending FPR).
func WriteROCCSV(w io.Writer, rep *evaluate.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rocHeader); err != nil {
		return eris.Wrap(err, "export: write roc header")
	}
	for _, r := range rep.Results {
		if err := cw.Write(rocRecord(rep.Method, r)); err != nil {
			return eris.Wrapf(err, "export: write roc row %d", r.Index)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush roc csv")
}

// WriteWorkbook saves an .xlsx with a combinations sheet, a summary sheet
// and, when present, a skipped sheet.
func WriteWorkbook(path string, runID string, rep *evaluate.Report) error {
	f := xlsx.NewFile()

	combos, err := f.AddSheet("combinations")
	if err != nil {
		return eris.Wrap(err, "export: add combinations sheet")
	}
	addRow(combos, rocHeader...)
	for _, r := range rep.Results {
		row := combos.AddRow()
		row.AddCell().SetInt(r.Index)
		row.AddCell().SetString(r.Params.SweepKey(rep.Method))
		for _, v := range []float64{r.Params.Threshold, r.Params.PerennialThreshold, r.Params.WeekFreq, r.Params.YearFreq} {
			row.AddCell().SetFloat(v)
		}
		for _, v := range []int64{r.Counts.TP, r.Counts.FP, r.Counts.FN, r.Counts.TN} {
			row.AddCell().SetInt64(v)
		}
		for _, v := range []float64{r.TPR, r.FPR, r.Youden()} {
			row.AddCell().SetFloat(v)
		}
	}

	summary, err := f.AddSheet("summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	addRow(summary, "run_id", runID)
	addRow(summary, "method", rep.Method)
	addRow(summary, "selection", rep.Selection.ExportKey())
	addRow(summary, "combinations", strconv.Itoa(len(rep.Results)))
	addRow(summary, "auc", ftoa(rep.AUC))
	if b := rep.Best; b != nil {
		addRow(summary, "best", b.Params.SweepKey(rep.Method))
		addRow(summary, "best_youden", ftoa(b.Youden()))
	}

	if len(rep.Skipped) > 0 {
		skipped, err := f.AddSheet("skipped")
		if err != nil {
			return eris.Wrap(err, "export: add skipped sheet")
		}
		addRow(skipped, "index", "key", "reason")
		for _, s := range rep.Skipped {
			addRow(skipped, strconv.Itoa(s.Index), s.Params.SweepKey(rep.Method), s.Reason)
		}
	}

	return eris.Wrapf(f.Save(path), "export: save workbook %s", path)
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// WriteReport writes {dir}/{stem}_roc.csv and, per formats, the workbook and
// YAML digest. It returns the written paths.
func WriteReport(dir, stem, runID string, rep *evaluate.Report, formats []string) ([]string, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	var written []string

	rocPath := path(dir, stem, "_roc.csv")
	if err := writeFile(rocPath, func(w io.Writer) error { return WriteROCCSV(w, rep) }); err != nil {
		return nil, err
	}
	written = append(written, rocPath)

	for _, f := range formats {
		switch f {
		case FormatXLSX:
			p := path(dir, stem, ".xlsx")
			if err := WriteWorkbook(p, runID, rep); err != nil {
				return written, err
			}
			written = append(written, p)
		case FormatYAML:
			p := path(dir, stem, ".yaml")
			if err := writeFile(p, func(w io.Writer) error { return WriteYAML(w, Summarize(runID, rep)) }); err != nil {
				return written, err
			}
			written = append(written, p)
		}
	}
	return written, nil
}

func writeFile(p string, fn func(io.Writer) error) error {
	f, err := os.Create(p)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", p)
	}
	if err := fn(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", p)
}
