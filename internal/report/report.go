// Package report writes an XLSX workbook summarizing a schematization run.
package report

import (
	"io"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/flo2d-schematizer/internal/model"
	"github.com/sells-group/flo2d-schematizer/internal/pipeline"
)

// Sheet names.
const (
	SheetSummary   = "Summary"
	SheetChannels  = "Channels"
	SheetDistances = "Distances"
	SheetLevees    = "Levees"
	SheetFPXS      = "Floodplain"
	SheetIssues    = "Issues"
)

// Units labels lengths and discharges in the summary sheet.
type Units struct {
	Length    string
	Discharge string
}

// Build lays out the workbook for a run outcome.
func Build(out *pipeline.Outcome, units Units) (*xlsx.File, error) {
	if out == nil || out.Report == nil {
		return nil, eris.New("report: no run outcome")
	}
	f := xlsx.NewFile()
	steps := []struct {
		name string
		fill func(*xlsx.Sheet)
	}{
		{SheetSummary, func(s *xlsx.Sheet) { summary(s, out, units) }},
		{SheetChannels, func(s *xlsx.Sheet) { channels(s, out) }},
		{SheetDistances, func(s *xlsx.Sheet) { distances(s, out) }},
		{SheetLevees, func(s *xlsx.Sheet) { levees(s, out) }},
		{SheetFPXS, func(s *xlsx.Sheet) { floodplain(s, out) }},
		{SheetIssues, func(s *xlsx.Sheet) { issues(s, out.Report) }},
	}
	for _, st := range steps {
		sheet, err := f.AddSheet(st.name)
		if err != nil {
			return nil, eris.Wrapf(err, "report: add sheet %s", st.name)
		}
		st.fill(sheet)
	}
	return f, nil
}

// Save builds the workbook and writes it to path.
func Save(path string, out *pipeline.Outcome, units Units) error {
	f, err := Build(out, units)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

// Write builds the workbook and streams it to w.
func Write(w io.Writer, out *pipeline.Outcome, units Units) error {
	f, err := Build(out, units)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write workbook")
	}
	return nil
}

// ReadSheet returns the rows of a named sheet as strings.
func ReadSheet(path, name string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "report: open workbook")
	}
	sheet, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Errorf("report: sheet %q not found", name)
	}
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

type rowWriter struct{ row *xlsx.Row }

func addRow(s *xlsx.Sheet) rowWriter { return rowWriter{s.AddRow()} }

func (w rowWriter) str(vs ...string) rowWriter {
	for _, v := range vs {
		w.row.AddCell().SetString(v)
	}
	return w
}

func (w rowWriter) int(vs ...int64) rowWriter {
	for _, v := range vs {
		w.row.AddCell().SetInt64(v)
	}
	return w
}

func (w rowWriter) float(vs ...float64) rowWriter {
	for _, v := range vs {
		w.row.AddCell().SetFloat(v)
	}
	return w
}

// opt writes an empty cell for nil.
func (w rowWriter) opt(v *float64) rowWriter {
	if v == nil {
		return w.str("")
	}
	return w.float(*v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func summary(s *xlsx.Sheet, out *pipeline.Outcome, units Units) {
	r := out.Report
	addRow(s).str("run_id", out.RunID)
	addRow(s).str("kind", r.Kind)
	addRow(s).str("ok", yesNo(r.OK))
	addRow(s).str("cancelled", yesNo(r.Cancelled))
	addRow(s).str("skipped").int(int64(r.Skipped))
	addRow(s).str("length_unit", units.Length)
	addRow(s).str("discharge_unit", units.Discharge)
	if !out.StartedAt.IsZero() {
		addRow(s).str("started_at", out.StartedAt.Format("2006-01-02 15:04:05"))
	}
	names := make([]string, 0, len(r.Counts))
	for name := range r.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		addRow(s).str(name).int(int64(r.Counts[name]))
	}
}

func channels(s *xlsx.Sheet, out *pipeline.Outcome) {
	addRow(s).str("segment_id", "name", "lb_fid", "rb_fid", "rank", "xs", "surveyed", "interpolated", "spine_cells", "length")
	for _, c := range out.Channels {
		addRow(s).int(c.SegmentID).str(c.Name).
			int(c.LeftBankFID, c.RightBankFID, int64(c.Rank), int64(len(c.XS)), int64(c.Surveyed()),
				int64(len(c.XS)-c.Surveyed()), int64(len(c.Spine))).
			float(c.SpinePoints.Length())
	}
}

func distances(s *xlsx.Sheet, out *pipeline.Outcome) {
	addRow(s).str("xs_id", "segment_id", "up_id", "lo_id", "dist_lb", "dist_rb", "total_lb", "total_rb")
	for _, c := range out.Channels {
		for _, d := range c.Distances {
			addRow(s).int(d.XSID, d.SegmentID, d.UpID, d.LoID).float(d.DistLB).opt(d.DistRB).float(d.TotalLB).opt(d.TotalRB)
		}
	}
}

func levees(s *xlsx.Sheet, out *pipeline.Outcome) {
	addRow(s).str("cell_id", "direction", "crest", "line_fid", "fail_elev")
	if out.Levees == nil {
		return
	}
	type key struct {
		cell int64
		dir  model.Direction
	}
	fails := map[key]float64{}
	for _, f := range out.Levees.Failures {
		fails[key{f.CellID, f.Direction}] = f.FailElev
	}
	for _, r := range out.Levees.Records {
		w := addRow(s).int(r.CellID).str(r.Direction.String()).float(r.Crest).int(r.LineFID)
		if fe, ok := fails[key{r.CellID, r.Direction}]; ok {
			w.float(fe)
		}
	}
}

func floodplain(s *xlsx.Sheet, out *pipeline.Outcome) {
	addRow(s).str("fid", "name", "azimuth", "iflo", "cells")
	if out.Floodplain == nil {
		return
	}
	for _, sec := range out.Floodplain.Sections {
		addRow(s).int(sec.FID).str(sec.Name).float(sec.Azimuth).int(int64(sec.Iflo), int64(len(sec.Cells)))
	}
}

func issues(s *xlsx.Sheet, r *model.Report) {
	addRow(s).str("severity", "kind", "feature_id", "message")
	for _, fe := range r.Errors {
		addRow(s).str("error", string(fe.Kind)).int(fe.FeatureID).str(fe.Message)
	}
	for _, fe := range r.Warnings {
		addRow(s).str("warning", string(fe.Kind)).int(fe.FeatureID).str(fe.Message)
	}
}
