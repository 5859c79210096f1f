package output

import (
	"io"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/plot"
	_ "gonum.org/v1/plot/font/liberation"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/wildstyl3r/cleed/internal/constants"
	"github.com/wildstyl3r/cleed/internal/utils"
)

const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 5 * vg.Inch

	sheetIV    = "IV"
	sheetBeams = "Beams"
)

func (ex *Extractor) WriteCSV(w io.Writer) error {
	return utils.WriteAsCSV(w, ex.Rows(), append([]string{"E (eV)"}, ex.Labels()...))
}

// WritePlot draws all IV curves into one PNG.
func (ex *Extractor) WritePlot(w io.Writer) error {
	p := plot.New()
	p.Title.Text = "IV curves"
	p.X.Label.Text = "E (eV)"
	p.Y.Label.Text = "I (arb. units)"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for j, label := range ex.Labels() {
		pts := make(plotter.XYs, len(ex.results))
		for i, r := range ex.results {
			pts[i].X = r.Energy * constants.Hartree
			pts[i].Y = r.Intensities[j]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(j)
		line.Dashes = plotutil.Dashes(j / len(plotutil.DefaultColors))
		p.Add(line)
		p.Legend.Add(label, line)
	}

	c := vgimg.New(plotWidth, plotHeight)
	p.Draw(draw.New(c))
	_, err := vgimg.PngCanvas{Canvas: c}.WriteTo(w)
	return err
}

// WriteXLSX writes a workbook with the IV curves on one sheet and the
// beam list on another.
func (ex *Extractor) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetIV); err != nil {
		return err
	}

	header := []any{"E (eV)"}
	for _, label := range ex.Labels() {
		header = append(header, label)
	}
	if err := f.SetSheetRow(sheetIV, "A1", &header); err != nil {
		return err
	}
	for i, r := range ex.results {
		row := []any{r.Energy * constants.Hartree}
		for _, v := range r.Intensities {
			row = append(row, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetIV, cell, &row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(sheetBeams); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetBeams, "A1", &[]any{"beam", "ind1", "ind2", "set"}); err != nil {
		return err
	}
	for i, b := range ex.model.Out {
		beam := &ex.model.Beams.Beams[b]
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetBeams, cell, &[]any{i, beam.Ind1, beam.Ind2, beam.Set}); err != nil {
			return err
		}
	}
	return f.Write(w)
}
