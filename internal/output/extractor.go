package output

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/wildstyl3r/cleed/internal/constants"
	"github.com/wildstyl3r/cleed/internal/engine"
	"github.com/wildstyl3r/cleed/internal/utils"
)

type Extractor struct {
	model   *engine.Model
	results []engine.Result
}

// NewExtractor collects the results of a finished run. results must be
// ordered by energy, as returned by Model.Run.
func NewExtractor(model *engine.Model, results []engine.Result) *Extractor {
	ex := Extractor{model: model, results: results}
	if model.Parameters.Verbose() && len(results) > 0 && len(model.Out) > 0 {
		means := make([]float64, len(model.Out))
		column := make([]float64, len(results))
		for j := range means {
			for i, r := range results {
				column[i] = r.Intensities[j]
			}
			means[j] = utils.Average(column)
		}
		strongest := utils.Argmax(means)
		fmt.Printf("%d energies, %d beams; strongest %s, mean intensity %.4e\n",
			len(results), len(model.Out), ex.Labels()[strongest], means[strongest])
	}
	return &ex
}

// Labels names the output beams by their indices.
func (ex *Extractor) Labels() []string {
	labels := make([]string, len(ex.model.Out))
	for i, b := range ex.model.Out {
		beam := &ex.model.Beams.Beams[b]
		labels[i] = fmt.Sprintf("(%.2f,%.2f)", beam.Ind1, beam.Ind2)
	}
	return labels
}

// Rows returns one row per energy: the energy in eV, then the intensities.
func (ex *Extractor) Rows() utils.CSV {
	rows := make(utils.CSV, len(ex.results))
	for i, r := range ex.results {
		row := []string{strconv.FormatFloat(r.Energy*constants.Hartree, 'f', 2, 64)}
		for _, v := range r.Intensities {
			row = append(row, strconv.FormatFloat(v, 'e', 6, 64))
		}
		rows[i] = row
	}
	return rows
}

// Save writes every output selected in df for model modelName.
func (ex *Extractor) Save(modelName string, df DataFlags) error {
	for _, name := range slices.Sorted(maps.Keys(df.items)) {
		output := df.items[name]
		if !*output.saveFlag && !*df.all {
			continue
		}
		file, err := utils.OpenFile(ex.model.Parameters.MakeDir, df.outputPath, output.fileSuffix, modelName, output.ext)
		if err != nil {
			return fmt.Errorf("unable to save %s: %w", name, err)
		}
		err = output.write(ex, file)
		if cerr := file.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("unable to save %s: %w", name, err)
		}
		if ex.model.Parameters.Verbose() {
			println(name + " saved")
		}
	}
	return nil
}
