package output

import (
	"bufio"
	"fmt"
	"io"

	"github.com/wildstyl3r/cleed/internal/constants"
)

// WriteIV writes the IV curves in the text format read by the R-factor
// programs: a header with the energy grid and the beam indices, then one
// line per energy.
func (ex *Extractor) WriteIV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	p := &ex.model.Parameters
	fmt.Fprintf(bw, "#en %d %f %f %f\n", len(ex.model.Energies),
		p.EnergyInitial*constants.Hartree, p.EnergyFinal*constants.Hartree, p.EnergyStep*constants.Hartree)
	fmt.Fprintf(bw, "#bn %d\n", len(ex.model.Out))
	for i, b := range ex.model.Out {
		beam := &ex.model.Beams.Beams[b]
		fmt.Fprintf(bw, "#bi %d %f %f %d\n", i, beam.Ind1, beam.Ind2, beam.Set)
	}
	for _, r := range ex.results {
		fmt.Fprintf(bw, "%.2f ", r.Energy*constants.Hartree)
		for _, v := range r.Intensities {
			fmt.Fprintf(bw, "%.6e ", v)
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}
