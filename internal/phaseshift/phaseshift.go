// Package phaseshift reads tabulated atomic phase shifts and interpolates
// them on the energy grid of a run.
package phaseshift

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/wildstyl3r/cleed/internal/constants"
)

var (
	ErrEnergyOutOfRange = errors.New("phaseshift: energy below tabulated range")
	ErrFormat           = errors.New("phaseshift: malformed input")
	ErrNoPhaseDir       = errors.New("phaseshift: CLEED_PHASE not defined")
)

const PhaseDirEnv = "CLEED_PHASE"

// Kind selects the form of the atomic t-matrix.
type Kind int

const (
	Diagonal Kind = iota
	NonDiagonal
)

func (k Kind) String() string {
	if k == NonDiagonal {
		return "non-diagonal"
	}
	return "diagonal"
}

// Vibration holds thermal displacements in bohr: DR2 = <dr^2> and the rms
// displacement along x, y, z.
type Vibration struct {
	DR2 float64
	U   [3]float64
}

func (v Vibration) equal(o Vibration) bool {
	for i := range v.U {
		if math.Abs(v.U[i]-o.U[i]) >= constants.GeometryTolerance {
			return false
		}
	}
	return true
}

type Set struct {
	File     string
	LMax     int
	Energies []float64   // [Hartree], increasing
	Shifts   [][]float64 // [energy][l]
	Vib      Vibration
	Kind     Kind
}

func (s *Set) EMin() float64 { return s.Energies[0] }
func (s *Set) EMax() float64 { return s.Energies[len(s.Energies)-1] }

var numberPattern = regexp.MustCompile(`[-+]?(?:\d+\.?\d*|\.\d+)(?:[eEdD][-+]?\d+)?`)

func parseNumbers(line string) ([]float64, error) {
	tokens := numberPattern.FindAllString(line, -1)
	values := make([]float64, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.NewReplacer("d", "e", "D", "e").Replace(tok)
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrFormat, tok, err)
		}
		values = append(values, v)
	}
	return values, nil
}

// Read parses a phase shift table. The header holds the number of energies,
// lmax and an optional energy unit (eV, Ry, default Hartree). Each energy
// line is followed by lmax+1 phase shifts which may continue on further
// lines and may be written without separating blanks before minus signs.
func Read(r io.Reader, name string) (*Set, error) {
	scanner := bufio.NewScanner(r)
	nextLine := func() (string, bool) {
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			return line, true
		}
		return "", false
	}

	header, ok := nextLine()
	if !ok {
		return nil, fmt.Errorf("%s: %w: missing header", name, ErrFormat)
	}
	fields := strings.Fields(header)
	if len(fields) < 2 {
		return nil, fmt.Errorf("%s: %w: header %q", name, ErrFormat, header)
	}
	nEng, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w: energy count: %w", name, ErrFormat, err)
	}
	lMax, err := strconv.Atoi(fields[1])
	if err != nil || lMax < 0 {
		return nil, fmt.Errorf("%s: %w: lmax %q", name, ErrFormat, fields[1])
	}
	scale := 1.
	if len(fields) > 2 {
		switch strings.ToLower(fields[2])[:min(2, len(fields[2]))] {
		case "ev":
			scale = 1. / constants.Hartree
		case "ry":
			scale = constants.Rydberg
		}
	}

	s := &Set{File: name, LMax: lMax}
	for range nEng {
		line, ok := nextLine()
		if !ok {
			break
		}
		e, err := parseNumbers(line)
		if err != nil || len(e) == 0 {
			return nil, fmt.Errorf("%s: %w: energy line %q", name, ErrFormat, line)
		}
		var shifts []float64
		for len(shifts) < lMax+1 {
			line, ok = nextLine()
			if !ok {
				return nil, fmt.Errorf("%s: %w: truncated phase shifts at E=%g", name, ErrFormat, e[0])
			}
			values, err := parseNumbers(line)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			shifts = append(shifts, values...)
		}
		if n := len(s.Energies); n > 0 && e[0]*scale <= s.Energies[n-1] {
			return nil, fmt.Errorf("%s: %w: energies must increase (%g after %g)", name, ErrFormat, e[0], s.Energies[n-1]/scale)
		}
		s.Energies = append(s.Energies, e[0]*scale)
		s.Shifts = append(s.Shifts, shifts[:lMax+1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(s.Energies) == 0 {
		return nil, fmt.Errorf("%s: %w: no energies", name, ErrFormat)
	}
	return s, nil
}

// ResolvePath maps a bare atom tag onto $CLEED_PHASE/<tag>.phs. Paths with a
// directory component or a .phs extension are returned unchanged.
func ResolvePath(name string) (string, error) {
	if filepath.IsAbs(name) || strings.ContainsRune(name, os.PathSeparator) || filepath.Ext(name) == ".phs" {
		return name, nil
	}
	dir := os.Getenv(PhaseDirEnv)
	if dir == "" {
		return "", fmt.Errorf("%s: %w", name, ErrNoPhaseDir)
	}
	return filepath.Join(dir, name+".phs"), nil
}

func Load(path string) (*Set, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening phase shift file: %w", err)
	}
	defer file.Close()
	return Read(file, path)
}

// Interpolate returns the phase shifts at energy by linear interpolation.
// Above the table the last two points are extrapolated and extrapolated is
// set; below it ErrEnergyOutOfRange is returned.
func (s *Set) Interpolate(energy float64) (shifts []float64, extrapolated bool, err error) {
	n := len(s.Energies)
	if energy < s.Energies[0] {
		return nil, false, fmt.Errorf("%w: E = %.2f eV < %.2f eV (%s)", ErrEnergyOutOfRange,
			energy*constants.Hartree, s.Energies[0]*constants.Hartree, s.File)
	}
	shifts = make([]float64, s.LMax+1)
	if n == 1 {
		copy(shifts, s.Shifts[0])
		return shifts, energy > s.Energies[0], nil
	}

	i := 1
	for i < n-1 && s.Energies[i] < energy {
		i++
	}
	extrapolated = energy > s.Energies[n-1]
	if energy == s.Energies[i] {
		copy(shifts, s.Shifts[i])
		return shifts, false, nil
	}
	if energy == s.Energies[i-1] {
		copy(shifts, s.Shifts[i-1])
		return shifts, false, nil
	}
	f := (s.Energies[i] - energy) / (s.Energies[i] - s.Energies[i-1])
	for l := range shifts {
		shifts[l] = s.Shifts[i][l] - (s.Shifts[i][l]-s.Shifts[i-1][l])*f
	}
	return shifts, extrapolated, nil
}
