package config

import (
	"github.com/wildstyl3r/cleed/internal/constants"
	"github.com/wildstyl3r/cleed/internal/utils"
)

var unitToAtomic = map[string]float64{
	"H":    1,                      // [Hartree]
	"Ry":   constants.Rydberg,      // [Hartree]
	"eV":   1. / constants.Hartree, // [Hartree]
	"bohr": 1,                      // [bohr]
	"A":    1. / constants.Bohr,    // [bohr]
	"nm":   10. / constants.Bohr,   // [bohr]
}

type UnitClass int

const (
	Length UnitClass = iota
	Energy
)

var unitsInClass = map[UnitClass][]string{
	Length: {"A", "nm", "bohr"},
	Energy: {"eV", "Ry", "H"},
}

var classesOfUnits = map[string]UnitClass{
	"H":    Energy,
	"Ry":   Energy,
	"eV":   Energy,
	"bohr": Length,
	"A":    Length,
	"nm":   Length,
}

type UnitElement = struct {
	Class UnitClass
	Power int
}

func checkUnits(units []string) (extended, conflicts []string) {
	classes := map[UnitClass]struct{}{}
	for _, unit := range units {
		class, known := classesOfUnits[unit]
		if _, some := classes[class]; some || !known {
			conflicts = append(conflicts, unit)
		} else {
			classes[class] = struct{}{}
		}
	}
	extended = units
	for _, unit := range defaultUnits {
		if _, some := classes[classesOfUnits[unit]]; !some {
			extended = append(extended, unit)
		}
	}
	return
}

// Atomic converts v given in units into Hartree atomic units (direct) or
// back (!direct).
func Atomic(v float64, classes []UnitElement, units []string, direct bool) float64 {
	for _, uc := range classes {
		unit := utils.Intersect(unitsInClass[uc.Class], units)
		if unit == nil {
			continue
		}
		f := unitToAtomic[*unit]
		for range utils.IntAbs(uc.Power) {
			if (uc.Power > 0) == direct {
				v *= f
			} else {
				v /= f
			}
		}
	}
	return v
}
