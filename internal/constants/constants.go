package constants

const Hartree float64 = 27.2113962       // [eV]
const Bohr float64 = 0.529177249         // [A]
const Rydberg float64 = 0.5              // [Hartree]
const KBoltzmann float64 = 3.16682941e-6 // [Hartree / K]

const EnergyTolerance = 1e-3   // [Hartree]
const GeometryTolerance = 1e-3 // [bohr]
const IntensityTolerance = 1e-10
const KTolerance = 1e-4

const MinLayerDistance = 1.5    // [bohr]
const DefaultTemperature = 300. // [K]
const ViStart = 100. / Hartree  // Vi grows as (E/ViStart)^ViExp above this energy

// <r^2> from Debye temperature, [bohr^2 K amu]
const DebyeWallerPrefactor = 1559.04170632481439

const LatticeRadiusWarning = 1000. // [bohr]
const DoublingTolerance = 1e-3
const MaxDoublings = 24 // 2^24 units
const CumulantMaxIterations = 1000
