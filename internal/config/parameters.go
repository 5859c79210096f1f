package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	json5 "github.com/KevinWang15/go-json5"
	"github.com/joho/godotenv"

	"github.com/wildstyl3r/cleed/internal/constants"
	"github.com/wildstyl3r/cleed/internal/utils"
)

var ErrConfig = errors.New("config: invalid configuration")

type Config struct {
	OutputDir string
	Models    map[string]ModelParameters
	ModelParameters
	isDefinedMap map[string]struct{}

	InputUnits []string
}

func (c *Config) isDefined(path []string, meta *toml.MetaData) bool {
	if _, sureDefined := c.isDefinedMap[strings.Join(path, "#")]; sureDefined {
		return true
	}
	return meta.IsDefined(path...)
}

// markDefined records every key of a decoded JSON5 document, which has no
// toml.MetaData of its own.
func (c *Config) markDefined(path []string, table map[string]any) {
	for key, value := range table {
		p := append(slices.Clone(path), key)
		c.isDefinedMap[strings.Join(p, "#")] = struct{}{}
		if sub, ok := value.(map[string]any); ok {
			c.markDefined(p, sub)
		}
	}
}

// LoadConfig reads the run configuration from a .toml or .json5 file. A
// .env file next to it is loaded first so that it can provide CLEED_PHASE.
// Without a Models table the global parameters form one model named after
// the file.
func LoadConfig(configFileName string) (Config, toml.MetaData, error) {
	var config Config
	var meta toml.MetaData
	config.isDefinedMap = map[string]struct{}{}

	ext := strings.ToLower(filepath.Ext(configFileName))
	if ext == "" {
		configFileName += ".toml"
		ext = ".toml"
	}
	if err := godotenv.Load(filepath.Join(filepath.Dir(configFileName), ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, meta, fmt.Errorf("%s: %w", configFileName, err)
	}

	switch ext {
	case ".json5", ".json":
		data, err := os.ReadFile(configFileName)
		if err != nil {
			return config, meta, err
		}
		var table map[string]any
		if err := json5.Unmarshal(data, &table); err != nil {
			return config, meta, fmt.Errorf("%s: %w", configFileName, err)
		}
		// json5 does not fill embedded structs: go through plain JSON
		plain, err := json.Marshal(table)
		if err != nil {
			return config, meta, fmt.Errorf("%s: %w", configFileName, err)
		}
		if err := json.Unmarshal(plain, &config); err != nil {
			return config, meta, fmt.Errorf("%s: %w", configFileName, err)
		}
		config.markDefined(nil, table)
	default:
		var err error
		if meta, err = toml.DecodeFile(configFileName, &config); err != nil {
			return config, meta, err
		}
	}

	var unitsConflict []string
	config.InputUnits, unitsConflict = checkUnits(config.InputUnits)
	if len(unitsConflict) > 0 {
		return config, meta, fmt.Errorf("%w: input unit conflict %v", ErrConfig, unitsConflict)
	}
	if len(config.Models) == 0 {
		config.Models = map[string]ModelParameters{utils.GetFilename(configFileName): {}}
	}
	return config, meta, nil
}

// AtomSpec is one atom of the input geometry. Dr holds the vibration
// parameters selected by Vibration:
//
//	dr1  <dr^2>^(1/2)                   [length]
//	dr3  rms displacements along x y z [length]
//	nd3  as dr3, non-diagonal t-matrix [length]
//	dmt  Debye temperature [K], mass [amu]
type AtomSpec struct {
	Phase     string
	Pos       []float64 // [length]
	Vibration string
	Dr        []float64
}

type ModelParameters struct {
	A1, A2, A3 []float64 // bulk unit cell [length]; A3 points into the bulk
	Super      [][]float64
	Bulk       []AtomSpec
	Over       []AtomSpec
	Rotation   int
	Mirrors    []float64 // [deg]

	Vr          float64 // [energy]
	ViPre       float64 // [energy]
	ViExp       float64
	Temperature float64 // [K]

	EnergyInitial float64 // [energy]
	EnergyFinal   float64 // [energy]
	EnergyStep    float64 // [energy]
	EnergyCount   int

	Theta, Phi    float64 // [deg]
	LMax          int
	Epsilon       float64
	PotentialStep bool
	MakeDir       bool // one directory per output kind

	_verbose bool
	_threads int
}

func (p *ModelParameters) Verbose() bool {
	return p._verbose
}

func (p *ModelParameters) SetVerbosity(verbose bool) {
	p._verbose = verbose
}

func (p *ModelParameters) Threads() int {
	return max(1, p._threads)
}

func (p *ModelParameters) SetThreads(threads int) {
	p._threads = threads
}

// Symmetric reports whether a point group was requested.
func (p *ModelParameters) Symmetric() bool {
	return p.Rotation > 1 || len(p.Mirrors) > 0
}

var defaultValues = map[string]any{ // in atomic units
	"ViExp":         0.,
	"Temperature":   constants.DefaultTemperature,
	"EnergyStep":    4. / constants.Hartree,
	"Theta":         0.,
	"Phi":           0.,
	"LMax":          8,
	"Epsilon":       1e-3,
	"PotentialStep": false,
	"MakeDir":       false,
}

var defaultUnits = []string{"eV", "A"}

var requiredFields = []string{"A1", "A2", "A3", "Bulk", "Vr", "ViPre", "EnergyInitial", "EnergyFinal"}

var fieldsXor = map[string][]string{
	"EnergyStep":  {"EnergyCount"},
	"EnergyCount": {"EnergyStep"},
}

var fieldsAnd = map[string][]string{
	"EnergyCount": {"EnergyInitial", "EnergyFinal"},
	"ViExp":       {"ViPre"},
}

var fieldsDerivable = map[string][]string{
	"EnergyCount": {"EnergyStep"},
}

var valueUnits = map[string][]UnitElement{
	"A1":            {{Class: Length, Power: 1}},
	"A2":            {{Class: Length, Power: 1}},
	"A3":            {{Class: Length, Power: 1}},
	"Bulk":          {{Class: Length, Power: 1}},
	"Over":          {{Class: Length, Power: 1}},
	"Vr":            {{Class: Energy, Power: 1}},
	"ViPre":         {{Class: Energy, Power: 1}},
	"EnergyInitial": {{Class: Energy, Power: 1}},
	"EnergyFinal":   {{Class: Energy, Power: 1}},
	"EnergyStep":    {{Class: Energy, Power: 1}},
}

var calculableFields = map[string]func(
	*ModelParameters,
	[]string,
) []string{
	"EnergyCount": func(mp *ModelParameters, definedFields []string) []string {
		if mp.EnergyCount < 2 {
			return nil
		}
		mp.EnergyStep = (mp.EnergyFinal - mp.EnergyInitial) / float64(mp.EnergyCount-1)
		return []string{"EnergyStep"}
	},
}

// detach copies every slice so that conversions do not reach parameters
// shared with the global section or other models.
func (p *ModelParameters) detach() {
	p.A1, p.A2, p.A3 = slices.Clone(p.A1), slices.Clone(p.A2), slices.Clone(p.A3)
	p.Mirrors = slices.Clone(p.Mirrors)
	super := make([][]float64, len(p.Super))
	for i := range p.Super {
		super[i] = slices.Clone(p.Super[i])
	}
	p.Super = super
	for _, atoms := range []*[]AtomSpec{&p.Bulk, &p.Over} {
		out := make([]AtomSpec, len(*atoms))
		for i, a := range *atoms {
			a.Pos, a.Dr = slices.Clone(a.Pos), slices.Clone(a.Dr)
			out[i] = a
		}
		*atoms = out
	}
}

func (p *ModelParameters) toAtomic(parameterNames, units []string) {
	modelConfigReflect := reflect.ValueOf(p).Elem()
	for _, name := range parameterNames {
		field := modelConfigReflect.FieldByName(name)
		if !field.IsValid() {
			continue
		}
		switch {
		case field.CanFloat():
			field.SetFloat(Atomic(field.Float(), valueUnits[name], units, true))
		case field.Type() == reflect.TypeOf([]float64(nil)):
			for i := range field.Len() {
				e := field.Index(i)
				e.SetFloat(Atomic(e.Float(), valueUnits[name], units, true))
			}
		case field.Type() == reflect.TypeOf([]AtomSpec(nil)):
			atoms := field.Interface().([]AtomSpec)
			for i := range atoms {
				for x := range atoms[i].Pos {
					atoms[i].Pos[x] = Atomic(atoms[i].Pos[x], valueUnits[name], units, true)
				}
				if atoms[i].Vibration != "dmt" {
					for x := range atoms[i].Dr {
						atoms[i].Dr[x] = Atomic(atoms[i].Dr[x], valueUnits[name], units, true)
					}
				}
			}
		}
	}
}

func (p *ModelParameters) checkFieldProblems(path []string, meta *toml.MetaData, globalConfig *Config) (ambiguities [][]string, missingDeps []string) {
	for field := range fieldsXor {
		if globalConfig.isDefined(append(slices.Clone(path), field), meta) {
			var foundAlternatives []string
			for _, alternative := range fieldsXor[field] {
				if globalConfig.isDefined(append(slices.Clone(path), alternative), meta) {
					foundAlternatives = append(foundAlternatives, alternative)
				}
			}
			if len(foundAlternatives) > 0 {
				ambiguities = append(ambiguities, append([]string{field}, foundAlternatives...))
			}
		}
	}

	for field := range fieldsAnd {
		if globalConfig.isDefined(append(slices.Clone(path), field), meta) {
			for _, requirement := range fieldsAnd[field] {
				if !globalConfig.isDefined(append(slices.Clone(path), requirement), meta) {
					missingDeps = append(missingDeps, requirement)
				}
			}
		}
	}
	return
}

/*
field value priority:
1. model
2. model-calculable
3. global
4. global-calculable
5. default
*/

// CheckAndUnify fills the parameters of model modelName from the model
// table, the global section and the defaults, converts them to atomic
// units and checks that the result is complete and consistent.
func (p *ModelParameters) CheckAndUnify(modelName string, config *Config, meta *toml.MetaData) error {
	globalAmbiguities, globalMissingDeps := config.checkFieldProblems(nil, meta, config)
	localAmbiguities, localMissingDeps := p.checkFieldProblems([]string{"Models", modelName}, meta, config)
	if len(globalAmbiguities) > 0 {
		return fmt.Errorf("%w: global ambiguities %v", ErrConfig, globalAmbiguities)
	}
	if len(localAmbiguities) > 0 {
		return fmt.Errorf("%w: model %s ambiguities %v", ErrConfig, modelName, localAmbiguities)
	}
	var missingIntersection []string
	for _, dep := range globalMissingDeps {
		if slices.Contains(localMissingDeps, dep) {
			missingIntersection = append(missingIntersection, dep)
		}
	}
	if len(missingIntersection) > 0 {
		return fmt.Errorf("%w: required dependent fields not found %v", ErrConfig, missingIntersection)
	}

	var discoveredParameters []string
	excludeFromLoadingDefaultOrOuter := map[string]struct{}{}
	modelConfigReflect := reflect.ValueOf(p).Elem()
	modelConfigType := modelConfigReflect.Type()
	for i := range modelConfigReflect.NumField() {
		fieldName := modelConfigType.Field(i).Name
		if config.isDefined([]string{"Models", modelName, fieldName}, meta) {
			discoveredParameters = append(discoveredParameters, fieldName)
			for _, x := range fieldsXor[fieldName] {
				excludeFromLoadingDefaultOrOuter[x] = struct{}{}
			}
			for _, x := range fieldsDerivable[fieldName] {
				excludeFromLoadingDefaultOrOuter[x] = struct{}{}
			}
		}
	}

	globalConfigReflect := reflect.ValueOf(&config.ModelParameters).Elem()
	for i := range globalConfigReflect.NumField() {
		fieldName := modelConfigType.Field(i).Name
		if !modelConfigType.Field(i).IsExported() {
			continue
		}
		if _, some := excludeFromLoadingDefaultOrOuter[fieldName]; !some &&
			!config.isDefined([]string{"Models", modelName, fieldName}, meta) &&
			config.isDefined([]string{fieldName}, meta) {
			modelConfigReflect.Field(i).Set(globalConfigReflect.Field(i))
			discoveredParameters = append(discoveredParameters, fieldName)
			excludeFromLoadingDefaultOrOuter[fieldName] = struct{}{}
			for _, x := range fieldsXor[fieldName] {
				excludeFromLoadingDefaultOrOuter[x] = struct{}{}
			}
		}
	}

	p.detach()
	p.toAtomic(discoveredParameters, config.InputUnits)

	for fieldName, value := range defaultValues {
		if _, x := excludeFromLoadingDefaultOrOuter[fieldName]; !x && !slices.Contains(discoveredParameters, fieldName) {
			modelConfigReflect.FieldByName(fieldName).Set(reflect.ValueOf(value))
			discoveredParameters = append(discoveredParameters, fieldName)
		}
	}

	var enabledParameters []string
	for _, name := range discoveredParameters {
		field := modelConfigReflect.FieldByName(name)
		if field.Kind() != reflect.Bool || field.Bool() {
			enabledParameters = append(enabledParameters, name)
		}
	}

	calculatedAnything := true
	for calculatedAnything {
		calculatedAnything = false
		for initialFieldName, calculate := range calculableFields {
			if slices.Contains(enabledParameters, initialFieldName) {
				if calculated := calculate(p, enabledParameters); len(calculated) != 0 {
					calculatedAnything = true
					enabledParameters = append(enabledParameters, calculated...)
					enabledParameters = slices.DeleteFunc(enabledParameters, func(elem string) bool {
						return elem == initialFieldName
					})
				}
			}
		}
	}
	for initialFieldName := range calculableFields {
		if slices.Contains(enabledParameters, initialFieldName) {
			return fmt.Errorf("%w: unable to derive %v from %s", ErrConfig, fieldsDerivable[initialFieldName], initialFieldName)
		}
	}

	var problems []string
	for _, name := range requiredFields {
		if !slices.Contains(enabledParameters, name) {
			problems = append(problems, "missing "+name)
		}
	}
	for _, name := range enabledParameters {
		for _, requirement := range fieldsAnd[name] {
			if !slices.Contains(enabledParameters, requirement) {
				problems = append(problems, fmt.Sprintf("%s requires %s", name, requirement))
			}
		}
		for _, conflict := range fieldsXor[name] {
			if slices.Contains(enabledParameters, conflict) {
				problems = append(problems, fmt.Sprintf("%s conflicts with %s", name, conflict))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: model %s: %s", ErrConfig, modelName, strings.Join(problems, "; "))
	}

	p.Theta *= deg
	p.Phi *= deg
	for i := range p.Mirrors {
		p.Mirrors[i] *= deg
	}
	return p.validate()
}

func (p *ModelParameters) validate() error {
	switch {
	case p.EnergyStep <= 0:
		return fmt.Errorf("%w: energy step %g must be positive", ErrConfig, p.EnergyStep)
	case p.EnergyFinal < p.EnergyInitial:
		return fmt.Errorf("%w: final energy below initial energy", ErrConfig)
	case p.EnergyInitial <= 0:
		return fmt.Errorf("%w: initial energy %g must be positive", ErrConfig, p.EnergyInitial)
	case p.LMax < 0:
		return fmt.Errorf("%w: negative lmax", ErrConfig)
	case p.Epsilon <= 0:
		return fmt.Errorf("%w: epsilon %g must be positive", ErrConfig, p.Epsilon)
	}
	return nil
}
