package main

import (
	"flag"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/wildstyl3r/cleed/internal/config"
	"github.com/wildstyl3r/cleed/internal/engine"
	"github.com/wildstyl3r/cleed/internal/output"
	"github.com/wildstyl3r/cleed/internal/parfile"
	"github.com/wildstyl3r/cleed/internal/utils"
)

func main() {
	dataFlags := output.NewDataFlags(flag.CommandLine)
	var configFileNamePointer = flag.String("input", "cleed", "run configuration, .toml or .json5")
	var threads = flag.Int("threads", runtime.NumCPU(), "number of energies computed in parallel")
	var verbose = flag.Bool("verbose", false, "print progress and warnings")
	var outputDir = flag.String("output", "", "output directory, overrides OutputDir of the configuration")
	var parIn = flag.String("par", "", "run a parameter file saved with -save-par instead of a configuration")
	var parOut = flag.Bool("save-par", false, "save the parameter file of every model before running it")
	flag.Parse()

	startTime := time.Now()
	fmt.Printf("Current time: %s\n", startTime.UTC().Format(time.UnixDate))

	var runtimeParameters config.ModelParameters
	runtimeParameters.SetVerbosity(*verbose)
	runtimeParameters.SetThreads(*threads)

	if *parIn != "" {
		dataFlags.SetOutputPath(*outputDir)
		if err := runParFile(*parIn, runtimeParameters, dataFlags); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("Elapsed time: %v\n", time.Since(startTime))
		return
	}

	cfg, meta, err := config.LoadConfig(*configFileNamePointer)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	outputPath := cfg.OutputDir
	if *outputDir != "" {
		outputPath = *outputDir
	}
	if outputPath != "" && outputPath != "." {
		if err := os.MkdirAll(outputPath, 0750); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	dataFlags.SetOutputPath(outputPath)

	exitCode := 0
	for _, modelName := range slices.Sorted(maps.Keys(cfg.Models)) {
		fmt.Println("\n" + modelName)
		parameters := cfg.Models[modelName]
		parameters.SetVerbosity(*verbose)
		parameters.SetThreads(*threads)
		if err := parameters.CheckAndUnify(modelName, &cfg, &meta); err != nil {
			fmt.Fprintln(os.Stderr, err)
			exitCode = 1
			continue
		}
		m, err := engine.NewModel(parameters)
		if err == nil && *parOut {
			err = saveParFile(filepath.Join(dataFlags.GetOutputPath(), modelName+".par"), m)
		}
		if err == nil {
			err = run(modelName, m, dataFlags)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", modelName, err)
			exitCode = 1
		}
	}
	fmt.Printf("Elapsed time: %v\n", time.Since(startTime))
	os.Exit(exitCode)
}

func run(modelName string, m *engine.Model, dataFlags output.DataFlags) error {
	results, err := m.Run()
	if err != nil {
		return err
	}
	return output.NewExtractor(m, results).Save(modelName, dataFlags)
}

func saveParFile(path string, m *engine.Model) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := parfile.Write(file, m); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func runParFile(path string, parameters config.ModelParameters, dataFlags output.DataFlags) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	m, err := parfile.Read(file, parameters)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return run(utils.GetFilename(path), m, dataFlags)
}
