// Package output writes the IV curves of a finished run: the text format
// read by the R-factor programs and optional CSV, PNG and XLSX exports.
package output

import (
	"flag"
	"io"
)

type DataItem struct {
	saveFlag   *bool
	fileSuffix string
	ext        string
	write      func(*Extractor, io.Writer) error
}

type DataFlags struct {
	all        *bool
	items      map[string]DataItem
	outputPath string
}

func NewDataFlags(fs *flag.FlagSet) DataFlags {
	return DataFlags{
		all: fs.Bool("all", false, "save every available output"),
		items: map[string]DataItem{
			"IV curves": {
				saveFlag:   fs.Bool("iv", true, "save IV curves"),
				fileSuffix: "iv",
				ext:        ".res",
				write:      (*Extractor).WriteIV,
			},
			"CSV": {
				saveFlag:   fs.Bool("csv", false, "save IV curves as csv"),
				fileSuffix: "csv",
				ext:        ".csv",
				write:      (*Extractor).WriteCSV,
			},
			"Plot": {
				saveFlag:   fs.Bool("png", false, "plot IV curves"),
				fileSuffix: "plot",
				ext:        ".png",
				write:      (*Extractor).WritePlot,
			},
			"Spreadsheet": {
				saveFlag:   fs.Bool("xlsx", false, "save IV curves as xlsx workbook"),
				fileSuffix: "xlsx",
				ext:        ".xlsx",
				write:      (*Extractor).WriteXLSX,
			},
		},
	}
}

func (df *DataFlags) SetOutputPath(path string) {
	df.outputPath = path
}

func (df *DataFlags) GetOutputPath() string {
	return df.outputPath
}
