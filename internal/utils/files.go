package utils

import (
	"os"
	"path/filepath"
	"strings"
)

func GetFilename(filePath string) string {
	// Get the base name (removes directory components)
	base := filepath.Base(filePath)

	// Remove the extension (everything after last dot)
	ext := filepath.Ext(base)

	return strings.TrimSuffix(base, ext)
}

// OpenFile creates outputPath/fileSuffix/modelName+ext when makeDir is set,
// outputPath/modelName_fileSuffix+ext otherwise.
func OpenFile(makeDir bool, outputPath, fileSuffix, modelName, ext string) (*os.File, error) {
	if makeDir && fileSuffix != "" && fileSuffix != "." {
		if err := os.MkdirAll(filepath.Join(outputPath, fileSuffix), 0750); err != nil {
			return nil, err
		}
		return os.Create(filepath.Join(outputPath, fileSuffix, modelName+ext))
	}
	return os.Create(filepath.Join(outputPath, modelName+"_"+fileSuffix+ext))
}
