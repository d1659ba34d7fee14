package engine

import (
	"fmt"
	"path/filepath"
	"strings"
)

// symbolOf returns the data file name without its extension.
func symbolOf(dataPath string) string {
	return strings.TrimSuffix(filepath.Base(dataPath), filepath.Ext(dataPath))
}

// resultFolders maps each data path to <resultsFolder>/<symbol>. A symbol seen before
// gets the data file index appended so parallel runs never share a folder.
func resultFolders(resultsFolder string, dataPaths []string) []string {
	folders := make([]string, len(dataPaths))
	seen := make(map[string]bool, len(dataPaths))

	for i, dataPath := range dataPaths {
		name := symbolOf(dataPath)
		if seen[name] {
			name = fmt.Sprintf("%s_%d", name, i)
		}

		seen[name] = true
		folders[i] = filepath.Join(resultsFolder, name)
	}

	return folders
}
