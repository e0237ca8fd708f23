package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/taskgrid/internal/config"
	"github.com/specialistvlad/taskgrid/internal/fsutil"
	"github.com/specialistvlad/taskgrid/internal/hcl"
	"github.com/specialistvlad/taskgrid/internal/yamlgrid"
)

// LoaderFor picks the grid loader for path. Files are matched on their
// extension; a directory is read as YAML when it holds any .yaml or .yml
// file and as HCL otherwise.
func LoaderFor(path string) (config.Loader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("grid path: %w", err)
	}
	if !info.IsDir() {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".hcl":
			return hcl.NewLoader(), nil
		case ".yaml", ".yml":
			return yamlgrid.NewLoader(), nil
		default:
			return nil, fmt.Errorf("grid file %s: unsupported extension, want .hcl, .yaml or .yml", path)
		}
	}

	files, err := fsutil.FindFiles([]string{path}, ".yaml", ".yml")
	if err != nil {
		return nil, err
	}
	if len(files) > 0 {
		return yamlgrid.NewLoader(), nil
	}
	return hcl.NewLoader(), nil
}
