package export

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roadfeat/internal/road"
)

// Write writes aggregates to path, choosing the format by extension: .csv,
// .xlsx or .shp. An empty input still produces a file with the header.
func Write(path string, aggs []road.Aggregate, opts Options) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "export: create directory")
		}
	}

	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".xlsx":
		err = WriteTable(path, ToTable(aggs, opts))
	case ".shp":
		err = writeShapefile(path, aggs, opts)
	default:
		return eris.Errorf("export: unsupported output format %q", ext)
	}
	if err != nil {
		return err
	}

	zap.L().Info("export: table written",
		zap.String("path", path),
		zap.Int("rows", len(aggs)),
		zap.Bool("slope", opts.IncludeSlope),
	)
	return nil
}
