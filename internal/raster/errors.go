package raster

import (
	"errors"
	"fmt"
)

// ErrRasterLoad matches every LoadError under errors.Is.
var ErrRasterLoad = errors.New("raster: load failed")

// LoadError reports that a raster could not be opened or has no readable
// elevation band. It is always fatal to a run.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("raster: load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func (e *LoadError) Is(target error) bool {
	return target == ErrRasterLoad
}

// IsLoadError returns true if err (or any error in its chain) is a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

func loadErr(path string, err error) error {
	return &LoadError{Path: path, Err: err}
}
