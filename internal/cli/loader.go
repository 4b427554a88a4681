package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/scopeq/internal/compiler"
	"github.com/roach88/scopeq/internal/model"
)

// LoadResult contains the models compiled from a directory.
type LoadResult struct {
	Models    []*model.Model
	FileCount int // Number of CUE files found
}

// Model returns the model called name, matching the model label first and
// the table name second.
func (r *LoadResult) Model(name string) (*model.Model, error) {
	for _, m := range r.Models {
		if m.Name == name {
			return m, nil
		}
	}
	for _, m := range r.Models {
		if m.Table == name {
			return m, nil
		}
	}
	return nil, &LoadError{Code: ErrCodeUnknownModel, Message: fmt.Sprintf("unknown model %q", name)}
}

// LoadError represents an error that occurred during model loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadModels loads the CUE package in dir and compiles every entry of its
// top-level "model" struct.
func LoadModels(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("models directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing models directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	models, err := compiler.CompileModels(value)
	if err != nil {
		return nil, convertCompileError(err)
	}
	if len(models) == 0 {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("no models found in %s", dir)}
	}
	return &LoadResult{Models: models, FileCount: len(cueFiles)}, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: err.Error(),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No CUE files found
	ErrCodeLoadFailed   = "E004" // CUE load failed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeBuildFailed  = "E006" // CUE build failed
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeUnknownModel = "E008" // Model name not declared

	// Model definition errors
	ErrCodeModelTable      = "E101" // Missing or empty table
	ErrCodeModelFields     = "E102" // Missing or invalid fields
	ErrCodeInvalidType     = "E103" // Unknown field type
	ErrCodeModelOrder      = "E104" // Invalid default order
	ErrCodeModelConditions = "E105" // Invalid base conditions
	ErrCodeModelLimit      = "E106" // Invalid default limit

	// Query errors
	ErrCodeInvalidQuery = "E201" // Query flags could not be built into a query
	ErrCodeQueryFailed  = "E202" // Query ran and failed
	ErrCodeFixture      = "E203" // Fixture could not be applied
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "table":
		return ErrCodeModelTable
	case "fields":
		return ErrCodeModelFields
	case "type":
		return ErrCodeInvalidType
	case "order":
		return ErrCodeModelOrder
	case "conditions":
		return ErrCodeModelConditions
	case "limit":
		return ErrCodeModelLimit
	default:
		return ErrCodeGeneric
	}
}
