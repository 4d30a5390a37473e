package taplib

import "github.com/joomcode/errorx"

// Error taxonomy of the extraction engine. Every error aborts the current
// stream's sync; callers classify with errorx.IsOfType.
var (
	Errors = errorx.NewNamespace("tap")

	// ConfigurationError - an identifier cannot be safely escaped. Raised
	// before query execution.
	ConfigurationError = Errors.NewType("configuration")
	// DataShapeError - a fetched row's arity does not match the expected
	// column list.
	DataShapeError = Errors.NewType("data_shape")
	// SourceError - cursor execute/fetch failure. Propagated unmodified
	// apart from stream context, no local retry.
	SourceError = Errors.NewType("source")
	// FilesystemError - directory/file creation or write failure in
	// batched mode.
	FilesystemError = Errors.NewType("filesystem")
)
