package services

import "errors"

// Analysis service errors
var (
	// Drop errors
	ErrNoPaths         = errors.New("no files in drop")
	ErrNotAbsolutePath = errors.New("path must be absolute")
	ErrNotADirectory   = errors.New("not a directory")

	// Upload errors
	ErrInvalidFileType = errors.New("invalid file type")
	ErrReservedName    = errors.New("file name is reserved for an output file")
)
