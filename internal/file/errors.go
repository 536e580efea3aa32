package file

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound signals that the file could not be located.
	ErrFileNotFound = errors.New("file not found")
	// ErrEmptyBucketName rejects a blank bucket name on bucket-scoped removal.
	ErrEmptyBucketName = errors.New("bucket name must not be empty")
)

// UploadError reports a failed upload stream. Err is the original stream or
// remote-sink error; CleanupErr records a failed attempt to remove the
// partial remote object, if any.
type UploadError struct {
	Object     string
	Err        error
	CleanupErr error
}

func (e *UploadError) Error() string {
	if e.CleanupErr != nil {
		return fmt.Sprintf("upload %s: %v (cleanup also failed: %v)", e.Object, e.Err, e.CleanupErr)
	}
	return fmt.Sprintf("upload %s: %v", e.Object, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
