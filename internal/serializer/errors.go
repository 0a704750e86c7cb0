package serializer

import "fmt"

// UnsupportedError is returned at construction for formats or compression
// algorithms the pipeline recognises but does not implement.
type UnsupportedError struct {
	What string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("serializer: unsupported %s", e.What)
}

// CodecError wraps a failure inside the encode/decode pipeline.
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("serializer: %s failed: %v", e.Op, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// ChecksumError reports a corrupted envelope.
type ChecksumError struct {
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("serializer: checksum mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// SizeError reports an encoded payload over the configured ceiling.
type SizeError struct {
	Size int
	Max  int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("serializer: encoded size %d exceeds maximum %d", e.Size, e.Max)
}
