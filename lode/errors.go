package lode

import (
	"errors"
	"fmt"
	"strings"
)

// Storage failure classes. A *StorageError matches exactly one of these
// through errors.Is.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrDiskFull         = errors.New("no space left on device")
	ErrTimeout          = errors.New("operation timed out")
	ErrThrottled        = errors.New("rate limited")
	ErrAuth             = errors.New("authentication failed")
	ErrAccessDenied     = errors.New("access denied")
	ErrNetwork          = errors.New("network error")

	// ErrStorage is the class for failures no rule recognizes.
	ErrStorage = errors.New("storage error")
)

// Op names the storage operation that failed.
type Op string

const (
	OpInit  Op = "init"
	OpWrite Op = "write"
	OpRead  Op = "read"
)

// StorageError is a classified storage failure. The original error stays in
// the chain so backend-specific types remain reachable through errors.As.
type StorageError struct {
	Kind error
	Op   Op
	// Path is the dataset, partition or snapshot involved; may be empty.
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return errors.Is(e.Kind, target) }

// WrapInitError classifies a dataset or client construction failure.
func WrapInitError(err error, dataset string) error { return wrap(OpInit, dataset, err) }

// WrapWriteError classifies a record write failure for a partition.
func WrapWriteError(err error, path string) error { return wrap(OpWrite, path, err) }

// WrapReadError classifies a snapshot listing or read failure.
func WrapReadError(err error, path string) error { return wrap(OpRead, path, err) }

func wrap(op Op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Kind: classifyError(err), Op: op, Path: path, Err: err}
}

// classifyRule maps message fragments to a class. Rules are checked in
// order and matching is case-insensitive.
type classifyRule struct {
	kind      error
	fragments []string
}

var classifyRules = []classifyRule{
	// 403-style denials are checked before generic permission failures.
	{ErrAccessDenied, []string{"AccessDenied", "Forbidden", "403"}},
	{ErrPermissionDenied, []string{"permission denied", "EACCES"}},
	{ErrNotFound, []string{"no such file", "does not exist", "not found", "ENOENT", "404", "NoSuchKey", "NoSuchBucket"}},
	{ErrDiskFull, []string{"no space left", "disk full", "ENOSPC", "quota exceeded"}},
	{ErrTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{ErrThrottled, []string{"SlowDown", "rate exceeded", "throttl", "429", "TooManyRequests"}},
	{ErrAuth, []string{"NoCredentialProviders", "credentials", "InvalidAccessKeyId",
		"SignatureDoesNotMatch", "ExpiredToken", "401", "Unauthorized"}},
	{ErrNetwork, []string{"connection refused", "no route to host", "network unreachable", "DNS", "dial tcp"}},
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range classifyRules {
		for _, frag := range rule.fragments {
			if strings.Contains(msg, strings.ToLower(frag)) {
				return rule.kind
			}
		}
	}
	return ErrStorage
}
