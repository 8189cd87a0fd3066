package ddbsdk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

var (
	// ErrOptimisticLock matches writes rejected because the stored item
	// changed since it was read.
	ErrOptimisticLock = errors.New("ddbsdk: optimistic lock failure")
	// ErrDuplicateItem matches reads that expected at most one item.
	ErrDuplicateItem = errors.New("ddbsdk: duplicate item found")
	// ErrTransactionAborted matches a rejected TransactWriteItems call.
	ErrTransactionAborted = errors.New("ddbsdk: transaction aborted")
)

const reasonConditionalCheckFailed = "ConditionalCheckFailed"

// OptimisticLockError wraps the store's conditional check failure.
type OptimisticLockError struct {
	Table string
	Err   error
}

func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("optimistic lock failure on table %q: %v", e.Table, e.Err)
}

func (e *OptimisticLockError) Is(target error) bool {
	return target == ErrOptimisticLock
}

func (e *OptimisticLockError) Unwrap() error {
	return e.Err
}

// TransactionAbortedError wraps a cancelled transaction. Reasons holds one
// code per action, "None" for actions that did not fail.
type TransactionAbortedError struct {
	Reasons []string
	Err     error
}

func (e *TransactionAbortedError) Error() string {
	return fmt.Sprintf("transaction aborted [%s]: %v", strings.Join(e.Reasons, ", "), e.Err)
}

// Is reports ErrOptimisticLock too when any action failed its condition.
func (e *TransactionAbortedError) Is(target error) bool {
	switch target {
	case ErrTransactionAborted:
		return true
	case ErrOptimisticLock:
		for _, r := range e.Reasons {
			if r == reasonConditionalCheckFailed {
				return true
			}
		}
	}
	return false
}

func (e *TransactionAbortedError) Unwrap() error {
	return e.Err
}

type DuplicateItemError struct {
	Count int
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("expected at most one item, got %d", e.Count)
}

func (e *DuplicateItemError) Is(target error) bool {
	return target == ErrDuplicateItem
}

// classify wraps store errors that have a meaning in the versioning
// protocol. Other errors are returned unchanged.
func classify(tableName string, err error) error {
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return &OptimisticLockError{Table: tableName, Err: err}
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		reasons := make([]string, len(tce.CancellationReasons))
		for i, r := range tce.CancellationReasons {
			reasons[i] = "None"
			if r.Code != nil {
				reasons[i] = *r.Code
			}
		}
		return &TransactionAbortedError{Reasons: reasons, Err: err}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ConditionalCheckFailedException":
			return &OptimisticLockError{Table: tableName, Err: err}
		case "TransactionCanceledException":
			return &TransactionAbortedError{Err: err}
		}
	}
	return err
}
