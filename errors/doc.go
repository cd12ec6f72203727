/*
Package errors provides semantic error types for the ItemStore library.

The package defines the failure taxonomy of the persistence engine with specific
types that can be checked using the standard errors.Is() function or the provided
helper functions.

Common Errors:

	var (
	    ErrNotFound        = errors.New("record not found")
	    ErrIdentity        = errors.New("identity violation")
	    ErrUnsafeOverwrite = errors.New("unsafe overwrite")
	    ErrInvalidInput    = errors.New("invalid input")
	    ErrFormat          = errors.New("malformed input")
	    ErrIntegrity       = errors.New("index integrity check failed")
	)

Usage:

	rec, err := adapter.Read(ctx, key)
	if err != nil {
	    if errors.IsNotFound(err) {
	        return nil, fmt.Errorf("user %s does not exist", id)
	    }
	    return nil, err
	}

	if err := item.Load(ctx); errors.IsUnsafeOverwrite(err) {
	    // local edits were kept; save or roll back first
	}

Validation failures of one save are reported together as an
AggregateValidationError, and index self-check failures of one model as an
IntegrityError naming every failing index.
*/
package errors
