package script

import (
	"errors"
	"fmt"

	"github.com/haasonsaas/neobot/pkg/models"
)

// ErrNoScript is returned by Create when the message holds no script block.
var ErrNoScript = errors.New("message does not contain a script block")

// CompileError reports a script that failed to load. No instance exists for
// its origin afterwards.
type CompileError struct {
	Origin     models.Origin
	Diagnostic string
	Err        error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: %s", e.Origin, e.Diagnostic)
}

func (e *CompileError) Unwrap() error { return e.Err }

// RuntimeFault reports a hook that panicked, returned an error or had the
// wrong signature. The instance stays registered.
type RuntimeFault struct {
	Origin     models.Origin
	InstanceID string
	Hook       string
	Err        error
}

func (f *RuntimeFault) Error() string {
	return fmt.Sprintf("hook %s on %s: %v", f.Hook, f.Origin, f.Err)
}

func (f *RuntimeFault) Unwrap() error { return f.Err }
