package common

import (
	"errors"
	"fmt"
)

// ErrModulePaused indicates the named module has been halted by the admin.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the admin pause switches consulted before any operation
// with side effects.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when the named module is paused. A nil view
// or empty module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%w: %s", ErrModulePaused, module)
	}
	return nil
}
