package common

import "errors"

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

// PauseSet is a static PauseView keyed by module identifier.
type PauseSet map[string]bool

// IsPaused implements PauseView.
func (p PauseSet) IsPaused(module string) bool { return p[module] }

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// GuardAll fails on the first paused module in order.
func GuardAll(p PauseView, modules ...string) error {
	for _, module := range modules {
		if err := Guard(p, module); err != nil {
			return err
		}
	}
	return nil
}
