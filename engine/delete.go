package engine

import (
	"os"

	"github.com/uplo-tech/errors"
)

// DeleteProject detaches the engine and permanently removes its project
// directory. The confirmed flag exists so a host application cannot destroy
// a project through a single accidental call; it must be a deliberate,
// explicit true.
func (e *Engine) DeleteProject(confirmed bool) error {
	if !confirmed {
		return ErrDeleteNotConfirmed
	}
	if err := e.Detach(); err != nil {
		return errors.AddContext(err, "could not detach before delete")
	}
	if err := os.RemoveAll(e.layout.projectPath); err != nil {
		return errors.AddContext(err, "could not remove project directory")
	}
	return nil
}
