package store

import (
	"errors"
	"fmt"
)

// ModuleStartError indica que el store no pudo arrancar (migraciones fallidas).
// Es fatal: el proceso no debe servir tráfico contra un schema sin migrar.
type ModuleStartError struct {
	Backend string
	Err     error
}

func (e *ModuleStartError) Error() string {
	return fmt.Sprintf("store: module start failed (%s): %v", e.Backend, e.Err)
}

func (e *ModuleStartError) Unwrap() error { return e.Err }

// IsModuleStartError verifica si err (o alguno de sus wrapped) es un ModuleStartError.
func IsModuleStartError(err error) bool {
	var mse *ModuleStartError
	return errors.As(err, &mse)
}
