// Package commands implements each corvussh dot-command against a
// Shell, the in-process analogue of docdbsh's Client-backed commands
// package (corvus is an embeddable library, not a socket server, so
// commands call straight into pkg/corvus rather than through an RPC
// client).
package commands

import "github.com/corvusdb/corvus/pkg/corvus"

// Shell is the state a command needs: the open Database, which
// collection is "current", and shell-local display preferences.
type Shell interface {
	DB() *corvus.Database
	CurrentCollection() string
	SetCurrentCollection(name string)
	Pretty() bool
	SetPretty(bool)
	History() []string
	AddHistory(line string)
}
