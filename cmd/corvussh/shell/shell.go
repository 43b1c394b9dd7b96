// Package shell holds corvussh's session state and dispatches parsed
// commands to the commands package, the in-process analogue of
// docdbsh's own Shell (which instead tracked a socket connection and a
// remote database id).
package shell

import (
	"sync"

	"github.com/corvusdb/corvus/cmd/corvussh/commands"
	"github.com/corvusdb/corvus/cmd/corvussh/parser"
	"github.com/corvusdb/corvus/pkg/corvus"
)

const defaultCollection = "default"

type Shell struct {
	mu                sync.Mutex
	db                *corvus.Database
	currentCollection string
	pretty            bool
	history           []string
}

func New(db *corvus.Database) *Shell {
	return &Shell{
		db:                db,
		currentCollection: defaultCollection,
		history:           make([]string, 0, 100),
	}
}

func (s *Shell) DB() *corvus.Database { return s.db }

func (s *Shell) CurrentCollection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentCollection
}

func (s *Shell) SetCurrentCollection(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		name = defaultCollection
	}
	s.currentCollection = name
}

func (s *Shell) Pretty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pretty
}

func (s *Shell) SetPretty(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pretty = v
}

func (s *Shell) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Shell) AddHistory(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, line)
	if len(s.history) > 100 {
		s.history = s.history[1:]
	}
}

// Execute routes a parsed Command to its commands.* handler.
func (s *Shell) Execute(cmd *parser.Command) commands.Result {
	switch cmd.Name {
	case ".help":
		return commands.Help()
	case ".exit", ".quit":
		return commands.Exit()
	case ".use":
		return commands.Use(s, cmd)
	case ".collections":
		return commands.Collections(s)
	case ".drop":
		return commands.Drop(s, cmd)
	case ".insert":
		return commands.Insert(s, cmd)
	case ".find":
		return commands.Find(s, cmd)
	case ".update":
		return commands.Update(s, cmd)
	case ".remove":
		return commands.Remove(s, cmd)
	case ".createindex":
		return commands.CreateIndex(s, cmd)
	case ".dropindex":
		return commands.DropIndex(s, cmd)
	case ".pretty":
		return commands.Pretty(s, cmd)
	case ".history":
		return commands.History(s)
	case ".stats":
		return commands.Stats(s)
	default:
		return commands.ErrorResult{Err: "unknown command: " + cmd.Name + " (try .help)"}
	}
}
