package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/corvusdb/corvus/cmd/corvussh/parser"
	"github.com/corvusdb/corvus/internal/collection"
	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/index"
	"github.com/corvusdb/corvus/internal/planner"
	"github.com/corvusdb/corvus/internal/value"
)

// Result is one command's outcome: how to print it, and whether the
// shell loop should exit after it.
type Result interface {
	Print(w io.Writer)
	IsExit() bool
}

type ErrorResult struct{ Err string }

func (e ErrorResult) Print(w io.Writer) { fmt.Fprintln(w, "ERROR:", e.Err) }
func (e ErrorResult) IsExit() bool      { return false }

type ExitResult struct{}

func (ExitResult) Print(w io.Writer) {}
func (ExitResult) IsExit() bool      { return true }

type OKResult struct{ Message string }

func (o OKResult) Print(w io.Writer) { fmt.Fprintln(w, "OK", o.Message) }
func (o OKResult) IsExit() bool       { return false }

type HelpResult struct{}

func (HelpResult) IsExit() bool { return false }
func (HelpResult) Print(w io.Writer) {
	fmt.Fprintln(w, "Corvus Shell Commands:")
	fmt.Fprintln(w, "  .help                                  Show this help")
	fmt.Fprintln(w, "  .exit                                  Exit the shell")
	fmt.Fprintln(w, "  .use <collection>                      Set current collection")
	fmt.Fprintln(w, "  .collections                           List open collections")
	fmt.Fprintln(w, "  .drop <collection>                     Drop a collection")
	fmt.Fprintln(w, "  .insert <json-doc>                      Insert a document")
	fmt.Fprintln(w, "  .find [json-filter]                     Find documents (equality-only filter)")
	fmt.Fprintln(w, "  .update <json-filter> <json-doc>        Update matching documents")
	fmt.Fprintln(w, "  .remove <json-filter>                   Remove matching documents")
	fmt.Fprintln(w, "  .createindex <field...> [unique]        Create an index")
	fmt.Fprintln(w, "  .dropindex <field...>                   Drop an index")
	fmt.Fprintln(w, "  .stats                                  Show document counts")
	fmt.Fprintln(w, "  .pretty [on|off]                        Toggle pretty-printing")
	fmt.Fprintln(w, "  .history                                Show command history")
}

type DocsResult struct {
	Docs   []*value.Document
	Pretty bool
}

func (d DocsResult) IsExit() bool { return false }
func (d DocsResult) Print(w io.Writer) {
	if len(d.Docs) == 0 {
		fmt.Fprintln(w, "(no matching documents)")
		return
	}
	for _, doc := range d.Docs {
		out, err := parser.FormatDocument(doc, d.Pretty)
		if err != nil {
			fmt.Fprintln(w, "ERROR:", err)
			continue
		}
		fmt.Fprintln(w, out)
	}
}

type HistoryResult struct{ Lines []string }

func (h HistoryResult) IsExit() bool { return false }
func (h HistoryResult) Print(w io.Writer) {
	for i, line := range h.Lines {
		fmt.Fprintf(w, "%4d  %s\n", i+1, line)
	}
}

func Help() Result { return HelpResult{} }
func Exit() Result { return ExitResult{} }

func Use(s Shell, cmd *parser.Command) Result {
	if err := parser.ValidateArgs(cmd, 1); err != nil {
		return ErrorResult{Err: err.Error()}
	}
	s.SetCurrentCollection(cmd.Args[0])
	return OKResult{Message: "using " + cmd.Args[0]}
}

func Collections(s Shell) Result {
	names := s.DB().CollectionNames()
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintln(&b, n)
	}
	return OKResult{Message: "\n" + b.String()}
}

func Drop(s Shell, cmd *parser.Command) Result {
	if err := parser.ValidateArgs(cmd, 1); err != nil {
		return ErrorResult{Err: err.Error()}
	}
	if err := s.DB().DropCollection(cmd.Args[0]); err != nil {
		return ErrorResult{Err: err.Error()}
	}
	return OKResult{}
}

func Insert(s Shell, cmd *parser.Command) Result {
	if err := parser.ValidateArgs(cmd, 1); err != nil {
		return ErrorResult{Err: err.Error()}
	}
	doc, err := parser.DecodeDocument(strings.Join(cmd.Args, " "))
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	coll, err := s.DB().Collection(s.CurrentCollection())
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	id, err := coll.Insert(doc)
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	return OKResult{Message: fmt.Sprintf("inserted _id=%d", id)}
}

func Find(s Shell, cmd *parser.Command) Result {
	coll, err := s.DB().Collection(s.CurrentCollection())
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	filter, err := equalityFilter(strings.Join(cmd.Args, " "))
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	cur, err := coll.Find(filter, planner.FindOptions{})
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	docs, err := cur.All()
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	return DocsResult{Docs: docs, Pretty: s.Pretty()}
}

func Update(s Shell, cmd *parser.Command) Result {
	if err := parser.ValidateArgs(cmd, 2); err != nil {
		return ErrorResult{Err: err.Error()}
	}
	filter, err := equalityFilter(cmd.Args[0])
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	doc, err := parser.DecodeDocument(strings.Join(cmd.Args[1:], " "))
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	coll, err := s.DB().Collection(s.CurrentCollection())
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	n, err := coll.UpdateWithOptions(filter, doc, collection.UpdateOptions{})
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	return OKResult{Message: fmt.Sprintf("updated %d document(s)", n)}
}

func Remove(s Shell, cmd *parser.Command) Result {
	coll, err := s.DB().Collection(s.CurrentCollection())
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	filter, err := equalityFilter(strings.Join(cmd.Args, " "))
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	n, err := coll.Remove(filter, false)
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	return OKResult{Message: fmt.Sprintf("removed %d document(s)", n)}
}

func CreateIndex(s Shell, cmd *parser.Command) Result {
	if err := parser.ValidateArgs(cmd, 1); err != nil {
		return ErrorResult{Err: err.Error()}
	}
	fields := cmd.Args
	unique := false
	if len(fields) > 0 && fields[len(fields)-1] == "unique" {
		unique = true
		fields = fields[:len(fields)-1]
	}
	typ := index.TypeNonUnique
	switch {
	case unique && len(fields) == 1:
		typ = index.TypeUnique
	case len(fields) > 1:
		typ = index.TypeCompound
	}
	coll, err := s.DB().Collection(s.CurrentCollection())
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	if err := coll.CreateIndex(fields, typ, unique); err != nil {
		return ErrorResult{Err: err.Error()}
	}
	return OKResult{}
}

func DropIndex(s Shell, cmd *parser.Command) Result {
	if err := parser.ValidateArgs(cmd, 1); err != nil {
		return ErrorResult{Err: err.Error()}
	}
	coll, err := s.DB().Collection(s.CurrentCollection())
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	if err := coll.DropIndex(cmd.Args); err != nil {
		return ErrorResult{Err: err.Error()}
	}
	return OKResult{}
}

func Pretty(s Shell, cmd *parser.Command) Result {
	if len(cmd.Args) == 0 {
		s.SetPretty(!s.Pretty())
	} else {
		s.SetPretty(cmd.Args[0] == "on")
	}
	return OKResult{Message: fmt.Sprintf("pretty=%v", s.Pretty())}
}

func History(s Shell) Result {
	return HistoryResult{Lines: s.History()}
}

func Stats(s Shell) Result {
	stats := s.DB().Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "total documents: %d\n", stats.TotalDocs)
	for _, c := range stats.Collections {
		fmt.Fprintf(&b, "  %-20s %s\n", c.Name, c.Formatted)
	}
	return OKResult{Message: "\n" + b.String()}
}

// equalityFilter turns a JSON object literal of field:value pairs into
// an AND of Equals filters. An empty string matches every document.
func equalityFilter(s string) (planner.Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return planner.And(), nil
	}
	v, err := parser.DecodeJSONValue(s)
	if err != nil {
		return planner.Filter{}, err
	}
	doc, ok := v.AsDocument()
	if !ok {
		return planner.Filter{}, dberrors.New(dberrors.FilterError, "corvussh.equalityFilter",
			"filter must be a JSON object")
	}
	var conjuncts []planner.Filter
	for _, field := range doc.Fields() {
		fv, _ := doc.Get(field)
		conjuncts = append(conjuncts, planner.Equals(field, fv))
	}
	if len(conjuncts) == 0 {
		return planner.And(), nil
	}
	if len(conjuncts) == 1 {
		return conjuncts[0], nil
	}
	return planner.And(conjuncts...), nil
}
