package commands_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusdb/corvus/cmd/corvussh/commands"
	"github.com/corvusdb/corvus/cmd/corvussh/parser"
	"github.com/corvusdb/corvus/internal/config"
	"github.com/corvusdb/corvus/pkg/corvus"
)

type fakeShell struct {
	db      *corvus.Database
	current string
	pretty  bool
	hist    []string
}

func newFakeShell(t *testing.T) *fakeShell {
	db, err := corvus.Open(config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &fakeShell{db: db, current: "default"}
}

func (f *fakeShell) DB() *corvus.Database          { return f.db }
func (f *fakeShell) CurrentCollection() string     { return f.current }
func (f *fakeShell) SetCurrentCollection(n string) { f.current = n }
func (f *fakeShell) Pretty() bool                  { return f.pretty }
func (f *fakeShell) SetPretty(v bool)              { f.pretty = v }
func (f *fakeShell) History() []string             { return f.hist }
func (f *fakeShell) AddHistory(line string)        { f.hist = append(f.hist, line) }

func mustParse(t *testing.T, line string) *parser.Command {
	cmd, err := parser.Parse(line)
	require.NoError(t, err)
	return cmd
}

func TestUseSwitchesCurrentCollection(t *testing.T) {
	s := newFakeShell(t)
	res := commands.Use(s, mustParse(t, ".use people"))
	assert.IsType(t, commands.OKResult{}, res)
	assert.Equal(t, "people", s.CurrentCollection())
}

func TestInsertThenFindRoundTrips(t *testing.T) {
	s := newFakeShell(t)
	s.SetCurrentCollection("people")

	res := commands.Insert(s, mustParse(t, `.insert {"name":"Ada","age":36}`))
	require.IsType(t, commands.OKResult{}, res)

	found := commands.Find(s, mustParse(t, `.find {"name":"Ada"}`))
	docs, ok := found.(commands.DocsResult)
	require.True(t, ok)
	require.Len(t, docs.Docs, 1)
	name, _ := docs.Docs[0].Get("name")
	n, _ := name.AsString()
	assert.Equal(t, "Ada", n)
}

func TestFindWithEmptyFilterReturnsEveryDocument(t *testing.T) {
	s := newFakeShell(t)
	s.SetCurrentCollection("people")
	commands.Insert(s, mustParse(t, `.insert {"name":"Ada"}`))
	commands.Insert(s, mustParse(t, `.insert {"name":"Grace"}`))

	found := commands.Find(s, mustParse(t, ".find"))
	docs, ok := found.(commands.DocsResult)
	require.True(t, ok)
	assert.Len(t, docs.Docs, 2)
}

func TestUpdateMergesMatchingDocuments(t *testing.T) {
	s := newFakeShell(t)
	s.SetCurrentCollection("people")
	commands.Insert(s, mustParse(t, `.insert {"name":"Ada","age":36}`))

	res := commands.Update(s, mustParse(t, `.update {"name":"Ada"} {"age":37}`))
	ok, isOK := res.(commands.OKResult)
	require.True(t, isOK)
	assert.Contains(t, ok.Message, "updated 1")

	found := commands.Find(s, mustParse(t, `.find {"name":"Ada"}`))
	docs := found.(commands.DocsResult).Docs
	require.Len(t, docs, 1)
	age, _ := docs[0].Get("age")
	f, _ := age.AsFloat64()
	assert.Equal(t, float64(37), f)
}

func TestRemoveDeletesMatchingDocuments(t *testing.T) {
	s := newFakeShell(t)
	s.SetCurrentCollection("people")
	commands.Insert(s, mustParse(t, `.insert {"name":"Ada"}`))

	res := commands.Remove(s, mustParse(t, `.remove {"name":"Ada"}`))
	ok, isOK := res.(commands.OKResult)
	require.True(t, isOK)
	assert.Contains(t, ok.Message, "removed 1")

	found := commands.Find(s, mustParse(t, ".find"))
	assert.Empty(t, found.(commands.DocsResult).Docs)
}

func TestCreateIndexThenDuplicateUniqueInsertFails(t *testing.T) {
	s := newFakeShell(t)
	s.SetCurrentCollection("people")

	res := commands.CreateIndex(s, mustParse(t, ".createindex name unique"))
	assert.IsType(t, commands.OKResult{}, res)

	commands.Insert(s, mustParse(t, `.insert {"name":"Ada"}`))
	dup := commands.Insert(s, mustParse(t, `.insert {"name":"Ada"}`))
	assert.IsType(t, commands.ErrorResult{}, dup)
}

func TestPrettyTogglesAndAccepts(t *testing.T) {
	s := newFakeShell(t)

	commands.Pretty(s, mustParse(t, ".pretty on"))
	assert.True(t, s.Pretty())

	commands.Pretty(s, mustParse(t, ".pretty off"))
	assert.False(t, s.Pretty())

	commands.Pretty(s, mustParse(t, ".pretty"))
	assert.True(t, s.Pretty())
}

func TestDropRemovesCollection(t *testing.T) {
	s := newFakeShell(t)
	s.SetCurrentCollection("people")
	commands.Insert(s, mustParse(t, `.insert {"name":"Ada"}`))

	res := commands.Drop(s, mustParse(t, ".drop people"))
	assert.IsType(t, commands.OKResult{}, res)
	assert.False(t, s.DB().HasCollection("people"))
}

func TestErrorResultPrintsErrPrefix(t *testing.T) {
	var sb strings.Builder
	commands.ErrorResult{Err: "boom"}.Print(&sb)
	assert.Contains(t, sb.String(), "ERROR")
	assert.Contains(t, sb.String(), "boom")
}

func TestExitResultIsExit(t *testing.T) {
	assert.True(t, commands.ExitResult{}.IsExit())
	assert.False(t, commands.OKResult{}.IsExit())
}

func TestHelpResultListsCommands(t *testing.T) {
	var sb strings.Builder
	commands.HelpResult{}.Print(&sb)
	out := sb.String()
	assert.Contains(t, out, ".insert")
	assert.Contains(t, out, ".find")
}
