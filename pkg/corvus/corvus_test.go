package corvus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusdb/corvus/internal/collection"
	"github.com/corvusdb/corvus/internal/config"
	"github.com/corvusdb/corvus/internal/planner"
	"github.com/corvusdb/corvus/internal/txn"
	"github.com/corvusdb/corvus/internal/value"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenCollectionCreatesAndReopensSameInstance(t *testing.T) {
	db := openTestDB(t)
	a, err := db.Collection("people")
	require.NoError(t, err)
	b, err := db.Collection("people")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.ElementsMatch(t, []string{"people"}, db.CollectionNames())
}

func TestDropCollectionRemovesIt(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Collection("people")
	require.NoError(t, err)

	require.NoError(t, db.DropCollection("people"))
	assert.False(t, db.HasCollection("people"))

	err = db.DropCollection("people")
	assert.Error(t, err)
}

func TestRenameCollectionPreservesDocuments(t *testing.T) {
	db := openTestDB(t)
	old, err := db.Collection("people")
	require.NoError(t, err)
	_, err = old.Insert(docWith("name", value.String("ada")))
	require.NoError(t, err)

	require.NoError(t, db.RenameCollection("people", "humans"))
	assert.False(t, db.HasCollection("people"))
	require.True(t, db.HasCollection("humans"))

	humans, err := db.Collection("humans")
	require.NoError(t, err)
	cur, err := humans.Find(planner.Equals("name", value.String("ada")), planner.FindOptions{})
	require.NoError(t, err)
	docs, err := cur.All()
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestWithTransactionCommitsOnSuccess(t *testing.T) {
	db := openTestDB(t)
	coll, err := db.Collection("people")
	require.NoError(t, err)

	var committed bool
	err = db.WithTransaction(func(tx *txn.Transaction) error {
		return tx.Record("people", txn.ChangeInsert,
			func() error {
				_, e := coll.Insert(docWith("name", value.String("grace")))
				committed = e == nil
				return e
			},
			func() error { return nil },
		)
	})
	require.NoError(t, err)
	assert.True(t, committed)
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	sentinel := assert.AnError

	err := db.WithTransaction(func(tx *txn.Transaction) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}

func TestInsertTxVisibleWithinTransactionThenCommitted(t *testing.T) {
	db := openTestDB(t)
	coll, err := db.Collection("people")
	require.NoError(t, err)

	err = db.WithTransaction(func(tx *txn.Transaction) error {
		id, err := coll.InsertTx(tx, docWith("name", value.String("ada")))
		if err != nil {
			return err
		}
		require.NotZero(t, id)

		cur, err := coll.FindTx(tx, planner.Equals("name", value.String("ada")), planner.FindOptions{})
		if err != nil {
			return err
		}
		docs, err := cur.All()
		if err != nil {
			return err
		}
		assert.Len(t, docs, 1, "insert should be visible through the overlay inside the transaction")
		return nil
	})
	require.NoError(t, err)

	cur, err := coll.Find(planner.Equals("name", value.String("ada")), planner.FindOptions{})
	require.NoError(t, err)
	docs, err := cur.All()
	require.NoError(t, err)
	assert.Len(t, docs, 1, "committed insert should be visible outside the transaction")
}

func TestUpdateTxRolledBackLeavesOriginalDocumentUnchanged(t *testing.T) {
	db := openTestDB(t)
	coll, err := db.Collection("people")
	require.NoError(t, err)
	_, err = coll.Insert(docWith("name", value.String("ada")))
	require.NoError(t, err)

	sentinel := assert.AnError
	err = db.WithTransaction(func(tx *txn.Transaction) error {
		updated, err := coll.UpdateWithOptionsTx(tx, planner.Equals("name", value.String("ada")),
			docWith("name", value.String("grace")), collection.UpdateOptions{})
		if err != nil {
			return err
		}
		require.Equal(t, 1, updated)

		cur, err := coll.FindTx(tx, planner.Equals("name", value.String("grace")), planner.FindOptions{})
		if err != nil {
			return err
		}
		docs, err := cur.All()
		if err != nil {
			return err
		}
		assert.Len(t, docs, 1, "update should be visible through the overlay inside the transaction")
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	cur, err := coll.Find(planner.Equals("name", value.String("ada")), planner.FindOptions{})
	require.NoError(t, err)
	docs, err := cur.All()
	require.NoError(t, err)
	assert.Len(t, docs, 1, "rolled-back update must leave the original document in place")

	cur, err = coll.Find(planner.Equals("name", value.String("grace")), planner.FindOptions{})
	require.NoError(t, err)
	docs, err = cur.All()
	require.NoError(t, err)
	assert.Empty(t, docs, "rolled-back update must not be visible outside the transaction")
}

func TestRemoveTxCommittedDeletesDocument(t *testing.T) {
	db := openTestDB(t)
	coll, err := db.Collection("people")
	require.NoError(t, err)
	_, err = coll.Insert(docWith("name", value.String("ada")))
	require.NoError(t, err)

	err = db.WithTransaction(func(tx *txn.Transaction) error {
		removed, err := coll.RemoveTx(tx, planner.Equals("name", value.String("ada")), false)
		if err != nil {
			return err
		}
		require.Equal(t, 1, removed)
		return nil
	})
	require.NoError(t, err)

	cur, err := coll.Find(planner.Equals("name", value.String("ada")), planner.FindOptions{})
	require.NoError(t, err)
	docs, err := cur.All()
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestStatsReportsDocumentCounts(t *testing.T) {
	db := openTestDB(t)
	coll, err := db.Collection("people")
	require.NoError(t, err)
	_, err = coll.Insert(docWith("name", value.String("ada")))
	require.NoError(t, err)

	stats := db.Stats()
	require.Len(t, stats.Collections, 1)
	assert.Equal(t, 1, stats.Collections[0].DocumentCount)
	assert.Equal(t, "1", stats.Collections[0].Formatted)
	assert.Equal(t, 1, stats.TotalDocs)
}

func docWith(key string, v value.Value) *value.Document {
	d := value.NewDocument()
	d.Put(key, v)
	return d
}
