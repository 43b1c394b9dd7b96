package corvus

import "github.com/corvusdb/corvus/internal/txn"

// BeginTransaction opens a new session and a single transaction on it,
// for callers that want direct access to txn.Transaction.Record. The
// returned session owns the transaction; closing it (via the returned
// closer) rolls back anything not yet committed.
func (db *Database) BeginTransaction() (*txn.Transaction, func() error, error) {
	session := db.Session()
	tx, err := session.BeginTransaction()
	if err != nil {
		return nil, nil, err
	}
	return tx, session.Close, nil
}

// WithTransaction runs fn against a fresh transaction, committing on a
// nil return and rolling back otherwise. The session is always closed
// before WithTransaction returns.
func (db *Database) WithTransaction(fn func(tx *txn.Transaction) error) error {
	session := db.Session()
	defer session.Close()

	tx, err := session.BeginTransaction()
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
