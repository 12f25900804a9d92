package executor

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shibukawa/dbfixture"
	"github.com/shibukawa/dbfixture/dataset"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// a pooled second connection would see a different in-memory database
	db.SetMaxOpenConns(1)

	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT
	)`)
	require.NoError(t, err)

	_, err = db.Exec(`CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		status TEXT NOT NULL
	)`)
	require.NoError(t, err)

	_, err = db.Exec(`CREATE TABLE settings (
		key TEXT,
		value TEXT
	)`)
	require.NoError(t, err)

	return db
}

func usersDataset(rows ...dataset.Row) *dataset.Dataset {
	ds := dataset.New()
	ds.AddTable(&dataset.Table{
		Name:    "users",
		Columns: []string{"id", "name", "email"},
		Rows:    rows,
	})

	return ds
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&count))

	return count
}

func TestExecuteInsert(t *testing.T) {
	db := newTestDB(t)
	exec := New(db, dbfixture.DialectSQLite)

	ds := usersDataset(
		dataset.Row{"id": int64(1), "name": "alice", "email": "alice@example.com"},
		dataset.Row{"id": int64(2), "name": "bob", "email": nil},
	)

	require.NoError(t, exec.Execute(context.Background(), dbfixture.OperationInsert, ds))
	assert.Equal(t, 2, countRows(t, db, "users"))

	var email sql.NullString
	require.NoError(t, db.QueryRow("SELECT email FROM users WHERE id = 2").Scan(&email))
	assert.False(t, email.Valid)
}

func TestExecuteCleanInsert(t *testing.T) {
	db := newTestDB(t)
	exec := New(db, dbfixture.DialectSQLite)

	_, err := db.Exec("INSERT INTO users (id, name) VALUES (99, 'stale')")
	require.NoError(t, err)

	ds := usersDataset(dataset.Row{"id": int64(1), "name": "alice", "email": nil})
	require.NoError(t, exec.Execute(context.Background(), dbfixture.OperationCleanInsert, ds))

	assert.Equal(t, 1, countRows(t, db, "users"))

	var name string
	require.NoError(t, db.QueryRow("SELECT name FROM users WHERE id = 1").Scan(&name))
	assert.Equal(t, "alice", name)
}

func TestExecuteDeleteAllReverseOrder(t *testing.T) {
	db := newTestDB(t)
	exec := New(db, dbfixture.DialectSQLite)

	_, err := db.Exec("INSERT INTO users (id, name) VALUES (1, 'alice')")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO orders (id, user_id, status) VALUES (1, 1, 'open')")
	require.NoError(t, err)

	ds := dataset.New()
	ds.AddTable(&dataset.Table{Name: "users", Columns: []string{"id"}})
	ds.AddTable(&dataset.Table{Name: "orders", Columns: []string{"id"}})

	require.NoError(t, exec.Execute(context.Background(), dbfixture.OperationDeleteAll, ds))
	assert.Equal(t, 0, countRows(t, db, "users"))
	assert.Equal(t, 0, countRows(t, db, "orders"))
}

func TestExecuteDelete(t *testing.T) {
	db := newTestDB(t)
	exec := New(db, dbfixture.DialectSQLite)

	_, err := db.Exec("INSERT INTO users (id, name) VALUES (1, 'alice'), (2, 'bob')")
	require.NoError(t, err)

	ds := usersDataset(dataset.Row{"id": int64(1), "name": "alice", "email": nil})
	require.NoError(t, exec.Execute(context.Background(), dbfixture.OperationDelete, ds))

	assert.Equal(t, 1, countRows(t, db, "users"))

	var name string
	require.NoError(t, db.QueryRow("SELECT name FROM users").Scan(&name))
	assert.Equal(t, "bob", name)
}

func TestExecuteDeleteMissingPrimaryKeyValue(t *testing.T) {
	db := newTestDB(t)
	exec := New(db, dbfixture.DialectSQLite)

	ds := dataset.New()
	ds.AddTable(&dataset.Table{
		Name:    "users",
		Columns: []string{"name"},
		Rows:    []dataset.Row{{"name": "alice"}},
	})

	err := exec.Execute(context.Background(), dbfixture.OperationDelete, ds)
	assert.ErrorIs(t, err, dbfixture.ErrPrimaryKeyMissing)
}

func TestExecuteDeleteWithoutPrimaryKey(t *testing.T) {
	db := newTestDB(t)
	exec := New(db, dbfixture.DialectSQLite)

	ds := dataset.New()
	ds.AddTable(&dataset.Table{
		Name:    "settings",
		Columns: []string{"key", "value"},
		Rows:    []dataset.Row{{"key": "a", "value": "1"}},
	})

	err := exec.Execute(context.Background(), dbfixture.OperationDelete, ds)
	assert.ErrorIs(t, err, dbfixture.ErrNoPrimaryKey)
}

func TestExecuteUpdate(t *testing.T) {
	db := newTestDB(t)
	exec := New(db, dbfixture.DialectSQLite)

	_, err := db.Exec("INSERT INTO users (id, name, email) VALUES (1, 'alice', 'old@example.com')")
	require.NoError(t, err)

	ds := usersDataset(dataset.Row{"id": int64(1), "name": "alice", "email": "new@example.com"})
	require.NoError(t, exec.Execute(context.Background(), dbfixture.OperationUpdate, ds))

	var email string
	require.NoError(t, db.QueryRow("SELECT email FROM users WHERE id = 1").Scan(&email))
	assert.Equal(t, "new@example.com", email)
}

func TestExecuteRefresh(t *testing.T) {
	db := newTestDB(t)
	exec := New(db, dbfixture.DialectSQLite)

	_, err := db.Exec("INSERT INTO users (id, name, email) VALUES (1, 'alice', 'old@example.com')")
	require.NoError(t, err)

	ds := usersDataset(
		dataset.Row{"id": int64(1), "name": "alice", "email": "fresh@example.com"},
		dataset.Row{"id": int64(2), "name": "bob", "email": "bob@example.com"},
	)
	require.NoError(t, exec.Execute(context.Background(), dbfixture.OperationRefresh, ds))

	assert.Equal(t, 2, countRows(t, db, "users"))

	var email string
	require.NoError(t, db.QueryRow("SELECT email FROM users WHERE id = 1").Scan(&email))
	assert.Equal(t, "fresh@example.com", email)
}

func TestExecuteTruncate(t *testing.T) {
	db := newTestDB(t)
	exec := New(db, dbfixture.DialectSQLite)

	_, err := db.Exec("INSERT INTO users (id, name) VALUES (1, 'alice')")
	require.NoError(t, err)

	ds := usersDataset()
	require.NoError(t, exec.Execute(context.Background(), dbfixture.OperationTruncate, ds))
	assert.Equal(t, 0, countRows(t, db, "users"))
}

func TestExecuteNoneIsNoOp(t *testing.T) {
	db := newTestDB(t)
	exec := New(db, dbfixture.DialectSQLite)

	_, err := db.Exec("INSERT INTO users (id, name) VALUES (1, 'alice')")
	require.NoError(t, err)

	require.NoError(t, exec.Execute(context.Background(), dbfixture.OperationNone, usersDataset()))
	assert.Equal(t, 1, countRows(t, db, "users"))
}

func TestExecuteUnsupportedOperation(t *testing.T) {
	db := newTestDB(t)
	exec := New(db, dbfixture.DialectSQLite)

	err := exec.Execute(context.Background(), dbfixture.Operation("upsert"), usersDataset())
	assert.ErrorIs(t, err, dbfixture.ErrUnsupportedOperation)
}

func TestSetTableInfoOverridesIntrospection(t *testing.T) {
	db := newTestDB(t)
	exec := New(db, dbfixture.DialectSQLite)

	exec.SetTableInfo(map[string]*TableInfo{
		"settings": {Name: "settings", PrimaryKeys: []string{"key"}},
	})

	_, err := db.Exec("INSERT INTO settings (key, value) VALUES ('a', '1'), ('b', '2')")
	require.NoError(t, err)

	ds := dataset.New()
	ds.AddTable(&dataset.Table{
		Name:    "settings",
		Columns: []string{"key", "value"},
		Rows:    []dataset.Row{{"key": "a", "value": "1"}},
	})

	require.NoError(t, exec.Execute(context.Background(), dbfixture.OperationDelete, ds))
	assert.Equal(t, 1, countRows(t, db, "settings"))
}

func TestFetchTableOrdersByPrimaryKey(t *testing.T) {
	db := newTestDB(t)
	exec := New(db, dbfixture.DialectSQLite)

	_, err := db.Exec("INSERT INTO users (id, name) VALUES (3, 'carol'), (1, 'alice'), (2, 'bob')")
	require.NoError(t, err)

	table, err := exec.FetchTable(context.Background(), "users")
	require.NoError(t, err)

	require.Len(t, table.Rows, 3)
	assert.Equal(t, int64(1), table.Rows[0]["id"])
	assert.Equal(t, int64(2), table.Rows[1]["id"])
	assert.Equal(t, int64(3), table.Rows[2]["id"])
	assert.Equal(t, "alice", table.Rows[0]["name"])
}

func TestFetchQueryTable(t *testing.T) {
	db := newTestDB(t)
	exec := New(db, dbfixture.DialectSQLite)

	_, err := db.Exec("INSERT INTO users (id, name) VALUES (1, 'alice'), (2, 'bob')")
	require.NoError(t, err)

	table, err := exec.FetchQueryTable(context.Background(), "users",
		"SELECT name FROM users WHERE id = 2")
	require.NoError(t, err)

	assert.Equal(t, []string{"name"}, table.Columns)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "bob", table.Rows[0]["name"])
}

func TestFetchDataSet(t *testing.T) {
	db := newTestDB(t)
	exec := New(db, dbfixture.DialectSQLite)

	_, err := db.Exec("INSERT INTO users (id, name) VALUES (1, 'alice')")
	require.NoError(t, err)

	ds, err := exec.FetchDataSet(context.Background())
	require.NoError(t, err)

	names := ds.TableNames()
	assert.Contains(t, names, "users")
	assert.Contains(t, names, "orders")
	assert.Contains(t, names, "settings")

	users, ok := ds.Table("users")
	require.True(t, ok)
	require.Len(t, users.Rows, 1)
	assert.Equal(t, "alice", users.Rows[0]["name"])
}
