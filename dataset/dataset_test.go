package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shibukawa/dbfixture"
)

func TestParseYAML_PreservesTableAndColumnOrder(t *testing.T) {
	ds, err := ParseYAML([]byte(`
users:
  - id: 1
    name: Alice
    email: alice@example.com
  - id: 2
    name: Bob
    email: bob@example.com
posts:
  - id: 10
    user_id: 1
    title: First post
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"users", "posts"}, ds.TableNames())

	users, ok := ds.Table("users")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name", "email"}, users.Columns)
	require.Len(t, users.Rows, 2)
	assert.Equal(t, int64(1), users.Rows[0]["id"])
	assert.Equal(t, "Alice", users.Rows[0]["name"])
}

func TestParseYAML_CollectsColumnsAcrossRows(t *testing.T) {
	ds, err := ParseYAML([]byte(`
users:
  - id: 1
    name: Alice
  - id: 2
    name: Bob
    email: bob@example.com
`))
	require.NoError(t, err)

	users, ok := ds.Table("users")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name", "email"}, users.Columns)
	assert.Nil(t, users.Rows[0]["email"])
}

func TestParseYAML_EmptyTable(t *testing.T) {
	ds, err := ParseYAML([]byte("users:\n"))
	require.NoError(t, err)

	users, ok := ds.Table("users")
	require.True(t, ok)
	assert.Empty(t, users.Rows)
}

func TestParseYAML_RejectsNonMappingRoot(t *testing.T) {
	_, err := ParseYAML([]byte("- just\n- a\n- list\n"))
	assert.Error(t, err)
}

func TestParseCSV(t *testing.T) {
	table, err := ParseCSV("users", []byte("id,name,email\n1,Alice,alice@example.com\n2,Bob,\n"))
	require.NoError(t, err)

	assert.Equal(t, "users", table.Name)
	assert.Equal(t, []string{"id", "name", "email"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Alice", table.Rows[0]["name"])
	assert.Nil(t, table.Rows[1]["email"])
}

func TestParseCSV_RequiresHeader(t *testing.T) {
	_, err := ParseCSV("users", []byte(""))
	assert.ErrorIs(t, err, dbfixture.ErrInvalidCSVFormat)
}

func TestCompose_FirstTableWins(t *testing.T) {
	first, err := ParseYAML([]byte("users:\n  - id: 1\n    name: Alice\n"))
	require.NoError(t, err)

	second, err := ParseYAML([]byte("users:\n  - id: 2\n    name: Bob\nposts:\n  - id: 10\n"))
	require.NoError(t, err)

	composed := Compose(false, first, second)

	assert.Equal(t, []string{"users", "posts"}, composed.TableNames())

	users, _ := composed.Table("users")
	require.Len(t, users.Rows, 1)
	assert.Equal(t, "Alice", users.Rows[0]["name"])
}

func TestCompose_CombineRowsAppends(t *testing.T) {
	first, err := ParseYAML([]byte("users:\n  - id: 1\n    name: Alice\n"))
	require.NoError(t, err)

	second, err := ParseYAML([]byte("users:\n  - id: 2\n    name: Bob\n"))
	require.NoError(t, err)

	composed := Compose(true, first, second)

	users, _ := composed.Table("users")
	require.Len(t, users.Rows, 2)
	assert.Equal(t, "Bob", users.Rows[1]["name"])
}

func TestCompose_DoesNotMutateSources(t *testing.T) {
	first, err := ParseYAML([]byte("users:\n  - id: 1\n"))
	require.NoError(t, err)

	second, err := ParseYAML([]byte("users:\n  - id: 2\n"))
	require.NoError(t, err)

	Compose(true, first, second)

	users, _ := first.Table("users")
	assert.Len(t, users.Rows, 1)
}

func TestFileLoader_ResolvesClassScopedPathFirst(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "UserRepositoryTest"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.yaml"), []byte("users:\n  - id: 1\n    name: shared\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "UserRepositoryTest", "users.yaml"), []byte("users:\n  - id: 1\n    name: scoped\n"), 0o644))

	loader := NewFileLoader(dir)

	scoped, err := loader.LoadDataset("UserRepositoryTest", "users.yaml")
	require.NoError(t, err)

	users, _ := scoped.Table("users")
	assert.Equal(t, "scoped", users.Rows[0]["name"])

	shared, err := loader.LoadDataset("OtherTest", "users.yaml")
	require.NoError(t, err)

	users, _ = shared.Table("users")
	assert.Equal(t, "shared", users.Rows[0]["name"])
}

func TestFileLoader_MissingFile(t *testing.T) {
	loader := NewFileLoader(t.TempDir())

	_, err := loader.LoadDataset("", "missing.yaml")
	assert.ErrorIs(t, err, dbfixture.ErrDatasetLoad)
}

func TestFileLoader_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.xml"), []byte("<dataset/>"), 0o644))

	loader := NewFileLoader(dir)

	_, err := loader.LoadDataset("", "users.xml")
	assert.ErrorIs(t, err, dbfixture.ErrDatasetLoad)
}

func TestFileLoader_CSV(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.csv"), []byte("id,name\n1,Alice\n"), 0o644))

	loader := NewFileLoader(dir)

	ds, err := loader.LoadDataset("", "users.csv")
	require.NoError(t, err)

	users, ok := ds.Table("users")
	require.True(t, ok)
	assert.Equal(t, "Alice", users.Rows[0]["name"])
}

func TestTableProject(t *testing.T) {
	table := &Table{
		Name:    "users",
		Columns: []string{"id", "name", "email"},
		Rows: []Row{
			{"id": int64(1), "name": "Alice", "email": "alice@example.com"},
		},
	}

	projected := table.Project(map[string]bool{"id": true, "email": true})

	assert.Equal(t, []string{"id", "email"}, projected.Columns)
	assert.Equal(t, Row{"id": int64(1), "email": "alice@example.com"}, projected.Rows[0])
}

func TestModifiers(t *testing.T) {
	ds, err := ParseYAML([]byte("users:\n  - id: 1\n    created_at: '[NOW]'\n"))
	require.NoError(t, err)

	chain := Modifiers{ReplaceValue("[NOW]", "2026-08-30 00:00:00")}

	modified := chain.Modify(ds)

	users, _ := modified.Table("users")
	assert.Equal(t, "2026-08-30 00:00:00", users.Rows[0]["created_at"])

	// the source dataset stays untouched
	original, _ := ds.Table("users")
	assert.Equal(t, "[NOW]", original.Rows[0]["created_at"])
}

func TestModifiers_EmptyChainIsIdentity(t *testing.T) {
	ds, err := ParseYAML([]byte("users:\n  - id: 1\n"))
	require.NoError(t, err)

	assert.Same(t, ds, Modifiers(nil).Modify(ds))
}
