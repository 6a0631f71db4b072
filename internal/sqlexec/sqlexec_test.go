package sqlexec

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sharedMemory returns a DSN for an in-memory database that lives as long as the
// returned keeper connection stays open.
func sharedMemory(t *testing.T, name string) string {
	t.Helper()
	dsn := "file:" + name + "?mode=memory&cache=shared"
	keeper, err := sql.Open(DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, keeper.Ping())
	t.Cleanup(func() { _ = keeper.Close() })
	return dsn
}

func run(t *testing.T, db *DB, query string) Result {
	t.Helper()
	ctx := context.Background()
	s, err := db.Open(ctx)
	require.NoError(t, err)
	defer s.Close()
	res, err := s.Run(ctx, query)
	require.NoError(t, err)
	return res
}

func TestRunSelectLiteral(t *testing.T) {
	db, err := NewDB(Options{Driver: DriverSQLite, DSN: sharedMemory(t, "literal")})
	require.NoError(t, err)

	res := run(t, db, "SELECT 1 AS x")
	assert.Equal(t, KindRows, res.Kind)
	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"x":1}]`, string(out))
}

func TestRunMutationReportsAffectedRows(t *testing.T) {
	db, err := NewDB(Options{Driver: DriverSQLite, DSN: sharedMemory(t, "mutation")})
	require.NoError(t, err)

	run(t, db, "CREATE TABLE votes (id INTEGER PRIMARY KEY, voter TEXT, choice TEXT)")
	res := run(t, db, "INSERT INTO votes (voter, choice) VALUES ('ana', 'a'), ('bo', 'b'), ('cy', 'a')")
	assert.Equal(t, KindAffected, res.Kind)
	assert.EqualValues(t, 3, res.Affected)

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"affectedRows":3}`, string(out))

	res = run(t, db, "UPDATE votes SET choice = 'c' WHERE choice = 'a'")
	assert.EqualValues(t, 2, res.Affected)

	res = run(t, db, "SELECT voter, choice FROM votes ORDER BY id")
	require.Equal(t, KindRows, res.Kind)
	assert.Equal(t, []Record{
		{"voter": "ana", "choice": "c"},
		{"voter": "bo", "choice": "b"},
		{"voter": "cy", "choice": "c"},
	}, res.Records)
}

func TestRunEmptySelectIsEmptyArray(t *testing.T) {
	db, err := NewDB(Options{Driver: DriverSQLite, DSN: sharedMemory(t, "empty")})
	require.NoError(t, err)

	run(t, db, "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)")
	res := run(t, db, "SELECT id, body FROM notes")
	assert.Equal(t, KindRows, res.Kind)
	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}

func TestRunStatementErrorIsReturned(t *testing.T) {
	db, err := NewDB(Options{Driver: DriverSQLite, DSN: sharedMemory(t, "broken")})
	require.NoError(t, err)

	s, err := db.Open(context.Background())
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Run(context.Background(), "SELECT * FROM missing_table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing_table")
}

func TestRunMutationErrorIsReturned(t *testing.T) {
	db, err := NewDB(Options{Driver: DriverSQLite, DSN: sharedMemory(t, "unique")})
	require.NoError(t, err)

	run(t, db, "CREATE TABLE badges (code TEXT UNIQUE)")
	run(t, db, "INSERT INTO badges (code) VALUES ('gold')")

	s, err := db.Open(context.Background())
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Run(context.Background(), "INSERT INTO badges (code) VALUES ('gold')")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE")

	res := run(t, db, "SELECT COUNT(*) AS n FROM badges")
	assert.Equal(t, []Record{{"n": int64(1)}}, res.Records)
}

func TestRunBlobIsBase64(t *testing.T) {
	db, err := NewDB(Options{Driver: DriverSQLite, DSN: sharedMemory(t, "blob")})
	require.NoError(t, err)

	run(t, db, "CREATE TABLE files (data BLOB)")
	run(t, db, "INSERT INTO files (data) VALUES (X'00FF10')")
	res := run(t, db, "SELECT data FROM files")
	assert.Equal(t, []Record{{"data": "AP8Q"}}, res.Records)
}

func TestOpenUnreachableMySQL(t *testing.T) {
	db, err := NewDB(Options{Driver: DriverMySQL, Host: "127.0.0.1", Port: 1, User: "relay", Database: "portal"})
	require.NoError(t, err)
	_, err = db.Open(context.Background())
	require.Error(t, err)
}

func TestDataSource(t *testing.T) {
	dsn, err := Options{Driver: DriverMySQL, Host: "db.internal", User: "relay", Password: "pw", Database: "portal"}.DataSource()
	require.NoError(t, err)
	assert.Equal(t, "relay:pw@tcp(db.internal:3306)/portal?parseTime=true", dsn)

	dsn, err = Options{Driver: DriverMySQL, DSN: "custom"}.DataSource()
	require.NoError(t, err)
	assert.Equal(t, "custom", dsn)

	_, err = Options{Driver: DriverSQLite}.DataSource()
	assert.Error(t, err)

	_, err = Options{Driver: "oracle", Host: "x"}.DataSource()
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, int64(42), normalize([]byte("42"), "BIGINT"))
	assert.Equal(t, uint64(7), normalize([]byte("7"), "UNSIGNED INT"))
	assert.Equal(t, 3.5, normalize([]byte("3.5"), "DECIMAL"))
	assert.Equal(t, "hello", normalize([]byte("hello"), "VARCHAR"))
	assert.Equal(t, "2024-01-02", normalize([]byte("2024-01-02"), "DATE"))
	assert.Equal(t, "AP8Q", normalize([]byte{0x00, 0xff, 0x10}, "VARBINARY"))
	assert.Equal(t, "aGk=", normalize([]byte("hi"), "BLOB"))
	assert.Equal(t, "AQ==", normalize([]byte{0x01}, "BIT"))
	assert.Equal(t, "/w==", normalize([]byte{0xff}, "MEDIUMBLOB"))
	assert.Nil(t, normalize(nil, "VARCHAR"))
	assert.Equal(t, int64(9), normalize(int64(9), "INTEGER"))
}
