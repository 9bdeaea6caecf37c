package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "expirywatch/pkg/logx"
)

const owner = "00000000-0000-0000-0000-000000000001"

func TestOpenDisabledAndUnknown(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{}, logx.Nop())
	require.NoError(t, err)
	assert.Nil(t, st)

	_, err = Open(Config{Driver: "mongo"}, logx.Nop())
	assert.ErrorContains(t, err, "unknown storage driver")

	_, err = Open(Config{Driver: "postgres"}, logx.Nop())
	assert.ErrorContains(t, err, "dsn is required")

	_, err = Open(Config{Driver: "file"}, logx.Nop())
	assert.ErrorContains(t, err, "path is required")
}

func TestParseDate(t *testing.T) {
	t.Parallel()
	d, err := parseDate("2024-01-12")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), d)

	d, err = parseDate("2024-01-12T23:30:00+08:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), d)

	_, err = parseDate("12/01/2024")
	assert.Error(t, err)
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
}

func TestFileStoreItemsScopedAndSorted(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	three := 3
	writeJSON(t, filepath.Join(dir, "inventory.items.json"), []itemRecord{
		{Owner: owner, Name: "Bread", ExpiryDate: "2024-01-12", Category: "Bakery"},
		{Owner: "someone-else", Name: "Caviar", ExpiryDate: "2024-01-09"},
		{Owner: owner, Name: "Milk", ExpiryDate: "2024-01-08", ReminderThresholdDays: &three},
		{Owner: owner, Name: "Butter", ExpiryDate: "2024-01-12"},
	})

	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "inventory.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	items, err := st.ListItems(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Milk", items[0].Name)
	require.NotNil(t, items[0].ReminderThresholdDays)
	assert.Equal(t, 3, *items[0].ReminderThresholdDays)
	// equal dates keep file order
	assert.Equal(t, "Bread", items[1].Name)
	assert.Equal(t, "Bakery", items[1].CategoryName)
	assert.Equal(t, "Butter", items[2].Name)

	_, err = st.ListItems(context.Background(), " ")
	assert.ErrorIs(t, err, ErrNoOwnerScope)
}

func TestFileStoreMissingFilesAreEmpty(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "x.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	items, err := st.ListItems(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, items)
	accounts, err := st.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestFileStoreBadDateFailsRead(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "inv.items.json"), []itemRecord{{Owner: owner, Name: "Jam", ExpiryDate: "soon"}})
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "inv.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = st.ListItems(context.Background(), owner)
	assert.ErrorContains(t, err, "Jam")
}

func TestFileStoreAccountsAndRuns(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "inv.accounts.json"), []accountRecord{{Email: "a@example.com"}, {Email: ""}, {Email: "b@example.com"}})
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "inv.db")}, logx.Nop())
	require.NoError(t, err)

	accounts, err := st.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, "a@example.com", accounts[0].Email)
	assert.Equal(t, "", accounts[1].Email)

	at := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	require.NoError(t, st.AppendRun(context.Background(), RunRecord{ID: "r1", Mode: "reminder", StartedAt: at, FinishedAt: at, Due: 2, Sent: 1}))
	require.NoError(t, st.AppendRun(context.Background(), RunRecord{ID: "r2", Mode: "test", StartedAt: at, FinishedAt: at, Error: "boom"}))
	require.NoError(t, st.Close())

	f, err := os.Open(filepath.Join(dir, "inv.runs.jsonl"))
	require.NoError(t, err)
	defer f.Close()
	var got []RunRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r RunRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		got = append(got, r)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "r1", got[0].ID)
	assert.Equal(t, 2, got[0].Due)
	assert.Equal(t, "boom", got[1].Error)

	assert.Error(t, st.AppendRun(context.Background(), RunRecord{ID: "r3"}))
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "inv.sqlite")
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	db := st.(*sqliteStore).db
	ctx := context.Background()
	_, err = db.ExecContext(ctx, `INSERT INTO categories(id, name) VALUES (1, 'Dairy')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO items(owner, name, expiry_date, reminder_threshold_days, category_id) VALUES
		(?, 'Yogurt', '2024-01-13', NULL, 1),
		(?, 'Milk', '2024-01-08', 5, 1),
		(?, 'Rice', '2024-01-09', NULL, NULL),
		('other', 'Caviar', '2024-01-01', NULL, NULL)`, owner, owner, owner)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO accounts(email) VALUES ('first@example.com'), (NULL), ('second@example.com')`)
	require.NoError(t, err)

	items, err := st.ListItems(ctx, owner)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"Milk", "Rice", "Yogurt"}, []string{items[0].Name, items[1].Name, items[2].Name})
	require.NotNil(t, items[0].ReminderThresholdDays)
	assert.Equal(t, 5, *items[0].ReminderThresholdDays)
	assert.Equal(t, "Dairy", items[0].CategoryName)
	assert.Nil(t, items[1].ReminderThresholdDays)
	assert.Equal(t, "", items[1].CategoryName)
	assert.Equal(t, time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC), items[2].ExpiryDate)

	accounts, err := st.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, "first@example.com", accounts[0].Email)
	assert.Equal(t, "", accounts[1].Email)

	at := time.Now().UTC()
	require.NoError(t, st.AppendRun(ctx, RunRecord{ID: "run-1", Mode: "reminder", StartedAt: at, FinishedAt: at, Due: 3, Expired: 2}))
	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE err IS NULL`).Scan(&n))
	assert.Equal(t, 1, n)

	_, err = st.ListItems(ctx, "")
	assert.ErrorIs(t, err, ErrNoOwnerScope)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "inv.sqlite")
	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)
	_, err = st.(*sqliteStore).db.Exec(`INSERT INTO accounts(email) VALUES ('keep@example.com')`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	accounts, err := st.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
}
