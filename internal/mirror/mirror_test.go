package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jobops/jobops/internal/remote"
	"github.com/jobops/jobops/internal/storage"
	"github.com/jobops/jobops/internal/store"
	"github.com/jobops/jobops/internal/syncer"
	"github.com/jobops/jobops/internal/types"
)

func setupServer(t *testing.T) (*httptest.Server, *DB) {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	srv := httptest.NewServer(NewHandler(db, zaptest.NewLogger(t)))
	t.Cleanup(srv.Close)
	return srv, db
}

func post(t *testing.T, url, body string) (int, remote.Response) {
	t.Helper()
	resp, err := http.Post(url, remote.PostContentType, strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var env remote.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func job(id, company string) types.JobApplication {
	return types.JobApplication{
		ID: id, Company: company, Role: "Engineer", Status: types.StatusApplied,
		DateApplied: "2024-01-01", LastUpdated: "2024-01-01",
		CustomFields: map[string]string{"ref": "Kim"},
	}
}

func TestClientRoundTrip(t *testing.T) {
	srv, _ := setupServer(t)
	ctx := context.Background()
	c, err := remote.New(srv.URL)
	require.NoError(t, err)

	require.NoError(t, c.Create(ctx, job("a", "Acme")))
	require.NoError(t, c.Create(ctx, job("b", "Globex")))

	updated := job("a", "Acme")
	updated.Status = types.StatusInterview
	updated.Notes = "Phone screen"
	require.NoError(t, c.Update(ctx, updated))

	jobs, err := c.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "b", jobs[0].ID, "rows are returned newest first")
	assert.Equal(t, "a", jobs[1].ID)
	assert.Equal(t, types.StatusInterview, jobs[1].Status)
	assert.Equal(t, "Phone screen", jobs[1].Notes)
	assert.Equal(t, map[string]string{"ref": "Kim"}, jobs[1].CustomFields)

	require.NoError(t, c.Delete(ctx, "a"))
	jobs, err = c.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Globex", jobs[0].Company)
}

func TestClientSeesErrors(t *testing.T) {
	srv, _ := setupServer(t)
	ctx := context.Background()
	c, err := remote.New(srv.URL)
	require.NoError(t, err)

	require.NoError(t, c.Create(ctx, job("a", "Acme")))

	var se *remote.StatusError
	err = c.Create(ctx, job("a", "Acme"))
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "ID already exists", se.Message)

	err = c.Delete(ctx, "missing")
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Job ID not found", se.Message)
}

func TestPartialUpdate(t *testing.T) {
	srv, db := setupServer(t)
	ctx := context.Background()
	require.NoError(t, db.Insert(ctx, Row{"id": "a", "company": "Acme", "role": "Engineer", "status": "Applied", "notes": "keep"}))

	code, env := post(t, srv.URL, `{"action":"update","data":{"id":"a","status":"Offer","salary":null,"bogus":"x"}}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", env.Status)

	rows, err := db.All(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Offer", rows[0]["status"])
	assert.Equal(t, "keep", rows[0]["notes"])
	assert.Equal(t, "Acme", rows[0]["company"])
	assert.Equal(t, "", rows[0]["salary"])
	_, ok := rows[0]["bogus"]
	assert.False(t, ok)
}

func TestPostErrors(t *testing.T) {
	srv, _ := setupServer(t)

	tests := []struct {
		name string
		body string
		code int
		msg  string
	}{
		{"no data", `{"action":"create"}`, http.StatusBadRequest, "Missing payload or ID"},
		{"no id", `{"action":"create","data":{"company":"Acme"}}`, http.StatusBadRequest, "Missing payload or ID"},
		{"unknown action", `{"action":"upsert","data":{"id":"a"}}`, http.StatusBadRequest, "Invalid action"},
		{"update unknown", `{"action":"update","data":{"id":"zzz"}}`, http.StatusNotFound, "Job ID not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := post(t, srv.URL, tt.body)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, tt.msg, env.Message)
		})
	}

	code, env := post(t, srv.URL, `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "error", env.Status)
}

func TestGetEmpty(t *testing.T) {
	srv, _ := setupServer(t)
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	var rows []Row
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestMemoryDB(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.Insert(ctx, Row{"id": "a"}))
	assert.ErrorIs(t, db.Insert(ctx, Row{"id": "a"}), ErrExists)
	assert.ErrorIs(t, db.Update(ctx, "b", Row{"company": "x"}), ErrNotFound)
	require.NoError(t, db.Delete(ctx, "a"))
	assert.ErrorIs(t, db.Delete(ctx, "a"), ErrNotFound)
}

func TestServerStartStop(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	s := NewServer(db, 0, zaptest.NewLogger(t))
	require.NoError(t, s.Start())

	_, port, err := net.SplitHostPort(s.Addr())
	require.NoError(t, err)
	resp, err := http.Get("http://127.0.0.1:" + port)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop())
}

func TestCustomFieldsUpdateReplacesMap(t *testing.T) {
	srv, db := setupServer(t)
	ctx := context.Background()
	require.NoError(t, db.Insert(ctx, Row{"id": "a", "company": "Acme", "role": "r", "status": "Applied"}))

	code, _ := post(t, srv.URL, `{"action":"update","data":{"id":"a","customFields":{"ref":"Sam","team":"Core"}}}`)
	require.Equal(t, http.StatusOK, code)

	c, err := remote.New(srv.URL)
	require.NoError(t, err)
	jobs, err := c.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, map[string]string{"ref": "Sam", "team": "Core"}, jobs[0].CustomFields)
}

func TestSessionReloadKeepsOrderAndCustomFields(t *testing.T) {
	srv, _ := setupServer(t)
	ctx := context.Background()

	session := func() (*store.Store, *syncer.Syncer) {
		c, err := remote.New(srv.URL)
		require.NoError(t, err)
		sy := syncer.New(storage.NewMemory(), syncer.WithMirror(c))
		t.Cleanup(sy.Close)
		st := store.New(store.WithListener(sy))
		src, err := sy.Load(ctx, st)
		require.NoError(t, err)
		require.Equal(t, syncer.SourceRemote, src)
		return st, sy
	}

	first, sy := session()
	wait := func() {
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		require.NoError(t, sy.Wait(wctx))
	}
	_, err := first.Create(types.NewJob{Company: "First", Role: "r", CustomFields: map[string]string{"ref": "Kim"}})
	require.NoError(t, err)
	wait()
	_, err = first.Create(types.NewJob{Company: "Second", Role: "r"})
	require.NoError(t, err)
	wait()

	second, _ := session()
	assert.Equal(t, first.Jobs(), second.Jobs())
	require.Equal(t, 2, second.Len())
	assert.Equal(t, "Second", second.Jobs()[0].Company)
	assert.Equal(t, map[string]string{"ref": "Kim"}, second.Jobs()[1].CustomFields)
}

func TestOpen_AddsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	conn, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	_, err = conn.Exec(`CREATE TABLE jobs (seq INTEGER PRIMARY KEY AUTOINCREMENT, "id" TEXT NOT NULL DEFAULT '', UNIQUE("id"))`)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO jobs ("id") VALUES ('old')`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.All(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "old", rows[0]["id"])
	assert.Equal(t, "", rows[0][CustomFieldsColumn])
	assert.Equal(t, json.RawMessage("{}"), wireRow(rows[0])[CustomFieldsColumn])
}
