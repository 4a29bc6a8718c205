package remote_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"nocap-editor/auth"
	"nocap-editor/core"
	"nocap-editor/document"
	"nocap-editor/handlers/api/projects"
	"nocap-editor/history"
	"nocap-editor/middleware"
	"nocap-editor/persistence"
	"nocap-editor/session"
	"nocap-editor/stores/memory"
	"nocap-editor/stores/remote"
	"nocap-editor/surface/headless"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// server runs the project API over an in-memory backend.
func server(t *testing.T) (*httptest.Server, core.ProjectStore) {
	t.Helper()
	auth.Init("remote-secret")
	backend := memory.NewStore()

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AuthJWT)
		r.Mount("/projects", projects.Routes(backend))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, backend
}

func client(t *testing.T, baseURL, subject string) core.ProjectStore {
	t.Helper()
	token, err := auth.CreateJWT(&core.User{Subject: subject})
	require.NoError(t, err)
	store, err := remote.NewStore(baseURL, remote.WithToken(token))
	require.NoError(t, err)
	return store
}

func TestNewStore_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "/relative"} {
		_, err := remote.NewStore(u)
		assert.Error(t, err, u)
	}
}

func TestRemoteStore_Lifecycle(t *testing.T) {
	srv, _ := server(t)
	store := client(t, srv.URL, "user-1")
	ctx := context.Background()

	p, err := store.CreateProject(ctx, "user-1", "Poster")
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, string(document.EmptySnapshot()), p.Content)

	content := string(document.EmptySnapshot())
	name := "Flyer"
	updated, err := store.UpdateProject(ctx, p.ID, core.ProjectUpdate{Name: &name, Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "Flyer", updated.Name)

	list, err := store.ListProjects(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Content)

	require.NoError(t, store.DeleteProject(ctx, p.ID))
	_, err = store.FetchProject(ctx, p.ID)
	assert.ErrorIs(t, err, core.ErrProjectNotFound)
	assert.ErrorIs(t, store.DeleteProject(ctx, p.ID), core.ErrProjectNotFound)
}

func TestRemoteStore_ForeignProjectIsNotFound(t *testing.T) {
	srv, backend := server(t)
	theirs, err := backend.CreateProject(context.Background(), "user-2", "Theirs")
	require.NoError(t, err)

	store := client(t, srv.URL, "user-1")
	_, err = store.FetchProject(context.Background(), theirs.ID)
	assert.ErrorIs(t, err, core.ErrProjectNotFound)
}

func TestRemoteStore_Unauthorized(t *testing.T) {
	srv, _ := server(t)
	store, err := remote.NewStore(srv.URL, remote.WithToken("forged"))
	require.NoError(t, err)

	_, err = store.ListProjects(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestRemoteStore_RejectedContent(t *testing.T) {
	srv, backend := server(t)
	p, err := backend.CreateProject(context.Background(), "user-1", "Poster")
	require.NoError(t, err)

	store := client(t, srv.URL, "user-1")
	bad := "{broken"
	_, err = store.UpdateProject(context.Background(), p.ID, core.ProjectUpdate{Content: &bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.NotErrorIs(t, err, core.ErrProjectNotFound)
}

func TestRemoteStore_ContextCancelled(t *testing.T) {
	srv, _ := server(t)
	store := client(t, srv.URL, "user-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.ListProjects(ctx, "user-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_SyncsThroughRemoteStore(t *testing.T) {
	srv, backend := server(t)
	p, err := backend.CreateProject(context.Background(), "user-1", "Poster")
	require.NoError(t, err)

	store := client(t, srv.URL, "user-1")
	bridge := persistence.New(memory.NewKeyValueStore(), store, persistence.WithDebounceWindow(20*time.Millisecond))
	t.Cleanup(bridge.Close)
	s := session.New(history.New(), bridge, store)

	ctx := context.Background()
	require.NoError(t, s.AttachSurface(ctx, headless.New()))
	require.NoError(t, s.LoadFromProject(ctx, p.ID))
	require.NoError(t, s.Add(document.NewRect()))

	assert.Eventually(t, func() bool {
		stored, err := backend.FetchProject(context.Background(), p.ID)
		if err != nil {
			return false
		}
		doc, err := document.Deserialize(document.Snapshot(stored.Content))
		return err == nil && len(doc.Objects) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
