package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nocap-editor/core"
	"nocap-editor/document"
	"nocap-editor/history"
	"nocap-editor/layers"
	"nocap-editor/persistence"
	"nocap-editor/session"
	"nocap-editor/stores/memory"
	"nocap-editor/surface/headless"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts remote content writes.
type countingStore struct {
	core.ProjectStore
	writes atomic.Int32
}

func (c *countingStore) UpdateProject(ctx context.Context, id string, upd core.ProjectUpdate) (*core.Project, error) {
	if upd.Content != nil {
		c.writes.Add(1)
	}
	return c.ProjectStore.UpdateProject(ctx, id, upd)
}

func attached(t *testing.T, sess *session.Session, opts ...headless.Option) *headless.Surface {
	t.Helper()
	surf := headless.New(opts...)
	require.NoError(t, sess.AttachSurface(context.Background(), surf))
	return surf
}

func labels(v layers.View) []string {
	out := make([]string, 0, v.Len())
	for _, e := range v.Entries {
		out = append(out, e.Label)
	}
	return out
}

func serialize(t *testing.T, doc *document.Document) document.Snapshot {
	t.Helper()
	s, err := document.Serialize(doc)
	require.NoError(t, err)
	return s
}

func TestAttachSurface_CommitsInitialDocument(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	surf := attached(t, sess)

	entries, cursor := sess.History()
	require.Len(t, entries, 1)
	assert.Equal(t, 0, cursor)
	assert.Equal(t, serialize(t, surf.Document()), entries[0])
	assert.True(t, sess.View().Empty())
	assert.Equal(t, 1, surf.Subscribers())
}

func TestAttachSurface_LoadsCurrentEntry(t *testing.T) {
	doc := document.New()
	doc.Add(document.NewRect())
	ledger := history.New()
	ledger.Record(serialize(t, doc))

	sess := session.New(ledger, nil, nil)
	surf := attached(t, sess)

	assert.Equal(t, 1, surf.Loads())
	assert.Len(t, surf.Document().Objects, 1)
	assert.Equal(t, 1, ledger.Len())
	assert.Equal(t, []string{"Rect"}, labels(sess.View()))
}

func TestAttachSurface_CorruptCurrentEntryFallsBackToEmpty(t *testing.T) {
	ledger := history.New()
	ledger.Record("{broken")

	sess := session.New(ledger, nil, nil)
	surf := attached(t, sess)

	assert.Empty(t, surf.Document().Objects)
	assert.Equal(t, 1, ledger.Len())
	assert.Equal(t, 0, ledger.Cursor())
}

func TestUndoRedo_RoundTrip(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	surf := attached(t, sess)
	ctx := context.Background()
	empty := serialize(t, surf.Document())

	require.NoError(t, sess.Add(document.NewRect()))
	require.NoError(t, sess.Add(document.NewCircle()))
	require.NoError(t, sess.Add(document.NewTextbox("Hello")))
	require.NoError(t, sess.SetBackground("#111827"))
	final := serialize(t, surf.Document())

	for i := 0; i < 4; i++ {
		require.True(t, sess.CanUndo())
		require.NoError(t, sess.Undo(ctx))
	}
	assert.False(t, sess.CanUndo())
	assert.Equal(t, empty, serialize(t, surf.Document()))

	for i := 0; i < 4; i++ {
		require.NoError(t, sess.Redo(ctx))
	}
	assert.False(t, sess.CanRedo())
	assert.Equal(t, final, serialize(t, surf.Document()))
}

func TestUndo_RectAndCircle(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	attached(t, sess)
	ctx := context.Background()

	require.NoError(t, sess.Add(document.NewRect()))
	require.NoError(t, sess.Add(document.NewCircle()))

	entries, _ := sess.History()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"Circle", "Rect"}, labels(sess.View()))

	require.NoError(t, sess.Undo(ctx))
	v := sess.View()
	require.Equal(t, 1, v.Len())
	assert.Equal(t, document.VariantRectangle, v.Entries[0].Object.Variant())
	assert.Equal(t, document.TagRect, v.Entries[0].Object.Tag)

	require.NoError(t, sess.Undo(ctx))
	assert.True(t, sess.View().Empty())

	require.NoError(t, sess.Undo(ctx), "undo at the first entry is a no-op")
	_, cursor := sess.History()
	assert.Equal(t, 0, cursor)
}

func TestCommit_IdenticalIsCoalesced(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	attached(t, sess)

	require.NoError(t, sess.Commit())
	require.NoError(t, sess.Commit())

	entries, _ := sess.History()
	assert.Len(t, entries, 1)
}

func TestCommit_TruncatesRedo(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	attached(t, sess)
	ctx := context.Background()

	require.NoError(t, sess.Add(document.NewRect()))
	require.NoError(t, sess.Add(document.NewCircle()))
	require.NoError(t, sess.Undo(ctx))
	require.True(t, sess.CanRedo())

	require.NoError(t, sess.Add(document.NewTriangle()))
	assert.False(t, sess.CanRedo())
	assert.Equal(t, []string{"Triangle", "Rect"}, labels(sess.View()))
}

func TestRaise_UndoRestoresOrder(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	surf := attached(t, sess)
	ctx := context.Background()

	bottom, top := document.NewRect(), document.NewCircle()
	require.NoError(t, sess.Add(bottom, top))
	require.Equal(t, []string{"Circle", "Rect"}, labels(sess.View()))

	moved, err := sess.Raise(bottom)
	require.NoError(t, err)
	require.True(t, moved)
	assert.Equal(t, []string{"Rect", "Circle"}, labels(sess.View()))

	moved, err = sess.Raise(bottom)
	require.NoError(t, err)
	assert.False(t, moved, "topmost object cannot be raised")

	require.NoError(t, sess.Undo(ctx))
	assert.Equal(t, []string{"Circle", "Rect"}, labels(sess.View()))
	assert.Equal(t, document.VariantRectangle, surf.Document().Objects[0].Variant())
}

func TestLower_UnknownObject(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	attached(t, sess)

	_, err := sess.Lower(document.NewRect())
	assert.ErrorIs(t, err, session.ErrUnknownObject)
}

func TestToggleVisibility_Commits(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	attached(t, sess)
	rect := document.NewRect()
	require.NoError(t, sess.Add(rect))

	require.NoError(t, sess.ToggleVisibility(rect))

	assert.False(t, rect.Visible)
	entries, _ := sess.History()
	assert.Len(t, entries, 3)
	assert.False(t, sess.View().Entries[0].Visible)
}

func TestPropertyEdits_ApplyToSelection(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	attached(t, sess)
	rect := document.NewRect()
	text := document.NewTextbox("Title")
	require.NoError(t, sess.Add(rect, text))
	require.NoError(t, sess.Select(rect, text))

	require.NoError(t, sess.SetFill("#ef4444"))
	require.NoError(t, sess.SetFontSize(48))
	require.NoError(t, sess.SetFontFamily("Georgia"))

	assert.Equal(t, "#ef4444", rect.Fill)
	assert.Equal(t, "#ef4444", text.Fill)
	assert.Equal(t, 48.0, text.FontSize)
	assert.Equal(t, "Georgia", text.FontFamily)
	assert.Zero(t, rect.FontSize)
	assert.Empty(t, rect.FontFamily)

	entries, _ := sess.History()
	assert.Len(t, entries, 5)
}

func TestRemoveSelected(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	surf := attached(t, sess)
	rect, circle := document.NewRect(), document.NewCircle()
	require.NoError(t, sess.Add(rect, circle))
	require.NoError(t, sess.Select(circle))

	require.NoError(t, sess.RemoveSelected())

	assert.Equal(t, []*document.Object{rect}, surf.Document().Objects)
	assert.Empty(t, surf.ActiveObjects())
	assert.Empty(t, sess.View().Selection)

	before, _ := sess.History()
	require.NoError(t, sess.RemoveSelected(), "nothing selected")
	after, _ := sess.History()
	assert.Equal(t, before, after)
}

func TestRemove(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	surf := attached(t, sess)
	rect := document.NewRect()
	require.NoError(t, sess.Add(rect))

	require.NoError(t, sess.Remove(rect))
	assert.Empty(t, surf.Document().Objects)
	assert.Empty(t, surf.ActiveObjects())
}

func TestAddImage_ScalesAndCenters(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	surf := attached(t, sess)

	img, err := sess.AddImage("https://cdn.example/photo.png", 800, 600)
	require.NoError(t, err)

	assert.Equal(t, 0.5, img.ScaleX)
	assert.Equal(t, 0.5, img.ScaleY)
	assert.Equal(t, 250.0, img.Left)
	assert.Equal(t, 100.0, img.Top)
	assert.Equal(t, []*document.Object{img}, surf.ActiveObjects())

	small, err := sess.AddImage("https://cdn.example/icon.png", 100, 50)
	require.NoError(t, err)
	assert.Equal(t, 1.0, small.ScaleX)
	assert.Equal(t, 400.0, small.Left)
	assert.Equal(t, "Image", sess.View().Entries[0].Label)
}

func TestClear(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	surf := attached(t, sess)
	require.NoError(t, sess.Add(document.NewRect()))
	require.NoError(t, sess.SetBackground("#000000"))

	require.NoError(t, sess.Clear())

	entries, cursor := sess.History()
	require.Len(t, entries, 1)
	assert.Equal(t, 0, cursor)
	assert.Empty(t, surf.Document().Objects)
	assert.Equal(t, document.DefaultBackground, surf.Document().Background)
	assert.False(t, sess.CanUndo())
}

func TestSurfaceEvents(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	surf := attached(t, sess)

	rect := document.NewRect()
	surf.Draw(rect)
	entries, _ := sess.History()
	assert.Len(t, entries, 2)

	surf.Modify(rect, func(o *document.Object) { o.Left = 10 })
	entries, _ = sess.History()
	assert.Len(t, entries, 3)

	surf.Pick(rect)
	assert.True(t, sess.View().Entries[0].Selected)

	surf.Pick()
	assert.False(t, sess.View().Entries[0].Selected)
	assert.Empty(t, sess.View().Selection)

	surf.Erase(rect)
	entries, _ = sess.History()
	assert.Len(t, entries, 4)
	assert.True(t, sess.View().Empty())
}

func TestWatch(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	attached(t, sess)

	var seen []layers.View
	cancel := sess.Watch(func(v layers.View) { seen = append(seen, v) })

	require.NoError(t, sess.Add(document.NewRect()))
	require.Len(t, seen, 1)
	assert.Equal(t, 1, seen[0].Len())

	cancel()
	require.NoError(t, sess.Add(document.NewCircle()))
	assert.Len(t, seen, 1)
}

func TestDetach(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	surf := attached(t, sess)
	require.NoError(t, sess.Add(document.NewRect()))

	sess.Detach()

	assert.Nil(t, sess.Surface())
	assert.True(t, sess.View().Empty())
	assert.Equal(t, 0, surf.Subscribers())
	assert.ErrorIs(t, sess.Add(document.NewCircle()), session.ErrNoSurface)
	assert.NoError(t, sess.Undo(context.Background()))

	before, _ := sess.History()
	surf.Draw(document.NewTriangle())
	after, _ := sess.History()
	assert.Equal(t, before, after, "events of a detached surface are ignored")
}

func TestAttachSurface_ReplacesPrevious(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	first := attached(t, sess)
	require.NoError(t, sess.Add(document.NewRect()))

	second := attached(t, sess)

	assert.Equal(t, 0, first.Subscribers())
	assert.Equal(t, 1, second.Subscribers())
	assert.Len(t, second.Document().Objects, 1)

	first.Draw(document.NewCircle())
	entries, _ := sess.History()
	assert.Len(t, entries, 2)
}

func TestUndo_StaleSurfaceIsDiscarded(t *testing.T) {
	var block atomic.Bool
	entered := make(chan struct{})
	release := make(chan struct{})
	hook := func(ctx context.Context, doc *document.Document) error {
		if block.Load() {
			entered <- struct{}{}
			<-release
		}
		return nil
	}

	sess := session.New(history.New(), nil, nil)
	first := attached(t, sess, headless.WithLoadHook(hook))
	require.NoError(t, sess.Add(document.NewRect()))

	block.Store(true)
	errc := make(chan error, 1)
	go func() { errc <- sess.Undo(context.Background()) }()
	<-entered

	second := attached(t, sess)
	close(release)

	require.NoError(t, <-errc)
	_, cursor := sess.History()
	assert.Equal(t, 1, cursor, "stale undo must not move the cursor")
	assert.Len(t, second.Document().Objects, 1)
	assert.Same(t, second, sess.Surface())
	assert.Equal(t, 0, first.Subscribers())
}

func TestUndo_CorruptEntryLeavesCursor(t *testing.T) {
	doc := document.New()
	doc.Add(document.NewRect())
	ledger := history.New()
	require.NoError(t, ledger.Replace([]document.Snapshot{"{broken", serialize(t, doc)}, 1))

	sess := session.New(ledger, nil, nil)
	surf := attached(t, sess)

	err := sess.Undo(context.Background())
	assert.ErrorIs(t, err, core.ErrCorruptSnapshot)
	assert.Equal(t, 1, ledger.Cursor())
	assert.True(t, sess.CanUndo())
	assert.Len(t, surf.Document().Objects, 1)
}

func TestUndo_FailedLoadLeavesCursor(t *testing.T) {
	fail := errors.New("image fetch failed")
	var failing atomic.Bool
	hook := func(ctx context.Context, doc *document.Document) error {
		if failing.Load() {
			return fail
		}
		return nil
	}

	sess := session.New(history.New(), nil, nil)
	attached(t, sess, headless.WithLoadHook(hook))
	require.NoError(t, sess.Add(document.NewRect()))

	failing.Store(true)
	err := sess.Undo(context.Background())
	assert.ErrorIs(t, err, fail)
	_, cursor := sess.History()
	assert.Equal(t, 1, cursor)
}

func TestAttachSurface_FailedLoadLeavesHistory(t *testing.T) {
	fail := errors.New("image decode failed")
	doc := document.New()
	doc.Add(document.NewRect())
	ledger := history.New()
	ledger.Record(serialize(t, doc))
	before := ledger.Entries()

	sess := session.New(ledger, nil, nil)
	surf := headless.New(headless.WithLoadHook(func(context.Context, *document.Document) error { return fail }))
	err := sess.AttachSurface(context.Background(), surf)

	assert.ErrorIs(t, err, fail)
	assert.Equal(t, 0, surf.Loads())
	assert.Equal(t, before, ledger.Entries())
	assert.Equal(t, 0, ledger.Cursor())
}

func TestSetFill_ReplacesGradientFill(t *testing.T) {
	ledger := history.New()
	ledger.Record(`{"version":"5.3.0","objects":[{"type":"rect","width":10,"height":10,"fill":{"type":"linear","colorStops":[]}}]}`)
	sess := session.New(ledger, nil, nil)
	surf := attached(t, sess)
	require.Len(t, surf.Document().Objects, 1)

	require.NoError(t, sess.Select(surf.Document().Objects[0]))
	require.NoError(t, sess.SetFill("#ff0000"))

	entries, cursor := sess.History()
	require.Len(t, entries, 2)
	recorded, err := document.Deserialize(entries[cursor])
	require.NoError(t, err)
	require.Len(t, recorded.Objects, 1)
	assert.Equal(t, "#ff0000", recorded.Objects[0].Fill)
	assert.NotContains(t, recorded.Objects[0].Extra, "fill")

	require.NoError(t, sess.Undo(context.Background()))
	assert.Equal(t, "", surf.Document().Objects[0].Fill)
	assert.Contains(t, surf.Document().Objects[0].Extra, "fill")
}

func TestSetZoom_Clamps(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	surf := attached(t, sess)

	assert.Equal(t, session.MaxZoom, sess.SetZoom(12))
	assert.Equal(t, session.MaxZoom, surf.Zoom())
	assert.Equal(t, session.MinZoom, sess.SetZoom(0))
	assert.Equal(t, 1.5, sess.SetZoom(1.5))
	assert.Equal(t, 1.5, sess.Zoom())

	sess.ResetView()
	assert.Equal(t, 1.0, sess.Zoom())
	assert.Equal(t, 1.0, surf.Zoom())
}

func newCloudSession(t *testing.T, window time.Duration) (*session.Session, *countingStore, *core.Project, core.KeyValueStore) {
	t.Helper()
	remote := &countingStore{ProjectStore: memory.NewStore()}
	p, err := remote.CreateProject(context.Background(), "user-1", "Poster")
	require.NoError(t, err)

	kv := memory.NewKeyValueStore()
	bridge := persistence.New(kv, remote, persistence.WithDebounceWindow(window))
	t.Cleanup(bridge.Close)
	return session.New(history.New(), bridge, remote), remote, p, kv
}

func TestLoadFromProject_PushesAfterDebounce(t *testing.T) {
	sess, remote, p, _ := newCloudSession(t, 50*time.Millisecond)
	ctx := context.Background()
	surf := attached(t, sess)

	require.NoError(t, sess.LoadFromProject(ctx, p.ID))
	assert.Equal(t, p.ID, sess.ProjectID())
	entries, cursor := sess.History()
	assert.Equal(t, []document.Snapshot{document.EmptySnapshot()}, entries)
	assert.Equal(t, 0, cursor)
	assert.Empty(t, surf.Document().Objects)

	require.NoError(t, sess.Add(document.NewTextbox("Sale!")))

	require.Eventually(t, func() bool { return remote.writes.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	saved, err := remote.FetchProject(ctx, p.ID)
	require.NoError(t, err)
	doc, err := document.Deserialize(document.Snapshot(saved.Content))
	require.NoError(t, err)
	require.Len(t, doc.Objects, 1)
	assert.Equal(t, document.KindTextbox, doc.Objects[0].Type)
	assert.Equal(t, "Sale!", doc.Objects[0].Text)
}

func TestLoadFromProject_BurstCoalescesIntoOneWrite(t *testing.T) {
	sess, remote, p, _ := newCloudSession(t, 300*time.Millisecond)
	ctx := context.Background()
	attached(t, sess)
	require.NoError(t, sess.LoadFromProject(ctx, p.ID))

	var last *document.Object
	for i := 0; i < 5; i++ {
		last = document.NewRect()
		last.Left = float64(i * 10)
		require.NoError(t, sess.Add(last))
		time.Sleep(50 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return remote.writes.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.EqualValues(t, 1, remote.writes.Load())

	saved, err := remote.FetchProject(ctx, p.ID)
	require.NoError(t, err)
	doc, err := document.Deserialize(document.Snapshot(saved.Content))
	require.NoError(t, err)
	assert.Len(t, doc.Objects, 5)
	assert.Equal(t, 40.0, doc.Objects[4].Left)
}

func TestLoadFromProject_NotFound(t *testing.T) {
	sess, _, _, _ := newCloudSession(t, time.Hour)
	attached(t, sess)
	require.NoError(t, sess.Add(document.NewRect()))
	before, _ := sess.History()

	err := sess.LoadFromProject(context.Background(), "missing")

	assert.ErrorIs(t, err, core.ErrProjectNotFound)
	after, _ := sess.History()
	assert.Equal(t, before, after)
	assert.Equal(t, "", sess.ProjectID())
	assert.Equal(t, 1, sess.View().Len())
}

func TestLoadFromProject_CorruptContentLoadsEmpty(t *testing.T) {
	sess, remote, p, _ := newCloudSession(t, time.Hour)
	ctx := context.Background()
	corrupt := `{"objects":"nope"}`
	_, err := remote.UpdateProject(ctx, p.ID, core.ProjectUpdate{Content: &corrupt})
	require.NoError(t, err)
	surf := attached(t, sess)

	require.NoError(t, sess.LoadFromProject(ctx, p.ID))

	entries, _ := sess.History()
	assert.Equal(t, []document.Snapshot{document.EmptySnapshot()}, entries)
	assert.Empty(t, surf.Document().Objects)
}

func TestLoadFromProject_FailedLoadKeepsBinding(t *testing.T) {
	fail := errors.New("image decode failed")
	var failing atomic.Bool
	hook := func(ctx context.Context, doc *document.Document) error {
		if failing.Load() {
			return fail
		}
		return nil
	}

	sess, remote, p, _ := newCloudSession(t, 20*time.Millisecond)
	ctx := context.Background()
	surf := attached(t, sess, headless.WithLoadHook(hook))
	require.NoError(t, sess.Add(document.NewTriangle()))
	require.NoError(t, sess.Add(document.NewCircle()))
	before, cursor := sess.History()

	failing.Store(true)
	err := sess.LoadFromProject(ctx, p.ID)

	assert.ErrorIs(t, err, fail)
	assert.Equal(t, "", sess.ProjectID())
	after, afterCursor := sess.History()
	assert.Equal(t, before, after)
	assert.Equal(t, cursor, afterCursor)
	assert.Len(t, surf.Document().Objects, 2)

	require.NoError(t, sess.Add(document.NewRect()))
	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 0, remote.writes.Load())
	saved, err := remote.FetchProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Content, saved.Content)
}

func TestLoadFromProject_WithoutSurface(t *testing.T) {
	sess, _, p, _ := newCloudSession(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, sess.LoadFromProject(ctx, p.ID))
	surf := attached(t, sess)

	entries, _ := sess.History()
	assert.Len(t, entries, 1, "a cloud-bound session does not commit on attach")
	assert.Equal(t, 1, surf.Loads())
}

func TestRestore_FromLocalMirror(t *testing.T) {
	kv := memory.NewKeyValueStore()
	ctx := context.Background()

	first := persistence.New(kv, nil)
	sess := session.New(history.New(), first, nil)
	attached(t, sess)
	require.NoError(t, sess.Add(document.NewRect()))
	require.NoError(t, sess.Add(document.NewCircle()))
	require.NoError(t, sess.Undo(ctx))
	want, wantCursor := sess.History()
	first.Close()

	restored, err := session.Restore(ctx, persistence.New(kv, nil), nil)
	require.NoError(t, err)
	got, cursor := restored.History()
	assert.Equal(t, want, got)
	assert.Equal(t, wantCursor, cursor)

	surf := attached(t, restored)
	assert.Len(t, surf.Document().Objects, 1)
	assert.True(t, restored.CanRedo())
}

func TestRestore_CorruptMirrorStartsEmpty(t *testing.T) {
	kv := memory.NewKeyValueStore()
	ctx := context.Background()
	require.NoError(t, kv.Put(ctx, map[string]string{persistence.KeyHistory: "not json"}))

	sess, err := session.Restore(ctx, persistence.New(kv, nil), nil, session.WithHistoryLimit(10))
	require.NoError(t, err)
	entries, cursor := sess.History()
	assert.Empty(t, entries)
	assert.Equal(t, history.NoCursor, cursor)
}

func TestConcurrentCommits(t *testing.T) {
	sess := session.New(history.New(), nil, nil)
	surf := attached(t, sess)
	rect := document.NewRect()
	require.NoError(t, sess.Add(rect))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sess.Commit()
			_ = sess.View()
		}()
	}
	wg.Wait()
	assert.Len(t, surf.Document().Objects, 1)
}
