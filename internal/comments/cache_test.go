package comments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/backend/mocks"
	errordefs "github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/errors"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/loop"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
)

func newCache(t *testing.T) (*Cache, *mocks.MockBackend, *loop.Loop, *[]model.Notice) {
	t.Helper()
	ctrl := gomock.NewController(t)
	l, err := loop.New(loop.Options{Workers: 2})
	require.NoError(t, err)
	t.Cleanup(l.Close)

	b := mocks.NewMockBackend(ctrl)
	var notices []model.Notice
	// notices are posted from loop callbacks; tests read them through l.Do
	c := New(l, b, func(n model.Notice) { notices = append(notices, n) }, nil)
	return c, b, l, &notices
}

func tree() []model.Comment {
	return []model.Comment{
		{ID: "c1", Text: "first", Replies: []model.Comment{{ID: "r1", Text: "reply"}}},
		{ID: "c2", Text: "second"},
	}
}

func view(l *loop.Loop, c *Cache, id string) (th model.CommentThread) {
	l.Do(func() { th = c.Thread(id) })
	return th
}

func waitLoaded(t *testing.T, l *loop.Loop, c *Cache, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		th := view(l, c, id)
		return th.Loaded && !th.Loading
	}, 2*time.Second, 5*time.Millisecond)
}

func TestExpandFetchesOncePerSession(t *testing.T) {
	c, b, l, _ := newCache(t)
	b.EXPECT().Comments(gomock.Any(), "m1").Return(tree(), nil).Times(1)

	l.Do(func() { c.Expand("m1") })
	l.Do(func() { c.Expand("m1") })
	waitLoaded(t, l, c, "m1")
	l.Do(func() { c.Expand("m1") })

	th := view(l, c, "m1")
	require.True(t, th.Expanded)
	require.Len(t, th.Comments, 2)

	var owner string
	var ok bool
	l.Do(func() { owner, ok = c.ThreadOf("r1") })
	require.True(t, ok)
	require.Equal(t, "m1", owner)
}

func TestCollapseDropsTreeAndReexpandRefetches(t *testing.T) {
	c, b, l, _ := newCache(t)
	b.EXPECT().Comments(gomock.Any(), "m1").Return(tree(), nil).Times(2)

	var expanded bool
	l.Do(func() { expanded = c.Toggle("m1") })
	require.True(t, expanded)
	waitLoaded(t, l, c, "m1")

	l.Do(func() { expanded = c.Toggle("m1") })
	require.False(t, expanded)
	th := view(l, c, "m1")
	require.False(t, th.Loaded)
	require.Empty(t, th.Comments)

	l.Do(func() {
		_, ok := c.ThreadOf("c1")
		require.False(t, ok)
	})

	l.Do(func() { c.Toggle("m1") })
	waitLoaded(t, l, c, "m1")
}

func TestResponseAfterCollapseIsDropped(t *testing.T) {
	c, b, l, _ := newCache(t)
	release := make(chan struct{})
	b.EXPECT().Comments(gomock.Any(), "m1").DoAndReturn(func(context.Context, string) ([]model.Comment, error) {
		<-release
		return tree(), nil
	})

	l.Do(func() { c.Expand("m1") })
	l.Do(func() { c.Collapse("m1") })
	close(release)

	require.Never(t, func() bool { return view(l, c, "m1").Loaded }, 100*time.Millisecond, 5*time.Millisecond)
}

func TestRefreshSupersedesInFlightFetch(t *testing.T) {
	c, b, l, _ := newCache(t)
	started, release := make(chan struct{}), make(chan struct{})
	gomock.InOrder(
		b.EXPECT().Comments(gomock.Any(), "m1").DoAndReturn(func(context.Context, string) ([]model.Comment, error) {
			close(started)
			<-release
			return []model.Comment{{ID: "old"}}, nil
		}),
		b.EXPECT().Comments(gomock.Any(), "m1").Return(tree(), nil),
	)

	l.Do(func() { c.Expand("m1") })
	<-started
	l.Do(func() { c.Refresh("m1") })
	waitLoaded(t, l, c, "m1")
	close(release)

	require.Never(t, func() bool {
		th := view(l, c, "m1")
		return len(th.Comments) != 2
	}, 100*time.Millisecond, 5*time.Millisecond)
}

func TestRefreshLoadsCollapsedThread(t *testing.T) {
	c, b, l, _ := newCache(t)
	b.EXPECT().Comments(gomock.Any(), "m1").Return(tree(), nil)

	l.Do(func() { c.Refresh("m1") })
	waitLoaded(t, l, c, "m1")
	require.False(t, view(l, c, "m1").Expanded)
}

func TestFetchFailureKeepsPreviousTree(t *testing.T) {
	c, b, l, notices := newCache(t)
	gomock.InOrder(
		b.EXPECT().Comments(gomock.Any(), "m1").Return(tree(), nil),
		b.EXPECT().Comments(gomock.Any(), "m1").Return(nil, errordefs.New(errordefs.KindNetwork, "offline")),
	)

	l.Do(func() { c.Expand("m1") })
	waitLoaded(t, l, c, "m1")
	l.Do(func() { c.Refresh("m1") })

	require.Eventually(t, func() bool {
		var n int
		l.Do(func() { n = len(*notices) })
		return n == 1
	}, 2*time.Second, 5*time.Millisecond)

	th := view(l, c, "m1")
	require.Len(t, th.Comments, 2)
	require.False(t, th.Loading)
	l.Do(func() { require.Equal(t, "Failed to load comments: offline", (*notices)[0].Text) })
}

func TestDrafts(t *testing.T) {
	c := New(nil, nil, nil, nil)
	c.SetDraft("m1", "hello")
	c.SetDraft("c1", "a reply")
	require.Equal(t, "hello", c.Draft("m1"))

	c.ClearDraft("m1")
	require.Empty(t, c.Draft("m1"))
	require.Equal(t, "a reply", c.Draft("c1"))

	c.SetDraft("c1", "")
	require.Empty(t, c.Draft("c1"))
}
