package jellyfin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/log"
)

var (
	_ domain.Catalog           = (*Client)(nil)
	_ domain.PagedCatalog      = (*Client)(nil)
	_ domain.SessionRepository = (*Client)(nil)
	_ domain.AuthFlow          = (*AuthFlow)(nil)
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "tok", "u1", log.NullLogger())
	c.retryDelay = time.Millisecond
	return c
}

func TestClient_QueryItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Users/u1/Items", r.URL.Path)
		assert.Equal(t, "Movie,Series", r.URL.Query().Get("IncludeItemTypes"))
		assert.Equal(t, "Logo,Backdrop", r.URL.Query().Get("imageTypes"))
		assert.Equal(t, "500", r.URL.Query().Get("Limit"))
		assert.NotEmpty(t, r.URL.Query().Get("Fields"))
		assert.Contains(t, r.Header.Get("X-Emby-Authorization"), `Token="tok"`)

		fmt.Fprint(w, `{"Items":[
			{"Id":"m1","Name":"Heat","Type":"Movie","ProductionYear":1995,
			 "ImageTags":{"Logo":"abc"},"BackdropImageTags":["b1"],
			 "UserData":{"Played":true,"PlaybackPositionTicks":600000000}},
			{"Id":"","Name":"ghost","Type":"Movie"}
		],"TotalRecordCount":2}`)
	})

	items, err := c.QueryItems(context.Background(), "IncludeItemTypes=Movie,Series&imageTypes=Logo,Backdrop", 500)
	require.NoError(t, err)
	require.Len(t, items, 1)

	m := items[0]
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, domain.TypeMovie, m.Type)
	assert.Equal(t, 1995, m.Year)
	assert.True(t, m.HasImageType("Logo"))
	assert.True(t, m.HasImageType("Backdrop"))
	assert.True(t, m.Played)
	assert.Equal(t, 60*time.Second, m.PlaybackPosition)
}

func TestClient_GetItems_batch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a,b,c", r.URL.Query().Get("Ids"))
		fmt.Fprint(w, `{"Items":[{"Id":"a","Type":"Movie"},{"Id":"c","Type":"Series"}]}`)
	})

	items, err := c.GetItems(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, domain.IDs(items))

	none, err := c.GetItems(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestClient_GetItem_notFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := c.GetItem(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"Items":[{"Id":"r1","Type":"Episode","SeriesName":"Show"}]}`)
	})

	items, err := c.GetResumeItems(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, items, 1)
	assert.True(t, items[0].IsEpisode())
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.QueryItems(context.Background(), "Recursive=true", 0)
	assert.Error(t, err)
	assert.Equal(t, int32(maxRetries+1), calls.Load())
}

func TestClient_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.FetchText(context.Background(), "/slider/list/list_u1.txt")
	assert.ErrorIs(t, err, domain.ErrAuthFailed)
}

func TestClient_Offline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, "tok", "u1", log.NullLogger())
	_, err := c.GetItem(context.Background(), "x")
	assert.True(t, errors.Is(err, domain.ErrServerOffline))
}

func TestClient_FetchText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/slider/list/list_u1.txt", r.URL.Path)
		fmt.Fprint(w, "id1\nid2\n")
	})

	text, err := c.FetchText(context.Background(), "slider/list/list_u1.txt")
	require.NoError(t, err)
	assert.Equal(t, "id1\nid2\n", text)
}

func TestClient_QueryItemsPage_and_sessions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Sessions":
			fmt.Fprint(w, `[{"Id":"s1","UserId":"u2","UserName":"kim"},{"Id":"s2"}]`)
		case "/Users/u2/Items":
			assert.Equal(t, "100", r.URL.Query().Get("StartIndex"))
			assert.Equal(t, "50", r.URL.Query().Get("Limit"))
			fmt.Fprint(w, `{"Items":[{"Id":"x","Type":"Movie"}],"TotalRecordCount":151}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	sessions, err := c.GetActiveSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "u2", sessions[0].UserID)

	items, total, err := c.QueryItemsPage(context.Background(), "u2", "IncludeItemTypes=Movie", 100, 50)
	require.NoError(t, err)
	assert.Equal(t, 151, total)
	assert.Len(t, items, 1)
}

func TestAuthFlow_Run(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Users/AuthenticateByName", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"Pw":"secret"`) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"AccessToken":"new-token","User":{"Id":"u9","Name":"kim"}}`)
	}))
	defer srv.Close()

	var out strings.Builder
	f := NewAuthFlow(log.NullLogger())
	f.in = bufio.NewReader(strings.NewReader("kim\nsecret\n"))
	f.out = &out

	res, err := f.Run(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "new-token", res.Token)
	assert.Equal(t, "u9", res.UserID)
	assert.Contains(t, out.String(), "Signed in as kim")

	_, err = f.authenticate(context.Background(), srv.URL, "kim", "wrong")
	assert.ErrorIs(t, err, domain.ErrAuthFailed)
}
