package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lingoloop/notifier/internal/errors"
	"github.com/lingoloop/notifier/internal/models"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Header http.Header
	Body   string
}

type fakePostgREST struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	q := map[string]string{}
	for k, v := range r.URL.Query() {
		q[k] = v[0]
	}
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{r.Method, r.URL.Path, q, r.Header.Clone(), string(body)})
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakePostgREST) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newRESTFixture(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*RESTClient, *fakePostgREST) {
	t.Helper()
	fake := &fakePostgREST{handler: handler}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	client := NewRESTClient(RESTConfig{BaseURL: srv.URL + "/", AnonKey: "anon", AccessToken: "user-token"})
	return client, fake
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestRESTFetchByID(t *testing.T) {
	client, fake := newRESTFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":"c1","tweet_id":"t1","content":"nice"}]`)
	})

	var c models.Comment
	require.NoError(t, client.FetchByID(context.Background(), TableComments, "c1", &c))
	assert.Equal(t, "t1", c.TweetID)

	req := fake.last()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/rest/v1/comments", req.Path)
	assert.Equal(t, "eq.c1", req.Query["id"])
	assert.Equal(t, "anon", req.Header.Get("apikey"))
	assert.Equal(t, "Bearer user-token", req.Header.Get("Authorization"))
}

func TestRESTFetchByIDEmptyIsNotFound(t *testing.T) {
	client, _ := newRESTFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[]`)
	})

	var c models.Comment
	err := client.FetchByID(context.Background(), TableComments, "gone", &c)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRESTServerErrorIsNotNotFound(t *testing.T) {
	client, _ := newRESTFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"message":"boom"}`)
	})

	var c models.Comment
	err := client.FetchByID(context.Background(), TableComments, "c1", &c)
	require.Error(t, err)
	assert.False(t, apperrors.IsNotFound(err))
	assert.Equal(t, apperrors.ErrInternalError, apperrors.Categorize(err).Code)
}

func TestRESTSelectBuildsPostgRESTQuery(t *testing.T) {
	client, fake := newRESTFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":"n2","type":"like","receiver_id":"p1"},{"id":"n1","type":"follow","receiver_id":"p1"}]`)
	})

	repo := NewRepository(client)
	list, err := repo.ListNotifications(context.Background(), "p1", 25)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.NotificationLike, list[0].Type)

	req := fake.last()
	assert.Equal(t, "eq.p1", req.Query["receiver_id"])
	assert.Equal(t, "created_at.desc", req.Query["order"])
	assert.Equal(t, "25", req.Query["limit"])
	assert.Equal(t, "*", req.Query["select"])
}

func TestRESTMutations(t *testing.T) {
	client, fake := newRESTFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	repo := NewRepository(client)
	ctx := context.Background()

	require.NoError(t, repo.MarkRead(ctx, "n1"))
	req := fake.last()
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "eq.n1", req.Query["id"])
	assert.JSONEq(t, `{"is_read":true}`, req.Body)

	require.NoError(t, repo.DeleteNotification(ctx, "n1"))
	req = fake.last()
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "eq.n1", req.Query["id"])

	require.NoError(t, repo.ClearNotifications(ctx, "p1"))
	req = fake.last()
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "eq.p1", req.Query["receiver_id"])
	assert.Empty(t, req.Query["id"])
}

func TestRESTBulkDeleteRequiresFilter(t *testing.T) {
	client, fake := newRESTFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.BulkDelete(context.Background(), TableNotifications, nil)
	require.Error(t, err)
	assert.Empty(t, fake.requests)
}

func TestRESTCommentExists(t *testing.T) {
	client, _ := newRESTFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "eq.live" {
			writeJSON(w, http.StatusOK, `[{"id":"live","tweet_id":"t1"}]`)
			return
		}
		writeJSON(w, http.StatusOK, `[]`)
	})
	repo := NewRepository(client)

	ok, err := repo.CommentExists(context.Background(), "live")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CommentExists(context.Background(), "deleted")
	require.NoError(t, err)
	assert.False(t, ok)
}
