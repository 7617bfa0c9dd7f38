package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/securecookie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(nil, securecookie.GenerateRandomKey(32), securecookie.GenerateRandomKey(32))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
	assert.False(t, CheckPassword("not-a-hash", "hunter2"))
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, s.SetSession(w, r, 42))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(cookies[0])

	sess, ok := s.GetSession(r2)
	require.True(t, ok)
	assert.Equal(t, int64(42), sess.UserID)
}

func TestSessionRejectsForeignAndMissingCookies(t *testing.T) {
	s := newTestStore()

	// No cookie at all.
	_, ok := s.GetSession(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)

	// Cookie minted with different keys.
	other := newTestStore()
	w := httptest.NewRecorder()
	require.NoError(t, other.SetSession(w, httptest.NewRequest(http.MethodGet, "/", nil), 7))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(w.Result().Cookies()[0])
	_, ok = s.GetSession(r)
	assert.False(t, ok)
}

func TestRequireAuth(t *testing.T) {
	s := newTestStore()

	var gotUID int64
	h := s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		gotUID = uid
	}))

	// Anonymous request bounces to the login page.
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/accounts", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	// Logged-in request passes through with the user id in context.
	setW := httptest.NewRecorder()
	require.NoError(t, s.SetSession(setW, httptest.NewRequest(http.MethodGet, "/", nil), 9))

	r := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	r.AddCookie(setW.Result().Cookies()[0])
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(9), gotUID)
}

func TestClearSession(t *testing.T) {
	s := newTestStore()
	w := httptest.NewRecorder()
	s.ClearSession(w)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)
}
