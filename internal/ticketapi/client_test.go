package ticketapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thnhpht/ITS/internal/config"
	"github.com/thnhpht/ITS/internal/domain"
	apperrors "github.com/thnhpht/ITS/pkg/util"
)

type recordedCalls struct {
	mu      sync.Mutex
	entries []domain.APICallLog
}

func (r *recordedCalls) LogCall(_ context.Context, entry domain.APICallLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)
	return token
}

type fakeAPI struct {
	t           *testing.T
	token       string
	tokenCalls  int
	lastMethod  string
	lastPath    string
	lastAuth    string
	lastBody    map[string]any
	createReply string
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		_ = json.NewEncoder(w).Encode(map[string]string{"token": f.token})
	})
	record := func(r *http.Request) {
		f.lastMethod, f.lastPath, f.lastAuth = r.Method, r.URL.Path, r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		f.lastBody = nil
		if len(raw) > 0 {
			require.NoError(f.t, json.Unmarshal(raw, &f.lastBody))
		}
	}
	mux.HandleFunc("/its/requests", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = io.WriteString(w, f.createReply)
	})
	mux.HandleFunc("/ho/requests/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = io.WriteString(w, `{"res_code":{"error_code":"00"},"data":{"request":{"id":"9001"}}}`)
	})
	mux.HandleFunc("/ho/templates", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = io.WriteString(w, `{"res_code":{"error_code":"00"},"data":{"details":[
			{"template_id":11,"template_name":"SC01.Thẻ"},
			{"template_id":"12","template_name":"SC02.Tài khoản"}]}}`)
	})
	return mux
}

func newTestClient(t *testing.T, api *fakeAPI) (*Client, *recordedCalls) {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	calls := &recordedCalls{}
	cfg := config.TicketAPIConfig{
		BaseURL:        srv.URL,
		TokenURL:       srv.URL + "/auth/token",
		Username:       "u",
		Password:       "p",
		RequestTimeout: 5 * time.Second,
		TokenTTL:       5 * time.Minute,
		RequesterID:    13502,
		LoginName:      "cskh",
		ITSCreatePath:  "/its/requests",
		HOUpdatePath:   "/ho/requests/",
		HOTemplatePath: "/ho/templates",
	}
	return NewClient(cfg, calls, nil), calls
}

func TestCreateSendsPayloadAndParsesID(t *testing.T) {
	api := &fakeAPI{t: t, token: signedToken(t, time.Now().Add(time.Hour)),
		createReply: `{"res_code":{"error_code":"00"},"data":{"request":{"id":4321}}}`}
	client, calls := newTestClient(t, api)

	out, err := client.Create(context.Background(), domain.APIITS, CreateRequest{
		Subject: "s", TemplateID: "7", CatID: "1", SubCatID: "2", ItemID: "3",
	})
	require.NoError(t, err)
	assert.Equal(t, "4321", out.RequestID)
	assert.Equal(t, http.MethodPost, api.lastMethod)
	assert.Equal(t, "Bearer "+api.token, api.lastAuth)
	assert.EqualValues(t, 13502, api.lastBody["requester_id"])
	assert.Equal(t, "cskh", api.lastBody["login_name"])
	assert.Equal(t, []any{}, api.lastBody["attachments"])

	require.Len(t, calls.entries, 2, "token call and create call are both logged")
	assert.Equal(t, "/its/requests", calls.entries[1].Path)
	assert.Equal(t, http.StatusOK, calls.entries[1].StatusCode)
	assert.NotContains(t, calls.entries[1].RequestHeader, api.token)
}

func TestCreateRejectsErrorCode(t *testing.T) {
	api := &fakeAPI{t: t, token: signedToken(t, time.Now().Add(time.Hour)),
		createReply: `{"res_code":{"error_code":"99","error_desc":"bad item"}}`}
	client, _ := newTestClient(t, api)

	out, err := client.Create(context.Background(), domain.APIITS, CreateRequest{})
	require.Error(t, err)
	assert.Equal(t, "99", out.Code)
	assert.Equal(t, apperrors.KindExternalAPI, apperrors.Classify(err))
}

func TestUpdateAppendsRefToPath(t *testing.T) {
	api := &fakeAPI{t: t, token: signedToken(t, time.Now().Add(time.Hour))}
	client, _ := newTestClient(t, api)

	out, err := client.Update(context.Background(), domain.APIHO, "555", UpdateRequest{Description: "d"})
	require.NoError(t, err)
	assert.Equal(t, "9001", out.RequestID)
	assert.Equal(t, http.MethodPut, api.lastMethod)
	assert.Equal(t, "/ho/requests/555", api.lastPath)
}

func TestTokenIsCached(t *testing.T) {
	api := &fakeAPI{t: t, token: signedToken(t, time.Now().Add(time.Hour))}
	client, _ := newTestClient(t, api)

	_, err := client.Templates(context.Background(), domain.APIHO)
	require.NoError(t, err)
	_, err = client.Templates(context.Background(), domain.APIHO)
	require.NoError(t, err)
	assert.Equal(t, 1, api.tokenCalls)
}

func TestTemplatesAndPrefixLookup(t *testing.T) {
	api := &fakeAPI{t: t, token: signedToken(t, time.Now().Add(time.Hour))}
	client, _ := newTestClient(t, api)

	templates, err := client.Templates(context.Background(), domain.APIHO)
	require.NoError(t, err)
	require.Len(t, templates, 2)

	id, ok := FindTemplateID(templates, "SC02")
	assert.True(t, ok)
	assert.Equal(t, "12", id)

	id, ok = FindTemplateID(templates, "SC01")
	assert.True(t, ok)
	assert.Equal(t, "11", id)

	_, ok = FindTemplateID(templates, "SC09")
	assert.False(t, ok)
	_, ok = FindTemplateID(templates, "")
	assert.False(t, ok)
}

func TestTokenCacheHonoursJWTExpiry(t *testing.T) {
	now := time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC)
	cache := NewTokenCache(5 * time.Minute)
	cache.now = func() time.Time { return now }

	cache.Set(signedToken(t, now.Add(2*time.Minute)))
	assert.Equal(t, now.Add(2*time.Minute).Unix(), cache.ExpiresAt().Unix())

	now = now.Add(3 * time.Minute)
	_, ok := cache.Get()
	assert.False(t, ok)
}

func TestTokenCacheFallsBackToTTL(t *testing.T) {
	now := time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC)
	cache := NewTokenCache(5 * time.Minute)
	cache.now = func() time.Time { return now }

	cache.Set("opaque-token")
	got, ok := cache.Get()
	assert.True(t, ok)
	assert.Equal(t, "opaque-token", got)

	now = now.Add(5 * time.Minute)
	_, ok = cache.Get()
	assert.False(t, ok)

	cache.Set(signedToken(t, now.Add(time.Hour)))
	assert.Equal(t, now.Add(5*time.Minute), cache.ExpiresAt())

	cache.Invalidate()
	_, ok = cache.Get()
	assert.False(t, ok)
}

func TestAttachmentURLs(t *testing.T) {
	got := AttachmentURLs("https://crm.example/files/", "T1", "a.png; b.pdf;")
	assert.Equal(t, []string{"https://crm.example/files/T1/a.png", "https://crm.example/files/T1/b.pdf"}, got)
	assert.Empty(t, AttachmentURLs("h", "T1", ""))
}
