package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cryptovault/internal/chain"
	"cryptovault/internal/config"
	"cryptovault/internal/db"
	"cryptovault/internal/domain"
	"cryptovault/internal/events"
	"cryptovault/internal/identity"
	"cryptovault/internal/jobs"
	"cryptovault/internal/oauth"
	"cryptovault/internal/storage"
	"cryptovault/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testSecret    = "test-secret"
	testMaxUpload = 1024
)

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	store  *storage.LocalStore
	events *events.MemoryPublisher
	oauth  *fakeProvider
}

type fakeProvider struct {
	profile identity.Profile
	err     error
}

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://idp.test/auth?state=" + state
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (identity.Profile, error) {
	return f.profile, f.err
}

func setupTestEnv(t *testing.T) *testEnv {
	return setupTestEnvWith(t, true)
}

func setupTestEnvWith(t *testing.T, withOAuth bool) *testEnv {
	gin.SetMode(gin.TestMode)
	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	store, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "uploads"), testMaxUpload)
	require.NoError(t, err)

	env := &testEnv{
		router: gin.New(),
		db:     gdb,
		store:  store,
		events: &events.MemoryPublisher{},
		oauth:  &fakeProvider{},
	}
	var provider oauth.Provider
	if withOAuth {
		provider = env.oauth
	}
	cfg := &config.Config{
		JWTSecret:       testSecret,
		SessionTTL:      time.Hour,
		MaxUploadBytes:  testMaxUpload,
		SuiNetwork:      "testnet",
		OutboundTimeout: 5 * time.Second,
	}
	RegisterRoutes(env.router, Deps{
		DB:         gdb,
		Config:     cfg,
		Store:      store,
		Chain:      chain.NewMockClient(cfg.SuiNetwork, "0x1", "marketplace", "0x2"),
		Events:     env.events,
		OAuth:      provider,
		Reconciler: jobs.NewReconciler(gdb, store),
	})
	return env
}

func (e *testEnv) createUser(t *testing.T, email, role string) domain.User {
	u := domain.User{Email: email, Name: "User " + email, Role: role, KYCStatus: domain.KYCPending, IsActive: true}
	require.NoError(t, e.db.Create(&u).Error)
	return u
}

// seedDataset inserts an active listing with content directly
func (e *testEnv) seedDataset(t *testing.T, seller domain.User, title, price string) domain.Dataset {
	sum := sha256.Sum256([]byte(title))
	hash := hex.EncodeToString(sum[:])
	ds := domain.Dataset{
		SellerID:   seller.ID,
		Title:      title,
		FileHash:   hash,
		FileSize:   int64(len(title)),
		StorageKey: storage.KeyFor(hash),
		Price:      decimal.RequireFromString(price),
		Category:   "Climate",
		Status:     domain.DatasetActive,
	}
	require.NoError(t, e.db.Create(&ds).Error)
	return ds
}

func bearer(t *testing.T, u domain.User) string {
	tok, err := utils.GenerateJWT(u.ID, u.Role, "", testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

// request builds a JSON request, authenticated as u when u is not nil
func (e *testEnv) request(t *testing.T, method, path string, body any, u *domain.User) *http.Request {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if u != nil {
		req.Header.Set("Authorization", bearer(t, *u))
	}
	return req
}

// do sends a JSON request, authenticated as u when u is not nil
func (e *testEnv) do(t *testing.T, method, path string, body any, u *domain.User) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, e.request(t, method, path, body, u))
	return w
}

// serveAll sends reqs concurrently; nothing in the workers touches t
func (e *testEnv) serveAll(reqs []*http.Request) []*httptest.ResponseRecorder {
	out := make([]*httptest.ResponseRecorder, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		out[i] = httptest.NewRecorder()
		wg.Add(1)
		go func(w *httptest.ResponseRecorder, req *http.Request) {
			defer wg.Done()
			e.router.ServeHTTP(w, req)
		}(out[i], req)
	}
	wg.Wait()
	return out
}

// upload posts a multipart upload; content nil omits the file part
func (e *testEnv) upload(t *testing.T, u *domain.User, fields map[string]string, content []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if content != nil {
		fw, err := mw.CreateFormFile("file", "data.csv")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, "/api/datasets/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if u != nil {
		req.Header.Set("Authorization", bearer(t, *u))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest any) {
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	var body struct {
		Error string `json:"error"`
	}
	decode(t, w, &body)
	return body.Error
}
