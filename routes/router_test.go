package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/secureboard/config"
	"github.com/cppla/secureboard/models"
	"github.com/cppla/secureboard/repository"
	"github.com/cppla/secureboard/security"
	"github.com/cppla/secureboard/services"
	"github.com/cppla/secureboard/storage"
	"github.com/cppla/secureboard/utils"
)

const cookieName = "SESSION"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	r, _ := newTestRouterWith(t, nil)
	return r
}

// newTestRouterWith lets a test adjust the config and returns the upload directory.
func newTestRouterWith(t *testing.T, adjust func(*config.AppConfig)) (*gin.Engine, string) {
	t.Helper()
	cfg := config.AppConfig{
		GinMode:            "test",
		RateLimitPerMinute: 1000,
		SessionSecret:      "router-test-secret",
		SessionTTL:         time.Hour,
		SessionCookie:      cookieName,
		DBDriver:           "sqlite",
		DatabaseURI:        "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		LogLevel:           "silent",
		MaxUploadMB:        1,
	}
	if adjust != nil {
		adjust(&cfg)
	}
	db, err := config.InitDatabase(cfg, nil, &models.User{}, &models.Post{}, &models.Attachment{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	uploadDir := t.TempDir()
	files, err := storage.NewLocal(uploadDir)
	require.NoError(t, err)

	return SetupRouter(Dependencies{
		Config:   cfg,
		Users:    services.NewUserService(repository.NewUserRepository(db), nil),
		Board:    services.NewBoardService(repository.NewBoardRepository(db), files, cfg.MaxUploadBytes(), nil),
		Sessions: security.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, utils.NewTokenBlacklist(nil)),
	}), uploadDir
}

func do(r http.Handler, req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func postForm(r http.Handler, target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(r, req, cookie)
}

func get(r http.Handler, target string, cookie *http.Cookie) *httptest.ResponseRecorder {
	return do(r, httptest.NewRequest(http.MethodGet, target, nil), cookie)
}

func signup(t *testing.T, r http.Handler, email, auth string) {
	t.Helper()
	rec := postForm(r, "/user", url.Values{"email": {email}, "password": {"pw"}, "name": {"n"}, "auth": {auth}}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Equal(t, "/login", rec.Header().Get("Location"))
}

func login(t *testing.T, r http.Handler, email string) *http.Cookie {
	t.Helper()
	rec := postForm(r, "/login", url.Values{"username": {email}, "password": {"pw"}}, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestAnonymousAccess(t *testing.T) {
	r := newTestRouter(t)

	for _, p := range []string{"/", "/board", "/board/1", "/admin", "/board/file?idx=1&boardIdx=1", "/logout", "/elsewhere"} {
		rec := get(r, p, nil)
		assert.Equal(t, http.StatusFound, rec.Code, p)
		assert.Equal(t, "/login", rec.Header().Get("Location"), p)
	}

	assert.Equal(t, http.StatusOK, get(r, "/login", nil).Code)
	assert.Equal(t, http.StatusOK, get(r, "/signup", nil).Code)
	assert.Equal(t, http.StatusOK, get(r, "/health", nil).Code)
	// static prefixes bypass authentication; nothing is served there
	assert.Equal(t, http.StatusNotFound, get(r, "/css/site.css", nil).Code)
}

func TestSignupValidationAndConflict(t *testing.T) {
	r := newTestRouter(t)
	signup(t, r, "dup@example.com", "")

	rec := postForm(r, "/user", url.Values{"email": {"dup@example.com"}, "password": {"x"}}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = postForm(r, "/user", url.Values{"email": {""}, "password": {"x"}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginFailureRedirects(t *testing.T) {
	r := newTestRouter(t)
	signup(t, r, "u@example.com", "ROLE_USER")

	rec := postForm(r, "/login", url.Values{"username": {"u@example.com"}, "password": {"nope"}}, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?error", rec.Header().Get("Location"))

	rec = postForm(r, "/login", url.Values{"username": {"ghost@example.com"}, "password": {"pw"}}, nil)
	assert.Equal(t, "/login?error", rec.Header().Get("Location"))
}

func TestAdminRequiresAdminRole(t *testing.T) {
	r := newTestRouter(t)
	signup(t, r, "user@example.com", "ROLE_USER")
	signup(t, r, "admin@example.com", "ROLE_ADMIN")

	rec := get(r, "/admin", login(t, r, "user@example.com"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = get(r, "/admin", login(t, r, "admin@example.com"))
	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Users []map[string]interface{} `json:"users"`
	}
	decode(t, rec, &data)
	assert.Len(t, data.Users, 2)
	assert.NotContains(t, data.Users[0], "password")
}

func TestHomeShowsPrincipal(t *testing.T) {
	r := newTestRouter(t)
	signup(t, r, "me@example.com", "ROLE_USER")

	rec := get(r, "/", login(t, r, "me@example.com"))
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		Email string   `json:"email"`
		Roles []string `json:"roles"`
	}
	decode(t, rec, &me)
	assert.Equal(t, "me@example.com", me.Email)
	assert.Equal(t, []string{"ROLE_USER"}, me.Roles)
}

func TestBearerTokenAccepted(t *testing.T) {
	r := newTestRouter(t)
	signup(t, r, "api@example.com", "ROLE_USER")
	cookie := login(t, r, "api@example.com")

	req := httptest.NewRequest(http.MethodGet, "/board", nil)
	req.Header.Set("Authorization", "Bearer "+cookie.Value)
	assert.Equal(t, http.StatusOK, do(r, req, nil).Code)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	r := newTestRouter(t)
	signup(t, r, "out@example.com", "ROLE_USER")
	cookie := login(t, r, "out@example.com")

	require.Equal(t, http.StatusOK, get(r, "/board", cookie).Code)

	rec := get(r, "/logout", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = get(r, "/board", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestBoardLifecycle(t *testing.T) {
	r := newTestRouter(t)
	signup(t, r, "writer@example.com", "ROLE_USER")
	cookie := login(t, r, "writer@example.com")

	req := multipartRequest(t, http.MethodPost, "/boardwrite",
		map[string]string{"title": "First", "content": "hello"},
		map[string]string{"report final.txt": "file-body"})
	rec := do(r, req, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/board", rec.Header().Get("Location"))

	rec = get(r, "/board", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Posts []models.Post `json:"posts"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Posts, 1)
	postID := list.Posts[0].ID
	assert.Equal(t, "writer@example.com", list.Posts[0].CreatorID)
	assert.Equal(t, 0, list.Posts[0].HitCnt)

	detailPath := "/board/" + strconv.Itoa(int(postID))
	var detail struct {
		Post models.Post `json:"post"`
	}
	rec = get(r, detailPath, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &detail)
	assert.Equal(t, 1, detail.Post.HitCnt)
	require.Len(t, detail.Post.Files, 1)
	fileID := detail.Post.Files[0].ID

	rec = get(r, detailPath, cookie)
	decode(t, rec, &detail)
	assert.Equal(t, 2, detail.Post.HitCnt)

	filePath := "/board/file?idx=" + strconv.Itoa(int(fileID)) + "&boardIdx=" + strconv.Itoa(int(postID))
	rec = get(r, filePath, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "9", rec.Header().Get("Content-Length"))
	assert.Equal(t, `attachment; filename="report+final.txt"`, rec.Header().Get("Content-Disposition"))
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "file-body", string(body))

	rec = get(r, "/board/file?idx="+strconv.Itoa(int(fileID))+"&boardIdx=999", cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = multipartRequest(t, http.MethodPut, detailPath, map[string]string{"title": "Edited", "content": "changed"}, nil)
	rec = do(r, req, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	rec = get(r, detailPath, cookie)
	decode(t, rec, &detail)
	assert.Equal(t, "Edited", detail.Post.Title)
	assert.Equal(t, 3, detail.Post.HitCnt)

	req = multipartRequest(t, http.MethodPut, "/board/999", map[string]string{"title": "x"}, nil)
	assert.Equal(t, http.StatusNotFound, do(r, req, cookie).Code)

	rec = do(r, httptest.NewRequest(http.MethodDelete, filePath, nil), cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, detailPath, rec.Header().Get("Location"))
	assert.Equal(t, http.StatusNotFound, get(r, filePath, cookie).Code)

	rec = do(r, httptest.NewRequest(http.MethodDelete, detailPath, nil), cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	rec = do(r, httptest.NewRequest(http.MethodDelete, detailPath, nil), cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, http.StatusNotFound, get(r, detailPath, cookie).Code)
}

func TestBoardRejectsBadIDs(t *testing.T) {
	r := newTestRouter(t)
	signup(t, r, "ids@example.com", "ROLE_USER")
	cookie := login(t, r, "ids@example.com")

	assert.Equal(t, http.StatusBadRequest, get(r, "/board/abc", cookie).Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/board/file?idx=1", cookie).Code)
}

func preflight(r http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/board", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	return do(r, req, nil)
}

func TestCORSWildcardDoesNotEchoOriginWithCredentials(t *testing.T) {
	r, _ := newTestRouterWith(t, func(c *config.AppConfig) { c.AllowedOrigins = []string{"*"} })

	rec := preflight(r, "https://evil.example")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSExplicitOrigins(t *testing.T) {
	r, _ := newTestRouterWith(t, func(c *config.AppConfig) { c.AllowedOrigins = []string{"https://app.example"} })

	rec := preflight(r, "https://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = preflight(r, "https://app.example")
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestLoginRateLimitIgnoresForwardedFor(t *testing.T) {
	r, _ := newTestRouterWith(t, func(c *config.AppConfig) { c.RateLimitPerMinute = 2 })

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("username=a%40example.com&password=x"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", "203.0.113."+strconv.Itoa(i+1))
		codes = append(codes, do(r, req, nil).Code)
	}
	assert.Equal(t, []int{http.StatusFound, http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestBoardWriteRejectsOversizedUpload(t *testing.T) {
	r, uploadDir := newTestRouterWith(t, nil)
	signup(t, r, "big@example.com", "ROLE_USER")
	cookie := login(t, r, "big@example.com")

	req := multipartRequest(t, http.MethodPost, "/boardwrite",
		map[string]string{"title": "Too big", "content": "x"},
		map[string]string{
			"small.txt": "fits",
			"large.bin": strings.Repeat("x", 1<<20+1),
		})
	rec := do(r, req, cookie)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())

	stored := 0
	require.NoError(t, filepath.WalkDir(uploadDir, func(_ string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			stored++
		}
		return err
	}))
	assert.Zero(t, stored)

	rec = get(r, "/board", cookie)
	var list struct {
		Posts []models.Post `json:"posts"`
	}
	decode(t, rec, &list)
	assert.Empty(t, list.Posts)
}
