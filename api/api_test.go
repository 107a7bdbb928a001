package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/firstmakers/fm-api/cache"
	"github.com/firstmakers/fm-api/domain"
	"github.com/firstmakers/fm-api/services"
	"github.com/firstmakers/fm-api/token"
)

// --- In-memory fakes ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}
	if _, ok := r.users[user.Username]; ok {
		return domain.ErrUsernameTaken
	}
	clone := *user
	clone.CreatedAt = time.Now()
	r.users[user.Username] = &clone
	return nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) FindByUsernameAndRefreshToken(_ context.Context, username, refreshToken string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok || u.RefreshToken == "" || u.RefreshToken != refreshToken {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) SetRefreshTokenIfAbsent(_ context.Context, username, tok string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok || u.RefreshToken != "" {
		return false, nil
	}
	u.RefreshToken = tok
	return true, nil
}

func (r *fakeUserRepo) ClearRefreshToken(_ context.Context, username, refreshToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok || u.RefreshToken == "" || u.RefreshToken != refreshToken {
		return domain.ErrRefreshTokenNotFound
	}
	u.RefreshToken = ""
	return nil
}

func (r *fakeUserRepo) UpdatePasswordHash(_ context.Context, email, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			u.PasswordHash = passwordHash
			return nil
		}
	}
	return domain.ErrUserNotFound
}

func (r *fakeUserRepo) List(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		clone := *u
		out = append(out, &clone)
	}
	return out, nil
}

type fakeDeviceRepo struct {
	mu      sync.Mutex
	devices map[string]*domain.Device
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: make(map[string]*domain.Device)}
}

func deviceKey(username, deviceName string) string {
	return username + "/" + deviceName
}

func (r *fakeDeviceRepo) List(_ context.Context, username string) ([]*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.Device{}
	for _, d := range r.devices {
		if d.Username == username {
			clone := *d
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeDeviceRepo) Get(_ context.Context, username, deviceName string) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceKey(username, deviceName)]
	if !ok {
		return nil, domain.ErrDeviceNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *fakeDeviceRepo) Create(_ context.Context, device *domain.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := deviceKey(device.Username, device.DeviceName)
	if _, ok := r.devices[key]; ok {
		return domain.ErrDeviceExists
	}
	clone := *device
	if clone.Pins == nil {
		clone.Pins = map[string]any{}
	}
	clone.Updated = time.Now()
	r.devices[key] = &clone
	return nil
}

func (r *fakeDeviceRepo) UpdatePins(_ context.Context, username, deviceName string, pins map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceKey(username, deviceName)]
	if !ok {
		return domain.ErrDeviceNotFound
	}
	for k, v := range pins {
		d.Pins[k] = v
	}
	d.Updated = time.Now()
	return nil
}

func (r *fakeDeviceRepo) Delete(_ context.Context, username, deviceName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := deviceKey(username, deviceName)
	if _, ok := r.devices[key]; !ok {
		return domain.ErrDeviceNotFound
	}
	delete(r.devices, key)
	return nil
}

func (r *fakeDeviceRepo) SetPin(_ context.Context, username, deviceName, pin string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := deviceKey(username, deviceName)
	d, ok := r.devices[key]
	if !ok {
		d = &domain.Device{Username: username, DeviceName: deviceName, Pins: map[string]any{}}
		r.devices[key] = d
	}
	d.Pins[pin] = value
	d.Updated = time.Now()
	return nil
}

func (r *fakeDeviceRepo) UnsetPin(_ context.Context, username, deviceName, pin string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceKey(username, deviceName)]
	if !ok {
		return domain.ErrDeviceNotFound
	}
	delete(d.Pins, pin)
	d.Updated = time.Now()
	return nil
}

func (r *fakeDeviceRepo) ListActive(_ context.Context, since time.Time) ([]*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.Device{}
	for _, d := range r.devices {
		if !d.Updated.Before(since) {
			clone := *d
			out = append(out, &clone)
		}
	}
	return out, nil
}

type fakeSketchRepo struct {
	mu       sync.Mutex
	nextID   int
	sketches map[string]*domain.Sketch
}

func newFakeSketchRepo() *fakeSketchRepo {
	return &fakeSketchRepo{sketches: make(map[string]*domain.Sketch)}
}

func (r *fakeSketchRepo) List(_ context.Context, username string) ([]*domain.Sketch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.Sketch{}
	for _, s := range r.sketches {
		if s.Username == username {
			clone := *s
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeSketchRepo) Get(_ context.Context, username, id string) (*domain.Sketch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sketches[id]
	if !ok || s.Username != username {
		return nil, domain.ErrSketchNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *fakeSketchRepo) FindByTitle(_ context.Context, username, title string) (*domain.Sketch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sketches {
		if s.Username == username && s.Title == title {
			clone := *s
			return &clone, nil
		}
	}
	return nil, domain.ErrSketchNotFound
}

func (r *fakeSketchRepo) Create(_ context.Context, sketch *domain.Sketch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sketches {
		if s.Username == sketch.Username && s.Title == sketch.Title {
			return domain.ErrSketchTitleTaken
		}
	}
	r.nextID++
	sketch.ID = fmt.Sprintf("sketch-%d", r.nextID)
	sketch.CreatedAt = time.Now()
	sketch.UpdatedAt = sketch.CreatedAt
	clone := *sketch
	r.sketches[sketch.ID] = &clone
	return nil
}

func (r *fakeSketchRepo) Update(_ context.Context, username, id string, update domain.SketchUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sketches[id]
	if !ok || s.Username != username {
		return domain.ErrSketchNotFound
	}
	if update.Title != nil {
		for _, other := range r.sketches {
			if other.ID != id && other.Username == username && other.Title == *update.Title {
				return domain.ErrSketchTitleTaken
			}
		}
		s.Title = *update.Title
	}
	if update.Description != nil {
		s.Description = *update.Description
	}
	if update.Blocks != nil {
		s.Blocks = *update.Blocks
	}
	if update.Tags != nil {
		s.Tags = update.Tags
	}
	s.UpdatedAt = time.Now()
	return nil
}

func (r *fakeSketchRepo) Delete(_ context.Context, username, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sketches[id]
	if !ok || s.Username != username {
		return domain.ErrSketchNotFound
	}
	delete(r.sketches, id)
	return nil
}

// plainHasher keeps password handling transparent in tests.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Verify(hashedPassword, password string) error {
	if hashedPassword != "plain:"+password {
		return fmt.Errorf("password mismatch")
	}
	return nil
}

type sentMail struct {
	To      string
	Subject string
	HTML    string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *captureMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, HTML: htmlBody})
	return nil
}

func (m *captureMailer) last() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// --- Server fixture ---

type serverFixture struct {
	echo     *echo.Echo
	users    *fakeUserRepo
	devices  *fakeDeviceRepo
	sketches *fakeSketchRepo
	mail     *captureMailer
	codec    *token.Codec
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	users := newFakeUserRepo()
	devices := newFakeDeviceRepo()
	sketches := newFakeSketchRepo()
	mail := &captureMailer{}

	codec := token.NewCodec("test-secret")
	issuer := token.NewIssuer(codec, time.Hour)
	refresh := token.NewRefreshManager(users, issuer)
	intents := token.NewIntentSigner(codec, time.Hour, 30*24*time.Hour)
	accounts := services.NewAccountService(
		users, plainHasher{}, issuer, refresh, intents, mail, "https://app.firstmakers.test")

	tokenCache := cache.NewMemoryTokenCache()
	t.Cleanup(tokenCache.Close)

	e := echo.New()
	New(accounts, devices, sketches, codec, tokenCache).RegisterRoutes(e)

	return &serverFixture{
		echo:     e,
		users:    users,
		devices:  devices,
		sketches: sketches,
		mail:     mail,
		codec:    codec,
	}
}

// do performs a JSON request against the fixture server. An empty bearerToken
// sends the request unauthenticated.
func (f *serverFixture) do(method, path, bearerToken string, body any) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = strings.NewReader(string(encoded))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearerToken != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearerToken)
	}

	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

// signup registers a user and returns a valid access token for it.
func (f *serverFixture) signup(t *testing.T, username, email, password string) string {
	t.Helper()

	rec := f.do(http.MethodPost, "/auth/signup", "", echo.Map{
		"username": username,
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/auth/signin", "", echo.Map{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotEmpty(t, result.AccessToken)
	return result.AccessToken
}
