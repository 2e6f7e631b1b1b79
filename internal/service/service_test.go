package service_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"task-manager/internal/core/auth"
	"task-manager/internal/core/storage"
	"task-manager/internal/domain"
	"task-manager/internal/repo"
	"task-manager/internal/service"
	"task-manager/internal/testkit"
	"task-manager/pkg/utils"
)

type fakeNotifier struct {
	mu       sync.Mutex
	welcome  []string
	canceled []string
	err      error
}

func (n *fakeNotifier) SendWelcome(_ context.Context, email, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcome = append(n.welcome, email)
	return n.err
}

func (n *fakeNotifier) SendCancelation(_ context.Context, email, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.canceled = append(n.canceled, email)
	return n.err
}

type env struct {
	db      *gorm.DB
	users   *repo.UserRepo
	tokens  *service.TokenService
	authn   *service.Authenticator
	avatars *service.AvatarService
	store   *storage.Memory
	notify  *fakeNotifier
	svc     *service.UserService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testkit.OpenDB(t)
	users := repo.NewUserRepo(db)
	jwter, err := auth.NewJWTer("test-secret", "test", 0)
	require.NoError(t, err)
	tokens := service.NewTokenService(jwter, repo.NewTokenRepo(db))
	store := storage.NewMemory()
	avatars := service.NewAvatarService(users, store, nil, service.AvatarOpts{})
	n := &fakeNotifier{}
	svc := service.NewUserService(service.UserDeps{
		Users:    users,
		Hasher:   auth.NewHasher(bcrypt.MinCost, 4),
		Tokens:   tokens,
		Cascade:  service.NewOwnershipCascade(repo.NewTxManager(db)),
		Avatars:  avatars,
		Notifier: n,
	})
	return &env{
		db: db, users: users, tokens: tokens,
		authn:   service.NewAuthenticator(users, tokens),
		avatars: avatars, store: store, notify: n, svc: svc,
	}
}

func (e *env) signup(t *testing.T, name, email, pw string) (*domain.User, string) {
	t.Helper()
	u, tok, err := e.svc.Signup(context.Background(), service.SignupInput{Name: name, Email: email, Password: pw})
	require.NoError(t, err)
	return u, tok
}

func bearer(tok string) string { return "Bearer " + tok }

func TestSignupThenLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u, tok := e.signup(t, "  Ann ", " Ann@X.com ", "longpass1")

	assert.Equal(t, "Ann", u.Name)
	assert.Equal(t, "ann@x.com", u.Email)
	assert.NotEqual(t, "longpass1", u.PasswordHash)
	assert.NotEmpty(t, tok)
	assert.Equal(t, []string{"ann@x.com"}, e.notify.welcome)

	got, tok2, err := e.svc.Login(ctx, "ann@x.com", "longpass1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.NotEqual(t, tok, tok2)

	active, err := e.tokens.Active(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{tok, tok2}, active)
}

func TestLogin_PasswordTrimmedBothSides(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.signup(t, "Ann", "ann@x.com", " longpass1 ")

	for _, pw := range []string{"longpass1", "  longpass1\t"} {
		_, _, err := e.svc.Login(ctx, "ann@x.com", pw)
		assert.NoError(t, err, pw)
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.signup(t, "Ann", "ann@x.com", "longpass1")

	_, _, errWrongPw := e.svc.Login(ctx, "ann@x.com", "wrong")
	_, _, errNoUser := e.svc.Login(ctx, "nobody@x.com", "longpass1")
	require.ErrorIs(t, errWrongPw, domain.ErrAuthentication)
	require.ErrorIs(t, errNoUser, domain.ErrAuthentication)
	assert.Equal(t, errWrongPw.Error(), errNoUser.Error())
}

func TestSignup_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	cases := []struct {
		name  string
		in    service.SignupInput
		field string
	}{
		{"password word", service.SignupInput{Name: "A", Email: "a@x.com", Password: "myPassword123"}, "password"},
		{"short password", service.SignupInput{Name: "A", Email: "a@x.com", Password: " abc123 "}, "password"},
		{"bad email", service.SignupInput{Name: "A", Email: "nope", Password: "longpass1"}, "email"},
		{"blank name", service.SignupInput{Name: "  ", Email: "a@x.com", Password: "longpass1"}, "name"},
		{"negative age", service.SignupInput{Name: "A", Email: "a@x.com", Password: "longpass1", Age: -1}, "age"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := e.svc.Signup(ctx, tc.in)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
	assert.Empty(t, e.notify.welcome)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	e := newEnv(t)
	e.signup(t, "Ann", "ann@x.com", "longpass1")
	_, _, err := e.svc.Signup(context.Background(), service.SignupInput{Name: "B", Email: "ANN@x.com", Password: "longpass2"})
	require.ErrorIs(t, err, domain.ErrDuplicateKey)
	var de *domain.DuplicateKeyError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "email", de.Field)
}

func TestSignup_NotifierErrorIgnored(t *testing.T) {
	e := newEnv(t)
	e.notify.err = errors.New("smtp down")
	_, tok := e.signup(t, "Ann", "ann@x.com", "longpass1")
	assert.NotEmpty(t, tok)
}

func TestAuthenticate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u, tok := e.signup(t, "Ann", "ann@x.com", "longpass1")

	got, used, err := e.authn.Authenticate(ctx, bearer(tok))
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, tok, used)

	_, _, err = e.authn.Authenticate(ctx, "bearer "+tok)
	assert.NoError(t, err)

	for _, h := range []string{"", "Bearer", "Basic " + tok, "Bearer garbage", tok} {
		_, _, err := e.authn.Authenticate(ctx, h)
		assert.ErrorIs(t, err, domain.ErrAuthentication, h)
	}

	// 签名有效但不在活跃集合
	other, err := auth.NewJWTer("test-secret", "test", 0)
	require.NoError(t, err)
	forged, err := other.Issue(u.ID)
	require.NoError(t, err)
	_, _, err = e.authn.Authenticate(ctx, bearer(forged))
	assert.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestLogoutRevokesOnlyThatToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.signup(t, "Ann", "ann@x.com", "longpass1")
	u, t1, err := e.svc.Login(ctx, "ann@x.com", "longpass1")
	require.NoError(t, err)
	_, t2, err := e.svc.Login(ctx, "ann@x.com", "longpass1")
	require.NoError(t, err)

	require.NoError(t, e.svc.Logout(ctx, u.ID, t1))
	require.NoError(t, e.svc.Logout(ctx, u.ID, t1))

	_, _, err = e.authn.Authenticate(ctx, bearer(t1))
	assert.ErrorIs(t, err, domain.ErrAuthentication)
	_, _, err = e.authn.Authenticate(ctx, bearer(t2))
	assert.NoError(t, err)
}

func TestLogoutAll(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u, t0 := e.signup(t, "Ann", "ann@x.com", "longpass1")
	_, t1, err := e.svc.Login(ctx, "ann@x.com", "longpass1")
	require.NoError(t, err)

	require.NoError(t, e.svc.LogoutAll(ctx, u.ID))
	for _, tok := range []string{t0, t1} {
		_, _, err := e.authn.Authenticate(ctx, bearer(tok))
		assert.ErrorIs(t, err, domain.ErrAuthentication)
	}
	active, err := e.tokens.Active(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	// 之后签发的 token 不受影响
	_, t2, err := e.svc.Login(ctx, "ann@x.com", "longpass1")
	require.NoError(t, err)
	got, tok, err := e.authn.Authenticate(ctx, bearer(t2))
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, t2, tok)
	active, err = e.tokens.Active(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{t2}, active)

	assert.ErrorIs(t, e.svc.LogoutAll(ctx, "ghost"), domain.ErrNotFound)
}

func TestConcurrentLoginsAllSurvive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u, _ := e.signup(t, "Ann", "ann@x.com", "longpass1")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := e.svc.Login(ctx, "ann@x.com", "longpass1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	active, err := e.tokens.Active(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, active, n+1)
}

func TestUpdate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u, tok := e.signup(t, "Ann", "ann@x.com", "longpass1")

	name, age := " Annie ", 0
	got, err := e.svc.Update(ctx, u, service.Patch{Name: &name, Age: &age})
	require.NoError(t, err)
	assert.Equal(t, "Annie", got.Name)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)

	pw := "brandnew1"
	got, err = e.svc.Update(ctx, got, service.Patch{Password: &pw})
	require.NoError(t, err)
	assert.NotEqual(t, u.PasswordHash, got.PasswordHash)
	_, _, err = e.svc.Login(ctx, "ann@x.com", "longpass1")
	assert.ErrorIs(t, err, domain.ErrAuthentication)
	_, _, err = e.svc.Login(ctx, "ann@x.com", "brandnew1")
	assert.NoError(t, err)

	// 资料更新不影响已有会话
	_, _, err = e.authn.Authenticate(ctx, bearer(tok))
	assert.NoError(t, err)

	bad := "passwordy1"
	_, err = e.svc.Update(ctx, got, service.Patch{Password: &bad})
	assert.True(t, domain.IsValidation(err))

	e.signup(t, "Bob", "bob@x.com", "longpass1")
	dup := "BOB@x.com"
	_, err = e.svc.Update(ctx, got, service.Patch{Email: &dup})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func TestStaleSnapshotKeepsNewPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u, _ := e.signup(t, "Ann", "ann@x.com", "longpass1")
	staleA, staleB := *u, *u

	pw := "brandnew1"
	_, err := e.svc.Update(ctx, &staleA, service.Patch{Password: &pw})
	require.NoError(t, err)

	// 另一台设备拿着旧快照上传头像、改名
	withAvatar, err := e.avatars.Set(ctx, &staleB, "me.png", pngBytes(t, 8, 8))
	require.NoError(t, err)
	assert.True(t, withAvatar.HasAvatar())
	name := "Annie"
	got, err := e.svc.Update(ctx, &staleB, service.Patch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Annie", got.Name)
	assert.True(t, got.HasAvatar())

	_, _, err = e.svc.Login(ctx, "ann@x.com", "brandnew1")
	assert.NoError(t, err)
	_, _, err = e.svc.Login(ctx, "ann@x.com", "longpass1")
	assert.ErrorIs(t, err, domain.ErrAuthentication)

	// 旧快照没有头像，删除仍以库里为准
	cleared, err := e.avatars.Delete(ctx, &staleB)
	require.NoError(t, err)
	assert.False(t, cleared.HasAvatar())
	assert.Equal(t, "Annie", cleared.Name)
	_, err = e.avatars.Get(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPatchFromJSON(t *testing.T) {
	p, err := service.PatchFromJSON([]byte(`{"name":"A","age":3}`))
	require.NoError(t, err)
	require.NotNil(t, p.Name)
	assert.Equal(t, "A", *p.Name)
	assert.Equal(t, 3, *p.Age)
	assert.Nil(t, p.Email)

	_, err = service.PatchFromJSON([]byte(`{"name":"A","tokens":[]}`))
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "tokens", ve.Field)
	assert.Equal(t, "invalid updates", ve.Reason)

	_, err = service.PatchFromJSON([]byte(`[1]`))
	assert.True(t, domain.IsValidation(err))
	_, err = service.PatchFromJSON([]byte(`{"age":"x"}`))
	assert.True(t, domain.IsValidation(err))
}

func TestDeleteCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u, tok := e.signup(t, "Ann", "ann@x.com", "longpass1")
	other, _ := e.signup(t, "Bob", "bob@x.com", "longpass1")

	tasks := repo.NewTaskRepo(e.db)
	for _, d := range []string{"a", "b"} {
		require.NoError(t, tasks.Create(ctx, &domain.Task{ID: utils.NewID(), OwnerID: u.ID, Description: d}))
	}
	require.NoError(t, tasks.Create(ctx, &domain.Task{ID: utils.NewID(), OwnerID: other.ID, Description: "keep"}))
	u, err := e.avatars.Set(ctx, u, "me.png", pngBytes(t, 10, 10))
	require.NoError(t, err)

	require.NoError(t, e.svc.Delete(ctx, u))

	_, err = e.users.FindByID(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	left, err := tasks.FindByOwner(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
	kept, err := tasks.FindByOwner(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
	active, err := e.tokens.Active(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
	_, _, err = e.authn.Authenticate(ctx, bearer(tok))
	assert.ErrorIs(t, err, domain.ErrAuthentication)
	_, err = e.store.Get(ctx, service.AvatarKey(u.ID))
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	assert.Equal(t, []string{"ann@x.com"}, e.notify.canceled)

	assert.ErrorIs(t, e.svc.DeleteByID(ctx, u.ID), domain.ErrNotFound)
}

func TestDeleteUser_MissingRollsBack(t *testing.T) {
	e := newEnv(t)
	c := service.NewOwnershipCascade(repo.NewTxManager(e.db))
	_, err := c.DeleteUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAvatar(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u, _ := e.signup(t, "Ann", "ann@x.com", "longpass1")

	_, err := e.avatars.Get(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.avatars.Set(ctx, u, "doc.pdf", pngBytes(t, 4, 4))
	assert.True(t, domain.IsValidation(err))
	_, err = e.avatars.Set(ctx, u, "fake.png", []byte("not an image"))
	assert.True(t, domain.IsValidation(err))
	_, err = e.avatars.Set(ctx, u, "big.png", make([]byte, service.DefaultAvatarMaxBytes+1))
	assert.True(t, domain.IsValidation(err))

	u, err = e.avatars.Set(ctx, u, "Me.JPG.png", pngBytes(t, 40, 20))
	require.NoError(t, err)
	assert.Equal(t, service.AvatarKey(u.ID), u.AvatarKey)

	b, err := e.avatars.Get(ctx, u.ID)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, service.DefaultAvatarSize, service.DefaultAvatarSize), img.Bounds())

	u, err = e.avatars.Delete(ctx, u)
	require.NoError(t, err)
	assert.False(t, u.HasAvatar())
	_, err = e.avatars.Get(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.avatars.Get(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type countingCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deletes int
}

func (c *countingCache) GetOrLoad(ctx context.Context, key string, _ time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	c.mu.Lock()
	b, ok := c.data[key]
	c.mu.Unlock()
	if ok {
		return b, nil
	}
	b, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.data[key] = b
	c.mu.Unlock()
	return b, nil
}

func (c *countingCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.deletes++
	return nil
}

func TestAvatar_CacheInvalidatedOnWrite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u, _ := e.signup(t, "Ann", "ann@x.com", "longpass1")
	cc := &countingCache{data: map[string][]byte{}}
	av := service.NewAvatarService(e.users, e.store, cc, service.AvatarOpts{Size: 8})

	u, err := av.Set(ctx, u, "a.png", pngBytes(t, 4, 4))
	require.NoError(t, err)
	first, err := av.Get(ctx, u.ID)
	require.NoError(t, err)

	_, err = av.Set(ctx, u, "b.png", pngBytes(t, 16, 2))
	require.NoError(t, err)
	second, err := av.Get(ctx, u.ID)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, cc.deletes)
}
