package service

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	"image/png"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"task-manager/internal/core/storage"
	"task-manager/internal/domain"
)

const (
	DefaultAvatarMaxBytes = 1_000_000
	DefaultAvatarSize     = 250
	AvatarContentType     = "image/png"
)

// AvatarStore 由 storage.MinioStore / storage.Memory 实现
type AvatarStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// AvatarCache 由 cache.Cache 实现；nil 接收者安全
type AvatarCache interface {
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type AvatarService struct {
	users    domain.UserRepository
	store    AvatarStore
	cache    AvatarCache
	ttl      time.Duration
	maxBytes int64
	size     int
}

type AvatarOpts struct {
	MaxBytes int64
	Size     int
	CacheTTL time.Duration
}

// NewAvatarService cache 可为 nil
func NewAvatarService(users domain.UserRepository, store AvatarStore, cache AvatarCache, o AvatarOpts) *AvatarService {
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultAvatarMaxBytes
	}
	if o.Size <= 0 {
		o.Size = DefaultAvatarSize
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 10 * time.Minute
	}
	if cache == nil {
		cache = noCache{}
	}
	return &AvatarService{users: users, store: store, cache: cache, ttl: o.CacheTTL, maxBytes: o.MaxBytes, size: o.Size}
}

// MaxBytes HTTP 层用来限制上传体积
func (s *AvatarService) MaxBytes() int64 { return s.maxBytes }

func AvatarKey(userID string) string { return "avatars/" + userID + ".png" }

func isImageName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// ProcessAvatar 解码 jpg/png，缩放到 size x size，统一输出 PNG
func ProcessAvatar(data []byte, size int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.ValidationError{Field: "avatar", Reason: "please upload an image"}
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, errors.Wrap(err, "encode avatar")
	}
	return buf.Bytes(), nil
}

// Set 返回更新后的用户
func (s *AvatarService) Set(ctx context.Context, u *domain.User, filename string, data []byte) (*domain.User, error) {
	if !isImageName(filename) {
		return nil, &domain.ValidationError{Field: "avatar", Reason: "please upload an image"}
	}
	if int64(len(data)) > s.maxBytes {
		return nil, &domain.ValidationError{Field: "avatar", Reason: "file too large"}
	}
	out, err := ProcessAvatar(data, s.size)
	if err != nil {
		return nil, err
	}
	key := AvatarKey(u.ID)
	if err := s.store.Put(ctx, key, out, AvatarContentType); err != nil {
		return nil, errors.Wrap(err, "store avatar")
	}
	if err := s.users.SetAvatarKey(ctx, u.ID, key); err != nil {
		return nil, err
	}
	s.invalidate(ctx, u.ID)
	return s.users.FindByID(ctx, u.ID)
}

// Delete 以库里的当前行为准，调用方的快照可能已过期
func (s *AvatarService) Delete(ctx context.Context, u *domain.User) (*domain.User, error) {
	cur, err := s.users.FindByID(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if !cur.HasAvatar() {
		return cur, nil
	}
	if err := s.users.SetAvatarKey(ctx, cur.ID, ""); err != nil {
		return nil, err
	}
	if err := s.purge(ctx, cur.ID, cur.AvatarKey); err != nil {
		return nil, err
	}
	return s.users.FindByID(ctx, u.ID)
}

// Get 用户不存在或没有头像都是 ErrNotFound
func (s *AvatarService) Get(ctx context.Context, userID string) ([]byte, error) {
	return s.cache.GetOrLoad(ctx, userID, s.ttl, func(ctx context.Context) ([]byte, error) {
		u, err := s.users.FindByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !u.HasAvatar() {
			return nil, domain.ErrNotFound
		}
		b, err := s.store.Get(ctx, u.AvatarKey)
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, domain.ErrNotFound
		}
		return b, err
	})
}

func (s *AvatarService) purge(ctx context.Context, userID, key string) error {
	s.invalidate(ctx, userID)
	return s.store.Delete(ctx, key)
}

func (s *AvatarService) invalidate(ctx context.Context, userID string) {
	_ = s.cache.Delete(ctx, userID)
}

type noCache struct{}

func (noCache) GetOrLoad(ctx context.Context, _ string, _ time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	return load(ctx)
}

func (noCache) Delete(context.Context, string) error { return nil }
