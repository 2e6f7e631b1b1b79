package ez

import (
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"task-manager/internal/domain"
	resp "task-manager/internal/transport/http/response"
	"task-manager/pkg/utils"
)

// Hook
type CrudHooks[T any] struct {
	BeforeCreate func(c *gin.Context, m *T) error
	BeforeUpdate func(c *gin.Context, m *T) error
	ScopeList    func(c *gin.Context, q *gorm.DB) *gorm.DB // 自定义筛选/排序
	AfterGet     func(c *gin.Context, m *T)
}

// CrudConfig 归属资源的 CRUD：所有读写都带 owner 条件，看不到别人的数据
type CrudConfig[T any] struct {
	DB    *gorm.DB
	Group *gin.RouterGroup // 已鉴权分组（能拿 userId）
	Path  string
	New   func() *T

	Hooks CrudHooks[T]

	AllowCreate bool
	AllowList   bool
	AllowGet    bool
	AllowUpdate bool
	AllowDelete bool

	IDField    string // 默认 "ID"
	OwnerField string // 默认优先 "OwnerID"，其次 "UserID"/"UID"

	IDGen func() string // 默认 utils.NewID

	// PATCH 允许写的列；零值（false/0/""）也会写入
	UpdateColumns []string

	// 列表排序（列名按模型字段自动转 snake_case），为空则按 ID DESC
	OrderBy string // 例如 "created_at DESC"
}

// 反射 & 工具
func (c *CrudConfig[T]) idFieldCandidates() []string {
	if c.IDField != "" {
		return []string{c.IDField, "ID", "Id"}
	}
	return []string{"ID", "Id"}
}

func (c *CrudConfig[T]) ownerFieldCandidates() []string {
	if c.OwnerField != "" {
		return []string{c.OwnerField, "OwnerID", "UserID", "UID"}
	}
	return []string{"OwnerID", "UserID", "UID"}
}

func getStringFieldPtr(obj any, candidates []string) (*string, bool) {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Ptr {
		return nil, false
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return nil, false
	}
	t := v.Type()
	for _, cand := range candidates {
		f, ok := t.FieldByName(cand)
		// 未导出字段跳过
		if !ok || f.PkgPath != "" || len(f.Index) != 1 {
			continue
		}
		fv := v.Field(f.Index[0])
		if fv.Kind() == reflect.String && fv.CanSet() {
			return fv.Addr().Interface().(*string), true
		}
	}
	return nil, false
}

func writeStringField(obj any, candidates []string, val string) bool {
	p, ok := getStringFieldPtr(obj, candidates)
	if !ok {
		return false
	}
	*p = val
	return true
}

func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

func toSnake(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	rs := []rune(s)
	for i, r := range rs {
		if unicode.IsUpper(r) {
			// ID、OwnerID 这类连续大写不拆开
			if i > 0 && !unicode.IsUpper(rs[i-1]) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Crud 注册（无需模型实现任何接口）；表结构由迁移负责
func Crud[T any](cfg CrudConfig[T]) {
	// 默认放开所有操作
	if !cfg.AllowCreate && !cfg.AllowGet && !cfg.AllowList && !cfg.AllowUpdate && !cfg.AllowDelete {
		cfg.AllowCreate, cfg.AllowList, cfg.AllowGet, cfg.AllowUpdate, cfg.AllowDelete = true, true, true, true, true
	}
	if cfg.IDGen == nil {
		cfg.IDGen = utils.NewID
	}

	idFieldNames := cfg.idFieldCandidates()
	ownerFieldNames := cfg.ownerFieldCandidates()

	// scoped 构造 id+owner 条件；id 为空只按 owner
	scoped := func(id, uid string) *T {
		f := cfg.New()
		if id != "" {
			_ = writeStringField(f, idFieldNames, id)
		}
		_ = writeStringField(f, ownerFieldNames, uid)
		return f
	}

	owner := func(c *gin.Context) (string, bool) {
		uid := c.GetString(CtxUserID)
		if uid == "" {
			c.JSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, ""))
			return "", false
		}
		return uid, true
	}

	// Create
	if cfg.AllowCreate {
		cfg.Group.POST(cfg.Path, func(c *gin.Context) {
			uid, ok := owner(c)
			if !ok {
				return
			}
			m := cfg.New()
			if err := c.ShouldBindJSON(m); err != nil {
				c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
				return
			}
			// ID/Owner 由服务端决定，忽略客户端传值
			if !writeStringField(m, idFieldNames, cfg.IDGen()) || !writeStringField(m, ownerFieldNames, uid) {
				Fail(c, errors.New("crud: id or owner field not found"))
				return
			}
			if cfg.Hooks.BeforeCreate != nil {
				if err := cfg.Hooks.BeforeCreate(c, m); err != nil {
					Fail(c, err)
					return
				}
			}
			if err := cfg.DB.WithContext(c).Create(m).Error; err != nil {
				Fail(c, errors.WithStack(err))
				return
			}
			if cfg.Hooks.AfterGet != nil {
				cfg.Hooks.AfterGet(c, m)
			}
			c.JSON(http.StatusOK, resp.OK(m))
		})
	}

	// List（我的）
	if cfg.AllowList {
		cfg.Group.GET(cfg.Path, func(c *gin.Context) {
			uid, ok := owner(c)
			if !ok {
				return
			}
			page := atoiDefault(c.Query("page"), 1)
			size := atoiDefault(c.Query("size"), 20)
			if size > 100 {
				size = 20
			}
			offset := (page - 1) * size

			// 用结构体 Where 自动映射列名，避免手写 owner_id
			q := cfg.DB.WithContext(c).Model(cfg.New()).Where(scoped("", uid))
			if cfg.Hooks.ScopeList != nil {
				q = cfg.Hooks.ScopeList(c, q)
			}
			// Count 和 Find 共用条件，Session 保证互不污染
			q = q.Session(&gorm.Session{})

			var total int64
			if err := q.Count(&total).Error; err != nil {
				Fail(c, errors.WithStack(err))
				return
			}

			var items []T
			if cfg.OrderBy != "" {
				q = q.Order(cfg.OrderBy)
			} else {
				q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: toSnake(idFieldNames[0])}, Desc: true})
			}
			if err := q.Limit(size).Offset(offset).Find(&items).Error; err != nil {
				Fail(c, errors.WithStack(err))
				return
			}
			if cfg.Hooks.AfterGet != nil {
				for i := range items {
					cfg.Hooks.AfterGet(c, &items[i])
				}
			}
			if items == nil {
				items = []T{}
			}
			c.JSON(http.StatusOK, resp.OK(gin.H{
				"list": items, "total": total, "page": page, "size": size,
			}))
		})
	}

	// first 按 id+owner 取一条；别人的数据一律当作不存在
	first := func(c *gin.Context, uid string) (*T, bool) {
		m := cfg.New()
		err := cfg.DB.WithContext(c).Where(scoped(c.Param("id"), uid)).First(m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			Fail(c, domain.ErrNotFound)
			return nil, false
		}
		if err != nil {
			Fail(c, errors.WithStack(err))
			return nil, false
		}
		return m, true
	}

	// Get
	if cfg.AllowGet {
		cfg.Group.GET(cfg.Path+"/:id", func(c *gin.Context) {
			uid, ok := owner(c)
			if !ok {
				return
			}
			m, ok := first(c, uid)
			if !ok {
				return
			}
			if cfg.Hooks.AfterGet != nil {
				cfg.Hooks.AfterGet(c, m)
			}
			c.JSON(http.StatusOK, resp.OK(m))
		})
	}

	// Update：先取出再把请求体覆盖上去，没传的字段保持原值
	if cfg.AllowUpdate {
		cfg.Group.PATCH(cfg.Path+"/:id", func(c *gin.Context) {
			uid, ok := owner(c)
			if !ok {
				return
			}
			m, ok := first(c, uid)
			if !ok {
				return
			}
			id := c.Param("id")
			if err := c.ShouldBindJSON(m); err != nil {
				c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
				return
			}
			// 强制保持 ID/Owner
			_ = writeStringField(m, idFieldNames, id)
			_ = writeStringField(m, ownerFieldNames, uid)

			if cfg.Hooks.BeforeUpdate != nil {
				if err := cfg.Hooks.BeforeUpdate(c, m); err != nil {
					Fail(c, err)
					return
				}
			}
			q := cfg.DB.WithContext(c).Model(cfg.New()).Where(scoped(id, uid))
			if len(cfg.UpdateColumns) > 0 {
				q = q.Select(cfg.UpdateColumns)
			}
			if err := q.Updates(m).Error; err != nil {
				Fail(c, errors.WithStack(err))
				return
			}
			if cfg.Hooks.AfterGet != nil {
				cfg.Hooks.AfterGet(c, m)
			}
			c.JSON(http.StatusOK, resp.OK(m))
		})
	}

	// Delete
	if cfg.AllowDelete {
		cfg.Group.DELETE(cfg.Path+"/:id", func(c *gin.Context) {
			uid, ok := owner(c)
			if !ok {
				return
			}
			id := c.Param("id")
			res := cfg.DB.WithContext(c).Where(scoped(id, uid)).Delete(cfg.New())
			if res.Error != nil {
				Fail(c, errors.WithStack(res.Error))
				return
			}
			if res.RowsAffected == 0 {
				Fail(c, domain.ErrNotFound)
				return
			}
			c.JSON(http.StatusOK, resp.OK(gin.H{"id": id}))
		})
	}
}
