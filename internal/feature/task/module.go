package task

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"task-manager/internal/domain"
	"task-manager/internal/transport/http/ez"
)

// Module /tasks 归属当前用户；管理端可按用户查看
type Module struct {
	DB    *gorm.DB
	Tasks domain.TaskRepository
}

func (Module) Priority() int { return 10 }

func (m Module) MountAPI(g *gin.RouterGroup) {
	ez.Crud(ez.CrudConfig[TaskModel]{
		DB:            m.DB,
		Group:         g,
		Path:          "/tasks",
		New:           func() *TaskModel { return &TaskModel{} },
		UpdateColumns: []string{"description", "completed", "updated_at"},
		OrderBy:       "created_at DESC",
		Hooks: ez.CrudHooks[TaskModel]{
			BeforeCreate: func(_ *gin.Context, t *TaskModel) error { return t.check() },
			BeforeUpdate: func(_ *gin.Context, t *TaskModel) error { return t.check() },
			ScopeList:    scopeList,
		},
	})
}

func (m Module) MountAdmin(g *gin.RouterGroup) {
	type out struct {
		Total int           `json:"total"`
		Items []domain.Task `json:"items"`
	}
	ez.RegisterAction(ez.New(g), ez.Action[struct{}, out]{
		Method: http.MethodGet,
		Path:   "/users/:id/tasks",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (out, error) {
			ts, err := m.Tasks.FindByOwner(c.Request.Context(), c.Param("id"))
			if err != nil {
				return out{}, err
			}
			return out{Total: len(ts), Items: ts}, nil
		},
	})
}

// check 复用领域校验，并把规范化结果写回
func (t *TaskModel) check() error {
	d := domain.Task{OwnerID: t.OwnerID, Description: t.Description}
	d.Normalize()
	if err := d.Validate(); err != nil {
		return err
	}
	t.Description = d.Description
	return nil
}

var sortable = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"description": "description",
	"completed":   "completed",
}

// scopeList 支持 ?completed=true|false 和 ?sortBy=createdAt:desc
func scopeList(c *gin.Context, q *gorm.DB) *gorm.DB {
	if v := c.Query("completed"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			q = q.Where("completed = ?", b)
		}
	}
	if v := c.Query("sortBy"); v != "" {
		field, dir, _ := strings.Cut(v, ":")
		if col, ok := sortable[field]; ok {
			q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: strings.EqualFold(dir, "desc")})
		}
	}
	return q
}
