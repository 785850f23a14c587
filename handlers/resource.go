package handlers

import (
	"context"
	"net/http"

	"github.com/Jorge523757/DIGITSOFT/models"
	"github.com/gin-gonic/gin"
)

// resource wires the usual list/detail/create/update/delete/active endpoints
// of a staff-maintained entity. Nil operations are not routed.
type resource[T any, I any, F any] struct {
	list   func(ctx context.Context, filter F) (*models.PaginatedList[T], error)
	get    func(ctx context.Context, id int) (*T, error)
	create func(ctx context.Context, input *I) (*T, error)
	update func(ctx context.Context, id int, input *I) (*T, error)
	remove func(ctx context.Context, id int) (*T, error)
	toggle func(ctx context.Context, id int, isActive bool) (*T, error)
}

func (res resource[T, I, F]) register(g *gin.RouterGroup) {
	if res.list != nil {
		g.GET("", res.handleList)
	}
	if res.get != nil {
		g.GET("/:id", res.handleGet)
	}
	if res.create != nil {
		g.POST("", res.handleCreate)
	}
	if res.update != nil {
		g.PUT("/:id", res.handleUpdate)
	}
	if res.remove != nil {
		g.DELETE("/:id", res.handleDelete)
	}
	if res.toggle != nil {
		g.PUT("/:id/active", res.handleToggle)
	}
}

func (res resource[T, I, F]) handleList(c *gin.Context) {
	var filter F
	if !bindQuery(c, &filter) {
		return
	}
	list, err := res.list(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "list", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (res resource[T, I, F]) handleGet(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	obj, err := res.get(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get", err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

func (res resource[T, I, F]) handleCreate(c *gin.Context) {
	var input I
	if !bindJSON(c, &input) {
		return
	}
	obj, err := res.create(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "create", err)
		return
	}
	c.JSON(http.StatusCreated, obj)
}

func (res resource[T, I, F]) handleUpdate(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input I
	if !bindJSON(c, &input) {
		return
	}
	obj, err := res.update(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "update", err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

func (res resource[T, I, F]) handleDelete(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	obj, err := res.remove(c.Request.Context(), id)
	if err != nil {
		respondError(c, "delete", err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

func (res resource[T, I, F]) handleToggle(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input activeInput
	if !bindJSON(c, &input) {
		return
	}
	obj, err := res.toggle(c.Request.Context(), id, *input.IsActive)
	if err != nil {
		respondError(c, "toggleActive", err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

type brandFilter struct {
	Search string `form:"search"`
	models.Pagination
}

func listBrands(ctx context.Context, filter brandFilter) (*models.PaginatedList[models.Brand], error) {
	return models.ListBrands(ctx, filter.Search, filter.Pagination)
}
