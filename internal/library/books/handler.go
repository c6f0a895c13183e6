package books

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"citadel-backend/internal/platform/auth"
)

type CatalogService interface {
	AddBook(ctx context.Context, req AddBookRequest, actor Actor) (*AddBookResponse, error)
	Search(ctx context.Context, q SearchQuery) ([]SearchResult, error)
	ListCategories(ctx context.Context) ([]Category, error)
	ReconcileCopies(ctx context.Context, actor Actor) (int64, error)
}

type Handler struct{ svc CatalogService }

// RegisterSearchRoutes: 認証済みなら誰でも検索可
func RegisterSearchRoutes(r gin.IRoutes, svc CatalogService) {
	h := &Handler{svc: svc}
	r.GET("/books/search", h.Search)
}

// RegisterRoutes: Admin/Librarian 専用（蔵書追加・カテゴリ取得）
func RegisterRoutes(r gin.IRoutes, svc CatalogService) {
	h := &Handler{svc: svc}
	r.POST("/books", h.AddBook)
	r.GET("/books/categories", h.ListCategories)
}

// RegisterAdminRoutes: Admin 専用の保守オペレーション
func RegisterAdminRoutes(r gin.IRoutes, svc CatalogService) {
	h := &Handler{svc: svc}
	r.POST("/maintenance/reconcile-copies", h.Reconcile)
}

// ---------- handlers ----------

func (h *Handler) AddBook(c *gin.Context) {
	var req AddBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}

	res, err := h.svc.AddBook(c.Request.Context(), req, actorFrom(c))
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Search(c *gin.Context) {
	q := SearchQuery{
		Q:      c.Query("q"),
		Author: c.Query("author"),
		ISBN:   c.Query("isbn"),
		Limit:  parseIntDefault(c.Query("limit"), 50),
		Offset: parseIntDefault(c.Query("offset"), 0),
	}
	if v := c.Query("category_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			q.CategoryID = &id
		}
	}
	if v := c.Query("available_only"); v == "true" || v == "1" {
		q.AvailableOnly = true
	}

	res, err := h.svc.Search(c.Request.Context(), q)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListCategories(c *gin.Context) {
	res, err := h.svc.ListCategories(c.Request.Context())
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Reconcile(c *gin.Context) {
	n, err := h.svc.ReconcileCopies(c.Request.Context(), actorFrom(c))
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"books_updated": n})
}

// ---------- helpers ----------

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

func actorFrom(c *gin.Context) Actor {
	var id int64
	if sub := c.GetString(auth.CtxUserIDKey); sub != "" {
		if v, err := strconv.ParseInt(sub, 10, 64); err == nil {
			id = v
		}
	}
	return Actor{UserID: id, IP: c.ClientIP()}
}

type errorDTO struct {
	Error APIError `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	return errorDTO{Error: APIError{Code: code, Message: msg}}
}

func errorFromErr(err error) errorDTO {
	if api, ok := err.(*APIError); ok {
		return errorDTO{Error: *api}
	}
	return errorBody(CodeInternal, err.Error())
}
