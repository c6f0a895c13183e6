package lending

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"citadel-backend/internal/platform/auth"
)

// LendingService は職員向け貸出・返却の操作面
type LendingService interface {
	Issue(ctx context.Context, req IssueRequest, actor Actor) (*IssueReceipt, error)
	Return(ctx context.Context, req ReturnRequest, actor Actor) (*ReturnReceipt, error)
	VerifyMember(ctx context.Context, memberID string) (*MemberVerification, error)
	VerifyCopy(ctx context.Context, bookCopyID string) (*CopyVerification, error)
	PreviewReturn(ctx context.Context, bookCopyID string) (*ReturnPreview, error)
}

type MemberService interface {
	MemberDashboard(ctx context.Context, userID int64) (*Dashboard, error)
}

type Handler struct{ svc LendingService }

// RegisterRoutes: Admin/Librarian 専用グループに載せる
func RegisterRoutes(r gin.IRoutes, svc LendingService) {
	h := &Handler{svc: svc}

	// 貸出リソース
	r.POST("/loans", h.Issue)
	// 貸出前の事前確認 (?type=member|copy&query=...)
	r.GET("/loans/verify", h.Verify)

	// 返却リソース
	r.POST("/returns", h.Return)
	// 返却前の事前確認 (?book_copy_id=...)
	r.GET("/returns/preview", h.PreviewReturn)
}

type memberHandler struct{ svc MemberService }

// RegisterMemberRoutes: 認証済みなら誰でも（本人のダッシュボード）
func RegisterMemberRoutes(r gin.IRoutes, svc MemberService) {
	h := &memberHandler{svc: svc}
	r.GET("/member/dashboard", h.Dashboard)
}

// ---------- handlers ----------

func (h *Handler) Issue(c *gin.Context) {
	var req IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "Member ID and Book Copy ID are required"))
		return
	}

	res, err := h.svc.Issue(c.Request.Context(), req, actorFrom(c))
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Return(c *gin.Context) {
	var req ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "Book Copy ID is required"))
		return
	}

	res, err := h.svc.Return(c.Request.Context(), req, actorFrom(c))
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Verify(c *gin.Context) {
	typ := c.Query("type")
	query := c.Query("query")
	if typ == "" || query == "" {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "Type and query are required"))
		return
	}

	switch typ {
	case "member":
		res, err := h.svc.VerifyMember(c.Request.Context(), query)
		if err != nil {
			c.JSON(toHTTPStatus(err), errorFromErr(err))
			return
		}
		c.JSON(http.StatusOK, res)
	case "copy":
		res, err := h.svc.VerifyCopy(c.Request.Context(), query)
		if err != nil {
			c.JSON(toHTTPStatus(err), errorFromErr(err))
			return
		}
		c.JSON(http.StatusOK, res)
	default:
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, `Invalid type. Use "member" or "copy"`))
	}
}

func (h *Handler) PreviewReturn(c *gin.Context) {
	bookCopyID := c.Query("book_copy_id")
	if bookCopyID == "" {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "Book Copy ID is required"))
		return
	}

	res, err := h.svc.PreviewReturn(c.Request.Context(), bookCopyID)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *memberHandler) Dashboard(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody(CodeInvalidArgument, "invalid token subject"))
		return
	}

	res, err := h.svc.MemberDashboard(c.Request.Context(), userID)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- helpers ----------

func actorID(c *gin.Context) (int64, bool) {
	sub := c.GetString(auth.CtxUserIDKey)
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func actorFrom(c *gin.Context) Actor {
	id, _ := actorID(c)
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
