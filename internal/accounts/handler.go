package accounts

import (
	"net/http"

	"github.com/deicod/svcerr/apierror"
	"github.com/deicod/svcerr/apierror/ginerr"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Handler exposes the Service over HTTP.
type Handler struct {
	svc *Service
	rs  apierror.Responder
}

// NewHandler returns a Handler serving svc and writing failures through rs.
func NewHandler(svc *Service, rs apierror.Responder) *Handler {
	return &Handler{svc: svc, rs: rs}
}

// Routes mounts registration on public and the remaining endpoints on authed, which is
// expected to run the authentication middleware.
func (h *Handler) Routes(public, authed gin.IRoutes) {
	public.POST("/v1/accounts", h.register)
	authed.GET("/v1/accounts/me", h.me)
	authed.GET("/v1/accounts/:id", h.get)
	authed.DELETE("/v1/accounts/:id", h.delete)
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ginerr.Abort(c, h.rs, apierror.BadRequest("request body must be a JSON object").WithCause(err))
		return
	}
	account, err := h.svc.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		ginerr.Abort(c, h.rs, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (h *Handler) get(c *gin.Context) {
	account, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		ginerr.Abort(c, h.rs, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *Handler) me(c *gin.Context) {
	account, err := h.svc.Me(c.Request.Context())
	if err != nil {
		ginerr.Abort(c, h.rs, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		ginerr.Abort(c, h.rs, err)
		return
	}
	c.Status(http.StatusNoContent)
}
