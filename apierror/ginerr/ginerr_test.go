package ginerr

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deicod/svcerr/apierror"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAbortStopsChain(t *testing.T) {
	router := gin.New()
	var reached bool
	router.GET("/items/:id",
		func(c *gin.Context) { Abort(c, apierror.Responder{}, apierror.NotFound()) },
		func(c *gin.Context) { reached = true },
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/1", nil))

	require.False(t, reached)
	require.Equal(t, http.StatusNotFound, rr.Code)
	var body apierror.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, apierror.NameNotFound, body.Name)
}

func TestMiddlewareRendersAttachedError(t *testing.T) {
	router := gin.New()
	router.Use(Middleware(apierror.Responder{}))
	router.GET("/missing", func(c *gin.Context) {
		_ = c.Error(pgx.ErrNoRows)
	})
	router.GET("/broken", func(c *gin.Context) {
		_ = c.Error(errors.New("disk full"))
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/broken", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "disk full")
}

func TestMiddlewareLeavesWrittenResponses(t *testing.T) {
	router := gin.New()
	router.Use(Middleware(apierror.Responder{}))
	router.GET("/ok", func(c *gin.Context) {
		_ = c.Error(errors.New("ignored"))
		c.Status(http.StatusNoContent)
		c.Writer.WriteHeaderNow()
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
}
