package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jacentio/todo/auth"
	"github.com/jacentio/todo/model"
)

// maxBodySize bounds request bodies read by the gin adapter.
const maxBodySize = 1 << 20

// RegisterRoutes mounts every operation of h on r. middleware runs before each
// operation, typically RequireOwner.
func RegisterRoutes(r gin.IRoutes, h *Handler, middleware ...gin.HandlerFunc) {
	handlers := append(middleware[:len(middleware):len(middleware)], h.serveGin)
	for _, rt := range h.Routes() {
		r.Handle(rt[0], rt[1], handlers...)
	}
}

func (h *Handler) serveGin(c *gin.Context) {
	req := Request{
		Method:   c.Request.Method,
		Resource: c.FullPath(),
		Headers:  flatten(c.Request.Header),
		Query:    flatten(c.Request.URL.Query()),
	}

	if c.Request.Body != nil {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
		if err != nil {
			resp := h.fail(c.Request.Context(), req, model.Invalid("body", "unreadable: %v", err))
			c.JSON(resp.Status, resp.Body)
			return
		}
		req.Body = body
	}

	resp := h.Handle(c.Request.Context(), req)
	c.JSON(resp.Status, resp.Body)
}

// RequireOwner rejects requests whose bearer token does not belong to the
// user named by the X-User-Id header.
func RequireOwner(a *auth.Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := a.Authorize(c.Request.Context(), flatten(c.Request.Header), c.Request.Method+" "+c.FullPath())
		if !d.Allowed() {
			c.AbortWithStatusJSON(http.StatusForbidden, Body{
				Message: "access denied",
				Error:   d.Reason,
			})
			return
		}
		c.Next()
	}
}

// flatten keeps the first value of every key.
func flatten(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
