package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"memeshare/api/internal/service"
)

func (h HandlerSet) AdminVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: password is required", service.ErrValidation))
		return
	}

	token, err := h.auth.Verify(req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, verifyResponse{
		Success:   true,
		Message:   "login successful",
		Token:     token.AccessToken,
		ExpiresAt: token.ExpiresAt,
	})
}

func (h HandlerSet) PendingImages(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		h.fail(c, err)
		return
	}

	page, err := h.moderation.Pending(c.Request.Context(), c.GetHeader("Authorization"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pendingResponse{
		Images:   toAdminImages(page.Images),
		Total:    page.Total,
		Returned: len(page.Images),
	})
}

func (h HandlerSet) CheckedImages(c *gin.Context) {
	pageNum, err := queryInt(c, "page", 1)
	if err != nil {
		h.fail(c, err)
		return
	}
	pageSize, err := queryInt(c, "page_size", 0)
	if err != nil {
		h.fail(c, err)
		return
	}

	page, err := h.moderation.Checked(c.Request.Context(), c.GetHeader("Authorization"), pageNum, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, checkedResponse{
		Images:      toAdminImages(page.Images),
		Total:       page.Total,
		CurrentPage: page.Page,
		TotalPages:  page.TotalPages,
		PageSize:    page.PageSize,
	})
}

func (h HandlerSet) ReviewImage(c *gin.Context) {
	id, ok := h.imageID(c)
	if !ok {
		return
	}

	res, err := h.moderation.Review(c.Request.Context(), c.GetHeader("Authorization"), id, c.Query("action"))
	if err != nil {
		h.fail(c, err)
		return
	}

	message := "image approved"
	if res.Action == "rejected" {
		message = "image rejected and deleted"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  message,
		"action":   res.Action,
		"warnings": res.Warnings,
	})
}

func (h HandlerSet) DeleteImage(c *gin.Context) {
	id, ok := h.imageID(c)
	if !ok {
		return
	}

	res, err := h.moderation.Delete(c.Request.Context(), c.GetHeader("Authorization"), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "image deleted",
		"id":       id,
		"warnings": res.Warnings,
	})
}
