package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"memeshare/api/internal/models"
	"memeshare/api/internal/service"
)

func (h HandlerSet) RandomImage(c *gin.Context) {
	picked, err := h.delivery.Random(c.Request.Context(), c.Query("current"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toRandomImage(picked))
}

func (h HandlerSet) RandomImageInfo(c *gin.Context) {
	picked, err := h.delivery.Random(c.Request.Context(), c.Query("current"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toImageInfo(picked.Image))
}

func (h HandlerSet) RandomImageContent(c *gin.Context) {
	content, err := h.delivery.RandomContent(c.Request.Context(), c.Query("current"))
	if err != nil {
		h.fail(c, err)
		return
	}
	writeContent(c, content, true)
}

func (h HandlerSet) CheckedImageContent(c *gin.Context) {
	h.imageContent(c, true)
}

func (h HandlerSet) UncheckedImageContent(c *gin.Context) {
	h.imageContent(c, false)
}

func (h HandlerSet) imageContent(c *gin.Context, checked bool) {
	id, ok := h.imageID(c)
	if !ok {
		return
	}
	content, err := h.delivery.Content(c.Request.Context(), id, checked)
	if err != nil {
		h.fail(c, err)
		return
	}
	writeContent(c, content, checked)
}

func writeContent(c *gin.Context, content service.ImageContent, withReactions bool) {
	img := content.Image
	c.Header("X-Image-Name", img.FileName)
	c.Header("X-Image-ID", strconv.FormatInt(img.ID, 10))
	if withReactions {
		c.Header("X-Image-Likes", strconv.Itoa(img.Likes))
		c.Header("X-Image-Dislikes", strconv.Itoa(img.Dislikes))
	}
	if content.FromHost {
		c.Header("Cache-Control", "public, max-age=3600")
	}
	c.Data(http.StatusOK, content.ContentType, content.Data)
}

func (h HandlerSet) Like(c *gin.Context) {
	h.react(c, h.reactions.Like)
}

func (h HandlerSet) Dislike(c *gin.Context) {
	h.react(c, h.reactions.Dislike)
}

func (h HandlerSet) Unlike(c *gin.Context) {
	h.react(c, h.reactions.Unlike)
}

func (h HandlerSet) Undislike(c *gin.Context) {
	h.react(c, h.reactions.Undislike)
}

func (h HandlerSet) react(c *gin.Context, fn func(context.Context, int64) (models.Image, error)) {
	id, ok := h.imageID(c)
	if !ok {
		return
	}
	img, err := fn(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toReaction(img))
}

func (h HandlerSet) ListImages(c *gin.Context) {
	var checked *bool
	if raw := c.Query("checked"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.fail(c, fmt.Errorf("%w: checked must be a boolean", service.ErrValidation))
			return
		}
		checked = &v
	}
	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		h.fail(c, err)
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		h.fail(c, err)
		return
	}

	images, err := h.lists.List(c.Request.Context(), checked, skip, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toListItems(images))
}

func (h HandlerSet) CheckImage(c *gin.Context) {
	id, ok := h.imageID(c)
	if !ok {
		return
	}
	checked := true
	if raw := c.Query("is_checked"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.fail(c, fmt.Errorf("%w: is_checked must be a boolean", service.ErrValidation))
			return
		}
		checked = v
	}

	res, err := h.moderation.SetChecked(c.Request.Context(), c.GetHeader("Authorization"), id, checked)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toCheckResponse(res))
}

func (h HandlerSet) imageID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(c, fmt.Errorf("%w: image id must be a positive integer", service.ErrValidation))
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", service.ErrValidation, key)
	}
	return v, nil
}
