package server

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/blog-em/internal/api"
	"github.com/any-hub/blog-em/internal/blog"
	"github.com/any-hub/blog-em/internal/query"
)

type handlers struct {
	svc    *blog.Service
	logger *logrus.Logger
}

// postsPage 对应列表页：当前页文章、分页信息与加载状态。
type postsPage struct {
	Page    int        `json:"page"`
	MaxPage int        `json:"max_page"`
	HasPrev bool       `json:"has_prev"`
	HasNext bool       `json:"has_next"`
	Posts   []api.Post `json:"posts"`
	Status  string     `json:"status"`
	Error   string     `json:"error,omitempty"`
}

type postBody struct {
	Title  *string `json:"title"`
	Body   *string `json:"body"`
	UserID *int    `json:"userId"`
}

type commentBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Body  string `json:"body"`
}

func registerViewRoutes(app *fiber.App, h *handlers) {
	app.Get("/posts", h.listPosts)
	app.Post("/posts", h.createPost)
	app.Get("/posts/:id", h.postDetail)
	app.Patch("/posts/:id", h.updatePost)
	app.Delete("/posts/:id", h.deletePost)
	app.Post("/posts/:id/comments", h.createComment)
	app.Patch("/comments/:id", h.updateComment)
	app.Delete("/comments/:id", h.deleteComment)
	app.Get("/users/:id", h.user)
}

func (h *handlers) listPosts(c fiber.Ctx) error {
	page := h.clampPage(c.Query("page"))
	payload := postsPage{
		Page:    page,
		MaxPage: h.svc.MaxPostPage(),
		HasPrev: page > 1,
		HasNext: page < h.svc.MaxPostPage(),
		Status:  "success",
	}

	posts, err := h.svc.ListPosts(c.Context(), page)
	if err != nil {
		// 有旧数据时展示旧数据并附带错误，而不是清空页面。
		cached, ok := query.DataAs[[]api.Post](h.svc.Client(), blog.PostList(page))
		if !ok {
			return err
		}
		posts = cached
		payload.Status = "error"
		payload.Error = err.Error()
	}
	payload.Posts = posts

	if payload.HasNext {
		go h.svc.PrefetchNextPage(context.Background(), page)
	}
	return c.JSON(payload)
}

func (h *handlers) postDetail(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	detail, err := h.svc.PostDetail(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(detail)
}

func (h *handlers) createPost(c fiber.Ctx) error {
	var in postBody
	if err := c.Bind().JSON(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid_body")
	}
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "title_required")
	}
	input := api.PostInput{Title: *in.Title}
	if in.Body != nil {
		input.Body = *in.Body
	}
	if in.UserID != nil {
		input.UserID = *in.UserID
	}
	post, err := h.svc.CreatePost(c.Context(), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *handlers) updatePost(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in postBody
	if err := c.Bind().JSON(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid_body")
	}
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "title_required")
	}
	post, err := h.svc.UpdatePost(c.Context(), id, api.PostPatch{Title: in.Title, Body: in.Body, UserID: in.UserID})
	if err != nil {
		return err
	}
	return c.JSON(post)
}

func (h *handlers) deletePost(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePost(c.Context(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) createComment(c fiber.Ctx) error {
	postID, err := pathID(c)
	if err != nil {
		return err
	}
	var in commentBody
	if err := c.Bind().JSON(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid_body")
	}
	if strings.TrimSpace(in.Body) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "body_required")
	}
	comment, err := h.svc.CreateComment(c.Context(), api.CommentInput{
		PostID: postID,
		Name:   in.Name,
		Email:  in.Email,
		Body:   in.Body,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

func (h *handlers) updateComment(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var patch api.CommentPatch
	if err := c.Bind().JSON(&patch); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid_body")
	}
	if patch.Name == nil && patch.Email == nil && patch.Body == nil {
		return fiber.NewError(fiber.StatusBadRequest, "empty_patch")
	}
	comment, err := h.svc.UpdateComment(c.Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(comment)
}

func (h *handlers) deleteComment(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteComment(c.Context(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) user(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	user, err := h.svc.GetUser(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// clampPage 把 page 参数限制在 [1, MaxPostPage]，非法值按第 1 页处理。
func (h *handlers) clampPage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page < 1 {
		return 1
	}
	if max := h.svc.MaxPostPage(); page > max {
		return max
	}
	return page
}

func pathID(c fiber.Ctx) (int, error) {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid_id")
	}
	return id, nil
}
