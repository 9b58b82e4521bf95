package server

import (
	"io"
	"mime/multipart"
	"strings"

	"nexify/internal/models"
	"nexify/internal/repository"
	"nexify/internal/service"

	"github.com/gofiber/fiber/v2"
)

// LikeResponse is returned by the like toggle.
type LikeResponse struct {
	Message    string `json:"message"`
	IsLiked    bool   `json:"is_liked"`
	LikesCount int    `json:"likes_count"`
}

// GetPosts handles GET /api/posts
// @Summary List posts
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param search query string false "Substring of the description"
// @Param sort_by query string false "created_at, -created_at, likes_count or -likes_count"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} Page[models.Post]
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	sortBy := c.Query("sort_by", repository.SortNewest)

	posts, total, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		CallerID: currentUserID(c),
		Search:   strings.TrimSpace(c.Query("search")),
		SortBy:   sortBy,
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(newPage(posts, total, page))
}

// CreatePost handles POST /api/posts. Accepts JSON, or multipart form data
// with an optional "file" part.
// @Summary Create a post
// @Tags posts
// @Security BearerAuth
// @Accept json,mpfd
// @Produce json
// @Param request body CreatePostRequest true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req CreatePostRequest
	var upload *service.UploadInput

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		req.Description = c.FormValue("description")
		req.Link = c.FormValue("link")
		if fh, err := c.FormFile("file"); err == nil {
			in, err := readUpload(fh)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusBadRequest,
					models.NewValidationError("Could not read uploaded file"))
			}
			upload = in
		}
		if err := s.validateStruct(c, &req); err != nil {
			return nil
		}
	} else if err := s.bindJSON(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:      currentUserID(c),
		Description: req.Description,
		Link:        req.Link,
		Upload:      upload,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetRecommendedPosts handles GET /api/posts/recommended
// @Summary Recommended posts
// @Description The caller's latest recommendation set, rebuilt daily
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/recommended [get]
func (s *Server) GetRecommendedPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListRecommended(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PATCH /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req UpdatePostRequest
	if err := s.bindJSON(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:      currentUserID(c),
		PostID:      id,
		Description: req.Description,
		Link:        req.Link,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), currentUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleLike handles PUT /api/posts/:id/like
// @Summary Like or unlike a post
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} LikeResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [put]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, label, err := s.postService.ToggleLike(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(LikeResponse{
		Message:    label,
		IsLiked:    label == models.LabelLiked,
		LikesCount: post.LikesCount,
	})
}

// ReportPost handles POST /api/posts/:id/report
// @Summary Report a post
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path string true "Post ID"
// @Success 201 {object} MessageResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /posts/{id}/report [post]
func (s *Server) ReportPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if _, err := s.postService.ReportPost(c.UserContext(), currentUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(MessageResponse{Message: "Post reported."})
}

// UploadFile handles POST /api/files
// @Summary Upload a file
// @Tags files
// @Security BearerAuth
// @Accept mpfd
// @Produce json
// @Param file formData file true "File to upload"
// @Success 201 {object} models.File
// @Failure 400 {object} models.ErrorResponse
// @Router /files [post]
func (s *Server) UploadFile(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("file is required"))
	}
	in, err := readUpload(fh)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Could not read uploaded file"))
	}

	file, err := s.fileService.Upload(c.UserContext(), currentUserID(c), *in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(file)
}

func readUpload(fh *multipart.FileHeader) (*service.UploadInput, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &service.UploadInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}, nil
}
