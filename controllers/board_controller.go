package controllers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/secureboard/middleware"
	"github.com/cppla/secureboard/services"
	"github.com/cppla/secureboard/utils"
)

const boardPath = "/board"

// BoardController exposes posts and their attachments.
type BoardController struct {
	board *services.BoardService
}

// NewBoardController creates a new BoardController instance.
func NewBoardController(board *services.BoardService) *BoardController {
	return &BoardController{board: board}
}

// List returns every post, newest first.
func (b *BoardController) List(ctx *gin.Context) {
	posts, err := b.board.ListPosts(ctx.Request.Context())
	if err != nil {
		b.fail(ctx, err, 50020, "failed to list posts")
		return
	}
	utils.Success(ctx, gin.H{"posts": posts})
}

// Write creates a post from a multipart form.
func (b *BoardController) Write(ctx *gin.Context) {
	author, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	in, err := postInput(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid form payload")
		return
	}

	if _, err := b.board.CreatePost(ctx.Request.Context(), author, in); err != nil {
		b.fail(ctx, err, 50021, "failed to create post")
		return
	}
	utils.SeeOther(ctx, boardPath)
}

// Detail returns one post with its attachments and counts the view.
func (b *BoardController) Detail(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid post id")
		return
	}
	post, err := b.board.GetPostDetail(ctx.Request.Context(), id)
	if err != nil {
		b.fail(ctx, err, 50022, "failed to load post")
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// Update replaces title and content of a post and appends any new files.
func (b *BoardController) Update(ctx *gin.Context) {
	editor, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid post id")
		return
	}
	in, err := postInput(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid form payload")
		return
	}

	if _, err := b.board.UpdatePost(ctx.Request.Context(), id, editor, in); err != nil {
		b.fail(ctx, err, 50023, "failed to update post")
		return
	}
	utils.SeeOther(ctx, boardPath)
}

// Delete removes a post with its attachments. Unknown ids still redirect.
func (b *BoardController) Delete(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid post id")
		return
	}
	if err := b.board.DeletePost(ctx.Request.Context(), id); err != nil {
		b.fail(ctx, err, 50024, "failed to delete post")
		return
	}
	utils.SeeOther(ctx, boardPath)
}

// Download streams an attachment addressed by idx and boardIdx.
func (b *BoardController) Download(ctx *gin.Context) {
	idx, postID, ok := attachmentRef(ctx)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40022, "idx and boardIdx are required")
		return
	}

	file, obj, err := b.board.OpenAttachment(ctx.Request.Context(), idx, postID)
	if err != nil {
		b.fail(ctx, err, 50025, "failed to read attachment")
		return
	}
	defer obj.Body.Close()

	ctx.DataFromReader(http.StatusOK, obj.Size, "application/octet-stream", obj.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, url.QueryEscape(file.OriginalFileName)),
	})
}

// DeleteFile removes one attachment and returns to its post.
func (b *BoardController) DeleteFile(ctx *gin.Context) {
	idx, postID, ok := attachmentRef(ctx)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40022, "idx and boardIdx are required")
		return
	}
	if err := b.board.DeleteAttachment(ctx.Request.Context(), idx, postID); err != nil {
		b.fail(ctx, err, 50026, "failed to delete attachment")
		return
	}
	utils.SeeOther(ctx, fmt.Sprintf("%s/%d", boardPath, postID))
}

// fail maps service errors onto the response envelope.
func (b *BoardController) fail(ctx *gin.Context, err error, code int, message string) {
	switch {
	case errors.Is(err, services.ErrPostNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
	case errors.Is(err, services.ErrAttachmentNotFound):
		utils.Error(ctx, http.StatusNotFound, 40402, "attachment not found")
	case errors.Is(err, services.ErrFileTooLarge):
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "file too large")
	default:
		utils.Logger.Error(message, zap.String("path", ctx.Request.URL.Path), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, code, message)
	}
}

// postInput reads title, content and every file part of the request form.
func postInput(ctx *gin.Context) (services.PostInput, error) {
	in := services.PostInput{
		Title:   ctx.PostForm("title"),
		Content: ctx.PostForm("content"),
	}
	form, err := ctx.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return in, nil
	}
	if err != nil {
		return in, err
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		for _, fh := range form.File[field] {
			in.Files = append(in.Files, fileUpload(fh))
		}
	}
	return in, nil
}

func fileUpload(fh *multipart.FileHeader) services.FileUpload {
	return services.FileUpload{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func currentUser(ctx *gin.Context) (string, bool) {
	p, ok := middleware.CurrentPrincipal(ctx)
	if !ok {
		return "", false
	}
	return p.Username, true
}

func attachmentRef(ctx *gin.Context) (idx, postID uint, ok bool) {
	idx, ok = parseID(ctx.Query("idx"))
	if !ok {
		return 0, 0, false
	}
	postID, ok = parseID(ctx.Query("boardIdx"))
	return idx, postID, ok
}

func parseID(s string) (uint, bool) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
