package services

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/secureboard/models"
	"github.com/cppla/secureboard/repository"
	"github.com/cppla/secureboard/storage"
	"github.com/cppla/secureboard/utils"
)

// FileUpload is one uploaded file part.
type FileUpload struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// PostInput is the editable content of a post.
type PostInput struct {
	Title   string
	Content string
	Files   []FileUpload
}

// BoardService orchestrates posts, their attachments and the stored bytes behind them.
type BoardService struct {
	board   repository.BoardRepository
	files   storage.Storage
	maxSize int64
	log     *zap.Logger
	now     func() time.Time
}

// NewBoardService creates a BoardService. maxFileSize bounds each uploaded file in bytes.
func NewBoardService(board repository.BoardRepository, files storage.Storage, maxFileSize int64, log *zap.Logger) *BoardService {
	if log == nil {
		log = zap.NewNop()
	}
	return &BoardService{board: board, files: files, maxSize: maxFileSize, log: log, now: time.Now}
}

// ListPosts returns post summaries, newest id first.
func (s *BoardService) ListPosts(ctx context.Context) ([]models.Post, error) {
	return s.board.ListPosts(ctx)
}

// CreatePost stores a new post authored by author with a zero hit count.
func (s *BoardService) CreatePost(ctx context.Context, author string, in PostInput) (*models.Post, error) {
	attachments, err := s.storeFiles(ctx, author, in.Files)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:     cleanTitle(in.Title),
		Content:   utils.Sanitize(in.Content),
		HitCnt:    0,
		CreatorID: author,
		Files:     attachments,
	}
	if err := s.board.CreatePost(ctx, post); err != nil {
		s.discard(attachments)
		return nil, err
	}
	s.log.Info("post created",
		zap.Uint("post_id", post.ID),
		zap.String("creator", author),
		zap.Int("files", len(attachments)))
	return post, nil
}

// UpdatePost replaces title and content and appends any new files. The hit count is left alone.
func (s *BoardService) UpdatePost(ctx context.Context, id uint, editor string, in PostInput) (*models.Post, error) {
	attachments, err := s.storeFiles(ctx, editor, in.Files)
	if err != nil {
		return nil, err
	}

	found, err := s.board.UpdatePost(ctx, id, repository.PostChanges{
		Title:     cleanTitle(in.Title),
		Content:   utils.Sanitize(in.Content),
		UpdaterID: editor,
		UpdatedAt: s.now(),
	}, attachments)
	if err != nil || !found {
		s.discard(attachments)
		if err != nil {
			return nil, err
		}
		return nil, ErrPostNotFound
	}
	return s.findPost(ctx, id)
}

// GetPostDetail returns the post with its attachments and counts the view.
func (s *BoardService) GetPostDetail(ctx context.Context, id uint) (*models.Post, error) {
	ok, err := s.board.IncrementHitCount(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPostNotFound
	}
	return s.findPost(ctx, id)
}

// DeletePost removes the post and everything attached to it. Unknown ids are ignored.
func (s *BoardService) DeletePost(ctx context.Context, id uint) error {
	removed, err := s.board.DeletePost(ctx, id)
	if err != nil {
		return err
	}
	s.discard(removed)
	if len(removed) > 0 {
		s.log.Info("post deleted", zap.Uint("post_id", id), zap.Int("files", len(removed)))
	}
	return nil
}

// GetAttachment returns the attachment only when it belongs to postID.
func (s *BoardService) GetAttachment(ctx context.Context, idx, postID uint) (*models.Attachment, error) {
	file, err := s.board.FindAttachment(ctx, idx, postID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAttachmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

// OpenAttachment resolves the attachment and opens its stored bytes. Callers close the object body.
func (s *BoardService) OpenAttachment(ctx context.Context, idx, postID uint) (*models.Attachment, *storage.Object, error) {
	file, err := s.GetAttachment(ctx, idx, postID)
	if err != nil {
		return nil, nil, err
	}
	obj, err := s.files.Open(ctx, file.StoredFilePath)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrStorage, "open %s: %v", file.StoredFilePath, err)
	}
	return file, obj, nil
}

// DeleteAttachment removes one attachment of postID. A mismatched pair is a no-op.
func (s *BoardService) DeleteAttachment(ctx context.Context, idx, postID uint) error {
	file, err := s.board.DeleteAttachment(ctx, idx, postID)
	if err != nil {
		return err
	}
	if file != nil {
		s.discard([]models.Attachment{*file})
	}
	return nil
}

func (s *BoardService) findPost(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.board.FindPost(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	return post, err
}

// storeFiles writes every non-empty upload and returns the matching attachment records.
// On failure the files already written are removed.
func (s *BoardService) storeFiles(ctx context.Context, creator string, uploads []FileUpload) ([]models.Attachment, error) {
	var stored []models.Attachment
	for _, up := range uploads {
		if up.Name == "" || up.Size == 0 {
			continue
		}
		if s.maxSize > 0 && up.Size > s.maxSize {
			s.discard(stored)
			return nil, errors.Wrapf(ErrFileTooLarge, "%s", up.Name)
		}
		att, err := s.storeFile(ctx, creator, up)
		if err != nil {
			s.discard(stored)
			return nil, err
		}
		stored = append(stored, *att)
	}
	return stored, nil
}

func (s *BoardService) storeFile(ctx context.Context, creator string, up FileUpload) (*models.Attachment, error) {
	src, err := up.Open()
	if err != nil {
		return nil, errors.Wrapf(ErrStorage, "open upload %s: %v", up.Name, err)
	}
	defer src.Close()

	key := storage.NewKey(s.now(), up.Name)
	counter := &countingReader{r: src}
	var r io.Reader = counter
	if s.maxSize > 0 {
		r = io.LimitReader(counter, s.maxSize+1)
	}
	if err := s.files.Save(ctx, key, r, up.Size); err != nil {
		return nil, errors.Wrapf(ErrStorage, "save %s: %v", up.Name, err)
	}
	if s.maxSize > 0 && counter.n > s.maxSize {
		_ = s.files.Delete(ctx, key)
		return nil, errors.Wrapf(ErrFileTooLarge, "%s", up.Name)
	}
	return &models.Attachment{
		OriginalFileName: originalName(up.Name),
		StoredFilePath:   key,
		FileSize:         counter.n,
		CreatorID:        creator,
	}, nil
}

// discard removes stored bytes for attachments whose records are gone or were never written.
func (s *BoardService) discard(files []models.Attachment) {
	for _, f := range files {
		if err := s.files.Delete(context.Background(), f.StoredFilePath); err != nil {
			s.log.Warn("failed to remove stored file", zap.String("key", f.StoredFilePath), zap.Error(err))
		}
	}
}

func cleanTitle(title string) string {
	return utils.StripTags(strings.TrimSpace(title))
}

// originalName keeps only the final path element some browsers send.
func originalName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
