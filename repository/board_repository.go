package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/cppla/secureboard/models"
)

// PostChanges carries the mutable fields of an update.
type PostChanges struct {
	Title     string
	Content   string
	UpdaterID string
	UpdatedAt time.Time
}

// BoardRepository is the board store: posts and the attachments they own.
type BoardRepository interface {
	// ListPosts returns every post, newest id first, without attachments.
	ListPosts(ctx context.Context) ([]models.Post, error)
	// FindPost loads a post with its attachments; gorm.ErrRecordNotFound (wrapped) when absent.
	FindPost(ctx context.Context, id uint) (*models.Post, error)
	// CreatePost inserts the post together with post.Files.
	CreatePost(ctx context.Context, post *models.Post) error
	// UpdatePost applies changes and appends files in one transaction.
	// It returns false when the post does not exist.
	UpdatePost(ctx context.Context, id uint, changes PostChanges, files []models.Attachment) (bool, error)
	// IncrementHitCount adds one to the hit count in a single statement.
	IncrementHitCount(ctx context.Context, id uint) (bool, error)
	// DeletePost removes the post and its attachments and returns the removed attachments.
	// Deleting a missing post is not an error.
	DeletePost(ctx context.Context, id uint) ([]models.Attachment, error)
	// FindAttachment looks up an attachment only through its owning post.
	FindAttachment(ctx context.Context, idx, postID uint) (*models.Attachment, error)
	// DeleteAttachment removes the attachment matching both ids and returns it, or nil if none matched.
	DeleteAttachment(ctx context.Context, idx, postID uint) (*models.Attachment, error)
}

type boardRepository struct {
	db *gorm.DB
}

// NewBoardRepository creates a gorm backed BoardRepository.
func NewBoardRepository(db *gorm.DB) BoardRepository {
	return &boardRepository{db: db}
}

func (r *boardRepository) ListPosts(ctx context.Context) ([]models.Post, error) {
	posts := make([]models.Post, 0)
	if err := r.db.WithContext(ctx).Order("id DESC").Find(&posts).Error; err != nil {
		return nil, errors.Wrap(err, "list posts")
	}
	return posts, nil
}

func (r *boardRepository) FindPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&post, id).Error
	if err != nil {
		return nil, errors.Wrapf(err, "find post %d", id)
	}
	return &post, nil
}

func (r *boardRepository) CreatePost(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return errors.Wrap(err, "create post")
	}
	return nil
}

func (r *boardRepository) UpdatePost(ctx context.Context, id uint, changes PostChanges, files []models.Attachment) (bool, error) {
	found := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", id).Updates(map[string]interface{}{
			"title":           changes.Title,
			"content":         changes.Content,
			"updater_id":      changes.UpdaterID,
			"update_datetime": changes.UpdatedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// MySQL reports zero affected rows when nothing changed, so confirm existence
			var count int64
			if err := tx.Model(&models.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return nil
			}
		}
		found = true
		if len(files) == 0 {
			return nil
		}
		for i := range files {
			files[i].PostID = id
		}
		return tx.Create(&files).Error
	})
	if err != nil {
		return false, errors.Wrapf(err, "update post %d", id)
	}
	return found, nil
}

func (r *boardRepository) IncrementHitCount(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("hit_cnt", gorm.Expr("hit_cnt + ?", 1))
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "increment hit count of post %d", id)
	}
	return res.RowsAffected > 0, nil
}

func (r *boardRepository) DeletePost(ctx context.Context, id uint) ([]models.Attachment, error) {
	var removed []models.Attachment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Find(&removed).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
	if err != nil {
		return nil, errors.Wrapf(err, "delete post %d", id)
	}
	return removed, nil
}

func (r *boardRepository) FindAttachment(ctx context.Context, idx, postID uint) (*models.Attachment, error) {
	var file models.Attachment
	err := r.db.WithContext(ctx).
		Where("id = ? AND post_id = ?", idx, postID).
		First(&file).Error
	if err != nil {
		return nil, errors.Wrapf(err, "find attachment %d of post %d", idx, postID)
	}
	return &file, nil
}

func (r *boardRepository) DeleteAttachment(ctx context.Context, idx, postID uint) (*models.Attachment, error) {
	var deleted *models.Attachment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var file models.Attachment
		err := tx.Where("id = ? AND post_id = ?", idx, postID).First(&file).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Where("id = ? AND post_id = ?", idx, postID).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}
		deleted = &file
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "delete attachment %d of post %d", idx, postID)
	}
	return deleted, nil
}
