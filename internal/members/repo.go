package members

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/citylibrary/libraryops-backend/pkg/db/models"
)

// Repository exposes persistence helpers for library members.
type Repository interface {
	Create(ctx context.Context, member *models.Member) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	GetByEmail(ctx context.Context, email string) (*models.Member, error)
	GetByCode(ctx context.Context, code string) (*models.Member, error)
	List(ctx context.Context) ([]models.Member, error)
	Search(ctx context.Context, query string) ([]models.Member, error)
	Save(ctx context.Context, member *models.Member) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	CodeExists(ctx context.Context, code string) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a member repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Create(ctx context.Context, member *models.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).First(&member, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repositoryImpl) GetByEmail(ctx context.Context, email string) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repositoryImpl) GetByCode(ctx context.Context, code string) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).
		Where("UPPER(member_code) = ?", strings.ToUpper(code)).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repositoryImpl) List(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&members).Error
	return members, err
}

func (r *repositoryImpl) Search(ctx context.Context, query string) ([]models.Member, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	var members []models.Member
	err := r.db.WithContext(ctx).
		Where(
			"LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(member_code) LIKE ? OR phone LIKE ?",
			pattern, pattern, pattern, pattern,
		).
		Order("name ASC").
		Find(&members).Error
	return members, err
}

func (r *repositoryImpl) Save(ctx context.Context, member *models.Member) error {
	return r.db.WithContext(ctx).Save(member).Error
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.Member{}, "id = ?", id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Member{}).
		Where("member_code = ?", code).
		Count(&count).Error
	return count > 0, err
}
