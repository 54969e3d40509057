package repository

import (
	"context"
	"strings"

	"ai_mentor_backend/internal/model"
	"ai_mentor_backend/internal/util"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{DB: tx}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := r.DB.WithContext(ctx).Create(user).Error; err != nil {
		if util.IsDuplicateKey(err) {
			return util.NewConflictError("user", "email already registered")
		}
		return err
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, util.TranslateDBError(err, "user", id)
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, util.TranslateDBError(err, "user", email)
	}
	return &user, nil
}

func (r *UserRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.User, error) {
	var users []model.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Order("last_name, first_name").Find(&users).Error
	return users, err
}

func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Save(user).Error
}

func (r *UserRepository) SetActive(ctx context.Context, id uint, active bool) error {
	res := r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.NewNotFoundError("user", id)
	}
	return nil
}

// UserFilter 用户列表筛选条件
type UserFilter struct {
	SchoolID *uint
	Role     model.UserRole
	Keyword  string
}

func (r *UserRepository) List(ctx context.Context, filter UserFilter, page, limit int) ([]model.User, int64, error) {
	query := r.DB.WithContext(ctx).Model(&model.User{})
	if filter.SchoolID != nil {
		query = query.Where("school_id = ?", *filter.SchoolID)
	}
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if kw := strings.TrimSpace(filter.Keyword); kw != "" {
		like := "%" + kw + "%"
		query = query.Where("email LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []model.User
	err := query.Order("id DESC").Offset((page - 1) * limit).Limit(limit).Find(&users).Error
	return users, total, err
}
