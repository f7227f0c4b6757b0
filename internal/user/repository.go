package user

import (
	"gorm.io/gorm"

	"github.com/KromaEnergia/crm-api/internal/utils"
)

type Repository interface {
	Create(db *gorm.DB, u *User) error
	FindByID(db *gorm.DB, id uint) (*User, error)
	FindByEmail(db *gorm.DB, email string) (*User, error)
	EmailTaken(db *gorm.DB, email string, exceptID uint) (bool, error)
	List(db *gorm.DB, page, limit int) ([]User, int64, error)
	Update(db *gorm.DB, u *User, fields map[string]any) error
	Delete(db *gorm.DB, id uint) error
}

type repositoryImpl struct{}

func NewRepository() Repository {
	return &repositoryImpl{}
}

func (r *repositoryImpl) Create(db *gorm.DB, u *User) error {
	return db.Create(u).Error
}

func (r *repositoryImpl) FindByID(db *gorm.DB, id uint) (*User, error) {
	var u User
	err := db.First(&u, id).Error
	return &u, err
}

func (r *repositoryImpl) FindByEmail(db *gorm.DB, email string) (*User, error) {
	var u User
	err := db.Where("email = ?", email).First(&u).Error
	return &u, err
}

func (r *repositoryImpl) EmailTaken(db *gorm.DB, email string, exceptID uint) (bool, error) {
	var n int64
	err := db.Model(&User{}).Where("email = ? AND id <> ?", email, exceptID).Count(&n).Error
	return n > 0, err
}

func (r *repositoryImpl) List(db *gorm.DB, page, limit int) ([]User, int64, error) {
	q := db.Session(&gorm.Session{})
	var total int64
	if err := q.Model(&User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	list := make([]User, 0, limit)
	err := q.Order("created_at DESC").Order("id DESC").
		Scopes(utils.Paginate(page, limit)).
		Find(&list).Error
	return list, total, err
}

func (r *repositoryImpl) Update(db *gorm.DB, u *User, fields map[string]any) error {
	return db.Model(u).Updates(fields).Error
}

func (r *repositoryImpl) Delete(db *gorm.DB, id uint) error {
	return db.Delete(&User{}, id).Error
}
