package activity

import (
	"time"

	"gorm.io/gorm"

	"github.com/KromaEnergia/crm-api/internal/utils"
)

type Repository interface {
	Create(db *gorm.DB, a *Activity) error
	List(db *gorm.DB, page, limit int) ([]Activity, int64, error)
	CountBy(db *gorm.DB, column string) ([]groupCount, error)
	Latest(db *gorm.DB) (*time.Time, error)
}

type repositoryImpl struct{}

func NewRepository() Repository {
	return &repositoryImpl{}
}

func (r *repositoryImpl) Create(db *gorm.DB, a *Activity) error {
	return db.Create(a).Error
}

// List expects db to carry the filters already; it adds count, order and paging.
func (r *repositoryImpl) List(db *gorm.DB, page, limit int) ([]Activity, int64, error) {
	q := db.Session(&gorm.Session{})
	var total int64
	if err := q.Model(&Activity{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	list := make([]Activity, 0, limit)
	err := q.Order("created_at DESC").Order("id DESC").
		Scopes(utils.Paginate(page, limit)).
		Find(&list).Error
	return list, total, err
}

func (r *repositoryImpl) CountBy(db *gorm.DB, column string) ([]groupCount, error) {
	var rows []groupCount
	err := db.Model(&Activity{}).
		Select(column + " AS group_key, COUNT(*) AS total").
		Group(column).
		Scan(&rows).Error
	return rows, err
}

func (r *repositoryImpl) Latest(db *gorm.DB) (*time.Time, error) {
	var a Activity
	err := db.Order("created_at DESC").Order("id DESC").Limit(1).Find(&a).Error
	if err != nil || a.ID == 0 {
		return nil, err
	}
	return &a.CreatedAt, nil
}
