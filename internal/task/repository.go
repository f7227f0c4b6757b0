package task

import (
	"gorm.io/gorm"

	"github.com/KromaEnergia/crm-api/internal/utils"
)

// priorityRank orders High before Medium before Low.
const priorityRank = "CASE priority WHEN 'High' THEN 3 WHEN 'Medium' THEN 2 ELSE 1 END DESC"

type Repository interface {
	Create(db *gorm.DB, t *Task) error
	FindByID(db *gorm.DB, id uint) (*Task, error)
	List(db *gorm.DB, page, limit int) ([]Task, int64, error)
	Save(db *gorm.DB, t *Task) error
	Delete(db *gorm.DB, id uint) error
}

type repositoryImpl struct{}

func NewRepository() Repository {
	return &repositoryImpl{}
}

func (r *repositoryImpl) Create(db *gorm.DB, t *Task) error {
	return db.Create(t).Error
}

func (r *repositoryImpl) FindByID(db *gorm.DB, id uint) (*Task, error) {
	var t Task
	err := db.First(&t, id).Error
	return &t, err
}

func (r *repositoryImpl) List(db *gorm.DB, page, limit int) ([]Task, int64, error) {
	q := db.Session(&gorm.Session{})
	var total int64
	if err := q.Model(&Task{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	list := make([]Task, 0, limit)
	err := q.Order("due_date ASC").Order(priorityRank).Order("id ASC").
		Scopes(utils.Paginate(page, limit)).
		Find(&list).Error
	return list, total, err
}

func (r *repositoryImpl) Save(db *gorm.DB, t *Task) error {
	return db.Save(t).Error
}

func (r *repositoryImpl) Delete(db *gorm.DB, id uint) error {
	return db.Delete(&Task{}, id).Error
}
