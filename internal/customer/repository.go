package customer

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KromaEnergia/crm-api/internal/utils"
)

type Repository interface {
	Create(db *gorm.DB, c *Customer) error
	FindByID(db *gorm.DB, id uint) (*Customer, error)
	FindForUpdate(db *gorm.DB, id uint) (*Customer, error)
	EmailTaken(db *gorm.DB, email string, exceptID uint) (bool, error)
	List(db *gorm.DB, page, limit int) ([]Customer, int64, error)
	Save(db *gorm.DB, c *Customer) error
	Delete(db *gorm.DB, id uint) error
}

type repositoryImpl struct{}

func NewRepository() Repository {
	return &repositoryImpl{}
}

func (r *repositoryImpl) Create(db *gorm.DB, c *Customer) error {
	return db.Create(c).Error
}

func (r *repositoryImpl) FindByID(db *gorm.DB, id uint) (*Customer, error) {
	var c Customer
	err := db.First(&c, id).Error
	return &c, err
}

// FindForUpdate row-locks the customer until db's transaction ends.
func (r *repositoryImpl) FindForUpdate(db *gorm.DB, id uint) (*Customer, error) {
	var c Customer
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, id).Error
	return &c, err
}

func (r *repositoryImpl) EmailTaken(db *gorm.DB, email string, exceptID uint) (bool, error) {
	var n int64
	err := db.Model(&Customer{}).Where("email = ? AND id <> ?", email, exceptID).Count(&n).Error
	return n > 0, err
}

func (r *repositoryImpl) List(db *gorm.DB, page, limit int) ([]Customer, int64, error) {
	q := db.Session(&gorm.Session{})
	var total int64
	if err := q.Model(&Customer{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	list := make([]Customer, 0, limit)
	err := q.Order("created_at DESC").Order("id DESC").
		Scopes(utils.Paginate(page, limit)).
		Find(&list).Error
	return list, total, err
}

func (r *repositoryImpl) Save(db *gorm.DB, c *Customer) error {
	return db.Save(c).Error
}

func (r *repositoryImpl) Delete(db *gorm.DB, id uint) error {
	return db.Delete(&Customer{}, id).Error
}

// HasTag keeps customers whose tag list contains tag exactly. The comparison runs on the
// decoded array elements, so JSON escaping in the stored text never affects it.
func HasTag(tag string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if db.Dialector.Name() == "postgres" {
			return db.Where("customers.tags @> jsonb_build_array(CAST(? AS text))", tag)
		}
		return db.Where("EXISTS (SELECT 1 FROM json_each(customers.tags) WHERE json_each.value = ?)", tag)
	}
}
