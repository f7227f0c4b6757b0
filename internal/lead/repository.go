package lead

import (
	"gorm.io/gorm"

	"github.com/KromaEnergia/crm-api/internal/utils"
)

type Repository interface {
	Create(db *gorm.DB, l *Lead) error
	FindActive(db *gorm.DB, id uint) (*Lead, error)
	EmailTaken(db *gorm.DB, email string, exceptID uint) (bool, error)
	List(db *gorm.DB, page, limit int) ([]Lead, int64, error)
	Save(db *gorm.DB, l *Lead) error
	MarkConverted(db *gorm.DB, l *Lead) (bool, error)
	Archive(db *gorm.DB, id uint) (bool, error)
}

type repositoryImpl struct{}

func NewRepository() Repository {
	return &repositoryImpl{}
}

func (r *repositoryImpl) Create(db *gorm.DB, l *Lead) error {
	return db.Create(l).Error
}

// FindActive ignores archived leads.
func (r *repositoryImpl) FindActive(db *gorm.DB, id uint) (*Lead, error) {
	var l Lead
	err := db.Where("is_archived = ?", false).First(&l, id).Error
	return &l, err
}

func (r *repositoryImpl) EmailTaken(db *gorm.DB, email string, exceptID uint) (bool, error) {
	var n int64
	err := db.Model(&Lead{}).
		Where("email = ? AND is_archived = ? AND id <> ?", email, false, exceptID).
		Count(&n).Error
	return n > 0, err
}

func (r *repositoryImpl) List(db *gorm.DB, page, limit int) ([]Lead, int64, error) {
	q := db.Session(&gorm.Session{})
	var total int64
	if err := q.Model(&Lead{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	list := make([]Lead, 0, limit)
	err := q.Order("created_at DESC").Order("id DESC").
		Scopes(utils.Paginate(page, limit)).
		Find(&list).Error
	return list, total, err
}

func (r *repositoryImpl) Save(db *gorm.DB, l *Lead) error {
	return db.Save(l).Error
}

// MarkConverted writes the conversion only while the lead is still open and active.
// It reports false when another request got there first.
func (r *repositoryImpl) MarkConverted(db *gorm.DB, l *Lead) (bool, error) {
	res := db.Model(&Lead{}).
		Where("id = ? AND is_archived = ? AND status IN ?", l.ID, false, []Status{StatusNew, StatusInProgress}).
		Updates(map[string]any{
			"status":                   l.Status,
			"converted_to_customer_id": l.ConvertedToCustomerID,
			"converted_at":             l.ConvertedAt,
		})
	return res.RowsAffected == 1, res.Error
}

// Archive flags the lead without touching its other columns. It reports false when the
// lead was already archived.
func (r *repositoryImpl) Archive(db *gorm.DB, id uint) (bool, error) {
	res := db.Model(&Lead{}).
		Where("id = ? AND is_archived = ?", id, false).
		Updates(map[string]any{"is_archived": true})
	return res.RowsAffected == 1, res.Error
}
