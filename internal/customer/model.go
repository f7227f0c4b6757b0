package customer

import "time"

// MaxNotes is how many notes a customer keeps; older ones are dropped first.
const MaxNotes = 5

type DealStatus string

const (
	DealOpen DealStatus = "Open"
	DealWon  DealStatus = "Won"
	DealLost DealStatus = "Lost"
)

func (s DealStatus) IsValid() bool {
	return s == DealOpen || s == DealWon || s == DealLost
}

type Note struct {
	Content   string    `json:"content"`
	CreatedBy uint      `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type Deal struct {
	Title             string     `json:"title"`
	Value             float64    `json:"value"`
	Status            DealStatus `json:"status"`
	ExpectedCloseDate *time.Time `json:"expectedCloseDate"`
}

type Customer struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Name                string    `gorm:"size:100;not null" json:"name"`
	Company             string    `gorm:"size:100;not null" json:"company"`
	Email               string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Phone               string    `gorm:"size:20" json:"phone"`
	Tags                []string  `gorm:"type:jsonb;serializer:json" json:"tags"`
	OwnerID             uint      `gorm:"index;not null" json:"ownerId"`
	Notes               []Note    `gorm:"type:jsonb;serializer:json" json:"notes"`
	Deals               []Deal    `gorm:"type:jsonb;serializer:json" json:"deals"`
	ConvertedFromLeadID *uint     `gorm:"index" json:"convertedFromLead"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// AddNote appends a note and keeps only the newest MaxNotes.
func (c *Customer) AddNote(n Note) {
	c.Notes = append(c.Notes, n)
	if len(c.Notes) > MaxNotes {
		c.Notes = append([]Note(nil), c.Notes[len(c.Notes)-MaxNotes:]...)
	}
}
