package model

import "time"

// Promotion is a scheduled promotional audio clip played between songs.
type Promotion struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Title        string     `json:"title"`
	Promoter     string     `json:"promoter"`
	Description  string     `json:"description"`
	FilePath     string     `json:"-"`
	ActiveFrom   time.Time  `json:"activeFrom"`
	ActiveTo     time.Time  `json:"activeTo"`
	PlayCount    int        `json:"playCount"`
	LastPlayedAt *time.Time `json:"lastPlayedAt"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// TableName keeps promotions under a stable name.
func (Promotion) TableName() string {
	return "promotions"
}

// ActiveAt reports whether the promotion should air at the given time.
func (p *Promotion) ActiveAt(t time.Time) bool {
	return !t.Before(p.ActiveFrom) && !t.After(p.ActiveTo)
}

// Expired reports whether the promotion's window has fully passed.
func (p *Promotion) Expired(t time.Time) bool {
	return t.After(p.ActiveTo)
}
