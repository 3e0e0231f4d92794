package model

// SequenceCounter tracks the highest display-id sequence issued per two-digit
// year. Values only grow; sequences are never reused.
type SequenceCounter struct {
	Year        int `gorm:"primaryKey;autoIncrement:false"`
	MaxSequence int `gorm:"not null"`
}
