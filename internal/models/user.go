package models

// User is read-only to the sync jobs; only the eligibility flags matter here.
type User struct {
	Base
	Email         string `gorm:"uniqueIndex;not null" json:"email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	IsActive      bool   `gorm:"not null" json:"is_active"`
	IsTestAccount bool   `gorm:"not null" json:"is_test_account"`
}
