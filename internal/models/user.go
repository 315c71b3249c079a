package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationPreferences struct {
	Email bool `bson:"email" json:"email"`
	SMS   bool `bson:"sms" json:"sms"`
	Push  bool `bson:"push" json:"push"`
}

type DashboardPreferences struct {
	DefaultView   string `bson:"default_view" json:"default_view"`
	RiskThreshold string `bson:"risk_threshold" json:"risk_threshold"`
}

type Preferences struct {
	Notifications NotificationPreferences `bson:"notifications" json:"notifications"`
	Dashboard     DashboardPreferences    `bson:"dashboard" json:"dashboard"`
}

// DefaultPreferences is what a freshly registered user gets.
func DefaultPreferences() Preferences {
	return Preferences{
		Notifications: NotificationPreferences{Email: true, SMS: false, Push: true},
		Dashboard:     DashboardPreferences{DefaultView: "map", RiskThreshold: RiskLevelMedium},
	}
}

// User struct matches the document in MongoDB
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         string             `bson:"role" json:"role"`
	Company      *string            `bson:"company" json:"company"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	LastLogin    *time.Time         `bson:"last_login" json:"last_login"`
	Preferences  Preferences        `bson:"preferences" json:"preferences"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
