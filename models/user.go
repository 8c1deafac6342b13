package models

// User holds the slice of the users collection this service reads. Account
// management lives in the main app backend; the push service only needs
// enough to authenticate callers and resolve device ownership.
type User struct {
	ID      string      `json:"_id" bson:"_id"`
	Details UserDetails `json:"user" bson:"user"`
	Version int32       `json:"__v" bson:"__v"`
}

// UserDetails holds the inner user structure as defined in the users collection in mongo
type UserDetails struct {
	Email                string      `json:"email" bson:"email"`
	Name                 string      `json:"name" bson:"name"`
	Username             string      `json:"username" bson:"username"`
	Password             string      `json:"password" bson:"password"`
	NotificationsEnabled bool        `json:"notificationsEnabled" bson:"notificationsEnabled"`
	CreatedAt            interface{} `json:"createdAt" bson:"createdAt"`
	UpdatedAt            interface{} `json:"updatedAt" bson:"updatedAt"`
}
