package models

import "time"

const AdminSubject = "admin"

// AdminIdentity is what a verified admin token resolves to.
type AdminIdentity struct {
	Subject   string
	TokenID   string
	ExpiresAt time.Time
}
