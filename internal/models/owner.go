package models

// Owner is who an order belongs to: exactly one of AuthenticatedOwner or
// GuestOwner.
type Owner interface {
	isOwner()
}

type AuthenticatedOwner struct {
	UserID uint
}

type GuestOwner struct {
	Name  string
	Email string
}

func (AuthenticatedOwner) isOwner() {}
func (GuestOwner) isOwner()         {}
