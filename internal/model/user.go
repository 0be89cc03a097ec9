package model

import (
	"strings"
	"time"
)

// User is the planner who owns goals. Goals only keep the user's ID.
type User struct {
	ID               string    `db:"id" json:"id"`
	FirstName        string    `db:"first_name" json:"firstName"`
	LastName         string    `db:"last_name" json:"lastName"`
	Email            string    `db:"email" json:"email"`
	StripeCustomerID *string   `db:"stripe_customer_id" json:"-"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

func (u *User) HasPaymentMethod() bool {
	return u.StripeCustomerID != nil && *u.StripeCustomerID != ""
}

func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName)
}
