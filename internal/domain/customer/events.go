package customer

import "time"

const EventCustomerRegistered = "CustomerRegistered"

// CustomerRegistered never carries the password hash.
type CustomerRegistered struct {
	CustomerID  string    `json:"customer_id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Newsletter  bool      `json:"newsletter,omitempty"`
	OccurredOn  time.Time `json:"occurred_on"`
}

func NewRegistered(c *Customer) CustomerRegistered {
	return CustomerRegistered{
		CustomerID:  c.id,
		Email:       c.email,
		FirstName:   c.firstName,
		LastName:    c.lastName,
		PhoneNumber: c.phone,
		Newsletter:  c.preferences.Newsletter,
		OccurredOn:  c.createdAt,
	}
}
