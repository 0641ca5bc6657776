package customer

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

const AggregateType = "Customer"

var (
	ErrInvalidEmail    = errors.New("email address is not valid")
	ErrInvalidPhone    = errors.New("phone number is not valid")
	ErrInvalidName     = errors.New("first and last name are required")
	ErrInvalidCurrency = errors.New("preferred currency must be a 3-letter code")
	ErrMissingPassword = errors.New("password hash is required")
)

var (
	phonePattern    = regexp.MustCompile(`^\+?[1-9][0-9]{6,14}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

type Address struct {
	Label      string `json:"label,omitempty"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Preferences struct {
	Newsletter        bool   `json:"newsletter"`
	PreferredCurrency string `json:"preferred_currency,omitempty"`
}

// Customer is referenced by orders. Emails are stored lower-cased.
type Customer struct {
	id           string
	firstName    string
	lastName     string
	email        string
	phone        string
	addresses    []Address
	preferences  Preferences
	passwordHash string
	createdAt    time.Time
	updatedAt    time.Time
	version      int
}

type Params struct {
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	Addresses    []Address
	Preferences  Preferences
	PasswordHash string
}

// NormalizeEmail validates an address and returns its canonical form.
func NormalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

// NormalizePhone strips common separators. An empty number is allowed.
func NormalizePhone(raw string) (string, error) {
	phone := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(raw)
	if phone == "" {
		return "", nil
	}
	if !phonePattern.MatchString(phone) {
		return "", ErrInvalidPhone
	}
	return phone, nil
}

func New(id string, p Params, now time.Time) (*Customer, error) {
	first, last := strings.TrimSpace(p.FirstName), strings.TrimSpace(p.LastName)
	if first == "" || last == "" {
		return nil, ErrInvalidName
	}
	email, err := NormalizeEmail(p.Email)
	if err != nil {
		return nil, err
	}
	phone, err := NormalizePhone(p.Phone)
	if err != nil {
		return nil, err
	}
	prefs := p.Preferences
	if prefs.PreferredCurrency != "" {
		prefs.PreferredCurrency = strings.ToUpper(prefs.PreferredCurrency)
		if !currencyPattern.MatchString(prefs.PreferredCurrency) {
			return nil, ErrInvalidCurrency
		}
	}
	if p.PasswordHash == "" {
		return nil, ErrMissingPassword
	}

	addresses := make([]Address, len(p.Addresses))
	copy(addresses, p.Addresses)

	return &Customer{
		id:           id,
		firstName:    first,
		lastName:     last,
		email:        email,
		phone:        phone,
		addresses:    addresses,
		preferences:  prefs,
		passwordHash: p.PasswordHash,
		createdAt:    now,
		updatedAt:    now,
		version:      1,
	}, nil
}

func (c *Customer) ID() string               { return c.id }
func (c *Customer) FirstName() string        { return c.firstName }
func (c *Customer) LastName() string         { return c.lastName }
func (c *Customer) Email() string            { return c.email }
func (c *Customer) Phone() string            { return c.phone }
func (c *Customer) Preferences() Preferences { return c.preferences }
func (c *Customer) PasswordHash() string     { return c.passwordHash }
func (c *Customer) CreatedAt() time.Time     { return c.createdAt }
func (c *Customer) UpdatedAt() time.Time     { return c.updatedAt }
func (c *Customer) Version() int             { return c.version }

func (c *Customer) FullName() string {
	return c.firstName + " " + c.lastName
}

func (c *Customer) Addresses() []Address {
	out := make([]Address, len(c.addresses))
	copy(out, c.addresses)
	return out
}

// State is the persisted form of a Customer.
type State struct {
	ID           string      `json:"id" db:"id"`
	FirstName    string      `json:"first_name" db:"first_name"`
	LastName     string      `json:"last_name" db:"last_name"`
	Email        string      `json:"email" db:"email"`
	Phone        string      `json:"phone,omitempty" db:"phone"`
	Addresses    []Address   `json:"addresses" db:"-"`
	Preferences  Preferences `json:"preferences" db:"-"`
	PasswordHash string      `json:"-" db:"password_hash"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
	Version      int         `json:"version" db:"version"`
}

func (c *Customer) Snapshot() State {
	return State{
		ID:           c.id,
		FirstName:    c.firstName,
		LastName:     c.lastName,
		Email:        c.email,
		Phone:        c.phone,
		Addresses:    c.Addresses(),
		Preferences:  c.preferences,
		PasswordHash: c.passwordHash,
		CreatedAt:    c.createdAt,
		UpdatedAt:    c.updatedAt,
		Version:      c.version,
	}
}

func Rehydrate(s State) *Customer {
	addresses := make([]Address, len(s.Addresses))
	copy(addresses, s.Addresses)
	return &Customer{
		id:           s.ID,
		firstName:    s.FirstName,
		lastName:     s.LastName,
		email:        s.Email,
		phone:        s.Phone,
		addresses:    addresses,
		preferences:  s.Preferences,
		passwordHash: s.PasswordHash,
		createdAt:    s.CreatedAt,
		updatedAt:    s.UpdatedAt,
		version:      s.Version,
	}
}
