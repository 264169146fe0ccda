package lottery

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
)

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// submittedAtLayout matches how a browser serialises a Date to JSON.
const submittedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// ContactRecord is built at submission time and is not kept after delivery.
type ContactRecord struct {
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	Email       string    `json:"email"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Normalize trims surrounding whitespace from every field.
func (c ContactRecord) Normalize() ContactRecord {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Address = strings.TrimSpace(c.Address)
	c.Email = strings.TrimSpace(c.Email)
	return c
}

// Validate applies the form's input rules. Fields are checked in form order.
func (c ContactRecord) Validate() error {
	c = c.Normalize()
	if c.Name == "" {
		return &ValidationError{Field: "name", Message: NoticeRequired}
	}
	if c.Phone == "" {
		return &ValidationError{Field: "phone", Message: NoticeRequired}
	}
	if !phonePattern.MatchString(c.Phone) {
		return &ValidationError{Field: "phone", Message: NoticeInvalidPhone}
	}
	if c.Address == "" {
		return &ValidationError{Field: "address", Message: NoticeRequired}
	}
	if c.Email == "" {
		return &ValidationError{Field: "email", Message: NoticeRequired}
	}
	if addr, err := mail.ParseAddress(c.Email); err != nil || addr.Address != c.Email {
		return &ValidationError{Field: "email", Message: NoticeInvalidEmail}
	}
	return nil
}

// Row is the ordered record the sheet endpoint appends.
func (c ContactRecord) Row() []string {
	return []string{
		c.Name,
		c.Phone,
		c.Address,
		c.Email,
		c.SubmittedAt.UTC().Format(submittedAtLayout),
	}
}
