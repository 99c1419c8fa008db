package mails

import (
	"github.com/ARUMANDESU/validation"
	"github.com/ARUMANDESU/validation/is"
)

// Payload is one outgoing email as handed to a transport.
type Payload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (p Payload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.From, validation.Required),
		validation.Field(&p.To, validation.Required, is.EmailFormat),
		validation.Field(&p.Subject, validation.Required),
		validation.Field(&p.HTML, validation.Required),
	)
}
