// AngelaMos | 2026
// dto.go

package dispatch

// Request is the body of POST /functions/send-newsletter. Keys are camelCase
// to match the site's existing function callers.
type Request struct {
	NewsletterID     string `json:"newsletterId,omitempty"`
	SubscriberID     string `json:"subscriberId,omitempty"`
	EmailSubject     string `json:"emailSubject,omitempty"`
	EmailType        string `json:"emailType"`
	TestEmailAddress string `json:"testEmailAddress,omitempty" validate:"omitempty,email"`
}

type Response struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	RecipientCount int    `json:"recipientCount"`
	SentCount      int    `json:"sentCount"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
