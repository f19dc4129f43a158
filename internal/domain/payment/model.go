package payment

// PaymentMethod is a card created from a test token. Token decides whether
// charges against it succeed.
type PaymentMethod struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id,omitempty"`
	Token      string `json:"token,omitempty"`
	Brand      string `json:"brand,omitempty"`
	Last4      string `json:"last4,omitempty"`
}
