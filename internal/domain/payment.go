package domain

// PaymentRequirement describes what the backend asked for when it gated a
// piece of premium content. Produced only from a payment-required response.
type PaymentRequirement struct {
	Amount  float64
	Asset   string // currency code, e.g. "USDC"
	Address string // destination address
}

// PaymentVerification is the backend's verdict on a submitted proof.
type PaymentVerification struct {
	Success bool
	Reason  string // populated when Success is false
}
