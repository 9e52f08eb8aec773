package domain

// ResultKind discriminates the variants of BackendResult.
type ResultKind int

const (
	// ResultOK carries the raw successful response body.
	ResultOK ResultKind = iota
	// ResultPaymentRequired carries a parsed PaymentRequirement.
	ResultPaymentRequired
	// ResultTransportError covers network failures, timeouts, and non-2xx
	// statuses. Message is human-readable; RawBody may hold a body preview.
	ResultTransportError
	// ResultParseError covers responses whose shape could not be
	// interpreted. RawBody holds the offending payload.
	ResultParseError
)

// BackendResult is the tagged union every backend call resolves to. The
// Market Service Client never returns a Go error across its boundary; all
// failure modes are folded into this type so the caller can always produce a
// user-visible message.
type BackendResult struct {
	Kind    ResultKind
	Body    []byte             // ResultOK
	Payment PaymentRequirement // ResultPaymentRequired
	Message string             // ResultTransportError
	RawBody string             // ResultTransportError, ResultParseError
}

// OkResult wraps a raw successful response body.
func OkResult(body []byte) BackendResult {
	return BackendResult{Kind: ResultOK, Body: body}
}

// PaymentRequiredResult wraps a parsed payment requirement.
func PaymentRequiredResult(req PaymentRequirement) BackendResult {
	return BackendResult{Kind: ResultPaymentRequired, Payment: req}
}

// TransportErrorResult wraps a transport-level failure. rawBody may be empty.
func TransportErrorResult(message, rawBody string) BackendResult {
	return BackendResult{Kind: ResultTransportError, Message: message, RawBody: rawBody}
}

// ParseErrorResult wraps an uninterpretable payload.
func ParseErrorResult(rawBody string) BackendResult {
	return BackendResult{Kind: ResultParseError, RawBody: rawBody}
}
