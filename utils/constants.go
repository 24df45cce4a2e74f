package utils

// Query and header names shared by the HTTP bridge and the CLI.
const (
	QueryApplicationID = "applicationId"
	QueryType          = "type"
	QueryAmount        = "amount"
	QueryRecheck       = "recheck"
	QueryLimit         = "limit"

	HeaderRazorpaySignature = "X-Razorpay-Signature"
	HeaderTraceID           = "X-Trace-ID"
)

// Response content types
const (
	ContentTypeJSON = "application/json"
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)
