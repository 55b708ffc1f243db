package identifier

// ErrorKind is a user-facing, recoverable-by-resubmission validation failure.
// Kinds are data carried in outcomes and verdicts, never Go errors.
type ErrorKind string

const (
	ErrorNone               ErrorKind = ""
	ErrorRequired           ErrorKind = "required"
	ErrorUnsupportedCountry ErrorKind = "unsupported_country"
	ErrorInvalidFormat      ErrorKind = "invalid_format"
	ErrorNotRegistered      ErrorKind = "not_registered"
	ErrorCountryMismatch    ErrorKind = "country_mismatch"
)

// Message returns the default user-facing message for k.
func (k ErrorKind) Message() string {
	switch k {
	case ErrorRequired:
		return "Please enter your VAT number."
	case ErrorUnsupportedCountry:
		return "The VAT number must start with a valid EU country code."
	case ErrorInvalidFormat:
		return "The VAT number format is invalid for its country."
	case ErrorNotRegistered:
		return "The VAT number is not registered in the VIES database."
	case ErrorCountryMismatch:
		return "The country must match the country of the VAT number."
	default:
		return ""
	}
}

func (k ErrorKind) String() string {
	return string(k)
}
