package review

import "errors"

// Client input errors. Surfaced as 4xx.
var (
	ErrMethodNotAllowed    = errors.New("method not allowed")
	ErrNoFileUploaded      = errors.New("no file uploaded")
	ErrEmptyOrInvalidCode  = errors.New("code is empty or invalid")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)

// ErrArchiveExtraction indicates the uploaded zip could not be read or unpacked.
var ErrArchiveExtraction = errors.New("archive extraction failed")

// Completion service errors.
var (
	// ErrUpstreamAuth indicates the provider rejected (or was never given) credentials.
	ErrUpstreamAuth = errors.New("ai provider rejected credentials")
	// ErrUpstreamQuota indicates the provider returned a quota/limit error (HTTP 429 or similar).
	ErrUpstreamQuota = errors.New("ai quota exceeded")
	// ErrUpstreamUnavailable covers every other provider-side failure.
	ErrUpstreamUnavailable = errors.New("ai provider unavailable")
)

const (
	MsgMethodNotAllowed = "Method not allowed. Use POST."
	MsgNoFileUploaded   = "No file uploaded. Please attach a file in the 'codeFile' field."
	MsgEmptyCode        = "Code is required and must be a non-empty string."
	MsgUnsupportedFile  = "Unsupported file type. Upload a source file or a .zip archive."
	MsgFileTooLarge     = "File too large. Maximum allowed is 4.5MB."
	MsgArchive          = "Failed to process the uploaded ZIP archive. Make sure it is a valid zip file."
	MsgUpstreamAuth     = "AI service authentication failed. Check the API key configuration on the server."
	MsgUpstreamQuota    = "AI service quota exceeded. Please try again later."
	MsgUpstreamGeneric  = "Failed to get analysis from the AI service. Please try again later."
	MsgInternal         = "An unexpected error occurred while analyzing the code."
)

// UserMessage maps err to the fixed message shown to the caller.
// Internal detail never leaks into the message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMethodNotAllowed):
		return MsgMethodNotAllowed
	case errors.Is(err, ErrNoFileUploaded):
		return MsgNoFileUploaded
	case errors.Is(err, ErrEmptyOrInvalidCode):
		return MsgEmptyCode
	case errors.Is(err, ErrUnsupportedFileType):
		return MsgUnsupportedFile
	case errors.Is(err, ErrFileTooLarge):
		return MsgFileTooLarge
	case errors.Is(err, ErrArchiveExtraction):
		return MsgArchive
	case errors.Is(err, ErrUpstreamAuth):
		return MsgUpstreamAuth
	case errors.Is(err, ErrUpstreamQuota):
		return MsgUpstreamQuota
	case errors.Is(err, ErrUpstreamUnavailable):
		return MsgUpstreamGeneric
	default:
		return MsgInternal
	}
}

// IsClientError reports whether err is caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMethodNotAllowed) ||
		errors.Is(err, ErrNoFileUploaded) ||
		errors.Is(err, ErrEmptyOrInvalidCode) ||
		errors.Is(err, ErrUnsupportedFileType) ||
		errors.Is(err, ErrFileTooLarge)
}

// IsUpstreamError reports whether err came from the completion service.
func IsUpstreamError(err error) bool {
	return errors.Is(err, ErrUpstreamAuth) ||
		errors.Is(err, ErrUpstreamQuota) ||
		errors.Is(err, ErrUpstreamUnavailable)
}
