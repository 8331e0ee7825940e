// Package wire implements the DriftFS control protocol: JSON messages
// framed with a 4-byte big-endian length prefix, and the raw chunked
// byte streams that carry file contents for upload and download.
package wire

// Command names accepted by the dispatcher.
const (
	CmdList     = "list"
	CmdUpload   = "upload"
	CmdDownload = "download"
	CmdView     = "view"
	CmdDelete   = "delete"
)

// Status values carried in responses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
)

// Message is one framed protocol message. All fields are optional on the
// wire; which fields are meaningful depends on the direction and command.
// File contents are never carried inside a Message — only metadata and
// previews of at most PreviewSize bytes.
type Message struct {
	// Request fields
	Command  string `json:"command,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Filename string `json:"filename,omitempty"`

	// Size is the declared length of the raw byte stream that follows an
	// upload command or a download success response.
	Size int64 `json:"size,omitempty"`

	// Response fields
	Status  string   `json:"status,omitempty"`
	Detail  string   `json:"message,omitempty"`
	Files   []string `json:"files,omitempty"`
	Preview string   `json:"preview,omitempty"`
}

// PreviewSize is the maximum number of bytes returned by the view command.
const PreviewSize = 1024

// Error builds a status=error response with a descriptive message.
func Error(detail string) *Message {
	return &Message{Status: StatusError, Detail: detail}
}

// Success builds a bare status=success response.
func Success() *Message {
	return &Message{Status: StatusSuccess}
}
