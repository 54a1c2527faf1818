package problem

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
)

// MediaType is the RFC7807 content type used for structured errors.
const MediaType = "application/problem+json"

// Problem is an RFC7807 error document, either received from the server or
// synthesized locally when the protocol contract is violated.
type Problem struct {
	Type     string           `json:"type,omitempty"`
	Title    string           `json:"title"`
	Status   int              `json:"status"`
	Detail   string           `json:"detail,omitempty"`
	Instance string           `json:"instance,omitempty"`
	Errors   []map[string]any `json:"errors,omitempty"`
}

// IsMediaType reports whether a Content-Type header denotes problem+json,
// tolerating parameters such as charset.
func IsMediaType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		// A bare unparseable value may still name the type.
		mediaType = strings.TrimSpace(strings.ToLower(contentType))
	}
	return mediaType == MediaType
}

// FromStatus synthesizes a Problem from an HTTP status line.
func FromStatus(statusCode int, statusText string) *Problem {
	title := statusText
	if title == "" {
		title = "Error"
	}
	return &Problem{Title: title, Status: statusCode}
}

// Decode deserializes a problem+json body. A malformed body yields a Problem
// synthesized from the status line instead of an error.
func Decode(r io.Reader, statusCode int, statusText string) *Problem {
	var p Problem
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return FromStatus(statusCode, statusText)
	}
	if p.Status == 0 {
		p.Status = statusCode
	}
	if p.Title == "" {
		p.Title = statusText
		if p.Title == "" {
			p.Title = "Error"
		}
	}
	return &p
}

// Unexpected describes a response that fits neither the problem+json nor the
// 202 ladder shape.
func Unexpected(statusCode int, detail string) *Problem {
	return &Problem{Title: "Unexpected response", Status: statusCode, Detail: detail}
}

// MissingStatusURL marks a 202 that carried no discoverable status URL. The
// contract guarantees one, so its absence is an upstream fault.
func MissingStatusURL() *Problem {
	return &Problem{Title: "Missing status URL", Status: http.StatusBadGateway}
}

// Write emits p as a problem+json response.
func Write(w http.ResponseWriter, p *Problem) {
	w.Header().Set("Content-Type", MediaType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
