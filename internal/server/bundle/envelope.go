package bundle

import (
	"mime"
	"strings"
)

const expectedContentType = "multipart/mixed"

// boundaryFromContentType validates the request's Content-Type and returns
// its boundary parameter, unquoted.
func boundaryFromContentType(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return "", badRequest("Content-Type header is needed")
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", badRequest("Improper Content-type format. Boundary may be missing")
	}
	if mediaType != expectedContentType {
		return "", badRequest("Content-Type must be " + expectedContentType)
	}

	boundary := params["boundary"]
	if boundary == "" {
		return "", badRequest("Boundary is not set")
	}
	return boundary, nil
}
