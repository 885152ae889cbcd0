package client

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Result is the server's verdict on one uploaded file.
type Result struct {
	Path string // as sent in X-OC-Path
	OK   bool

	ETag     string
	Size     int64
	MTime    time.Time
	FileID   string
	Checksum string

	Exception string
	Message   string
}

type davMultistatus struct {
	XMLName   xml.Name      `xml:"DAV: multistatus"`
	Responses []davResponse `xml:"DAV: response"`
}

type davResponse struct {
	Href     string `xml:"DAV: href"`
	Propstat struct {
		Status string  `xml:"DAV: status"`
		Prop   davProp `xml:"DAV: prop"`
	} `xml:"DAV: propstat"`
}

type davProp struct {
	ETag          string `xml:"DAV: getetag"`
	ContentLength string `xml:"DAV: getcontentlength"`
	LastModified  string `xml:"DAV: getlastmodified"`
	FileID        string `xml:"http://owncloud.org/ns fileid"`
	Checksums     struct {
		Checksum string `xml:"http://owncloud.org/ns checksum"`
	} `xml:"http://owncloud.org/ns checksums"`
	OCPath string    `xml:"DAV: oc-path"`
	Error  *davError `xml:"DAV: error"`
}

type davError struct {
	Exception string `xml:"http://sabredav.org/ns exception"`
	Message   string `xml:"http://sabredav.org/ns message"`
}

func decodeMultistatus(r io.Reader) ([]Result, error) {
	var ms davMultistatus
	if err := xml.NewDecoder(r).Decode(&ms); err != nil {
		return nil, fmt.Errorf("decode multistatus: %w", err)
	}

	results := make([]Result, 0, len(ms.Responses))
	for _, resp := range ms.Responses {
		p := resp.Propstat.Prop
		res := Result{Path: p.OCPath}
		if p.Error != nil {
			res.Exception = p.Error.Exception
			res.Message = p.Error.Message
			results = append(results, res)
			continue
		}

		res.OK = true
		res.ETag = strings.Trim(p.ETag, `"`)
		res.FileID = p.FileID
		res.Checksum = p.Checksums.Checksum
		if p.ContentLength != "" {
			size, err := strconv.ParseInt(p.ContentLength, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("decode multistatus: content length %q: %w", p.ContentLength, err)
			}
			res.Size = size
		}
		if p.LastModified != "" {
			if mtime, err := http.ParseTime(p.LastModified); err == nil {
				res.MTime = mtime
			}
		}
		results = append(results, res)
	}
	return results, nil
}

func decodeError(status int, r io.Reader) error {
	se := &ServerError{Status: status}
	var body davError
	if err := xml.NewDecoder(r).Decode(&body); err == nil {
		se.Exception = body.Exception
		se.Message = body.Message
	}
	if se.Message == "" {
		se.Message = http.StatusText(status)
	}
	return se
}
