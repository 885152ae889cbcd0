package bundle

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

const (
	nsDAV      = "DAV:"
	nsSabre    = "http://sabredav.org/ns"
	nsOwnCloud = "http://owncloud.org/ns"
)

// Entry is the outcome of one put part.
type Entry struct {
	Href   string
	Status int
	OCPath string

	// Set on success.
	Props *Properties

	// Set on failure.
	Exception string
	Message   string
}

// Multistatus collects entries in processing order.
type Multistatus struct {
	Entries []Entry
}

func (m *Multistatus) addSuccess(href, ocPath string, props *Properties) {
	m.Entries = append(m.Entries, Entry{Href: href, Status: http.StatusOK, OCPath: ocPath, Props: props})
}

func (m *Multistatus) addError(href, ocPath string, pe *PartError) {
	m.Entries = append(m.Entries, Entry{
		Href:      href,
		Status:    http.StatusBadRequest,
		OCPath:    ocPath,
		Exception: pe.Exception,
		Message:   pe.Message,
	})
}

// Succeeded counts 2xx entries.
func (m *Multistatus) Succeeded() int {
	n := 0
	for _, e := range m.Entries {
		if e.Status >= 200 && e.Status < 300 {
			n++
		}
	}
	return n
}

// The wire types spell out prefixes in their tags; encoding/xml then emits
// them verbatim and the root declares what they stand for.

type xmlMultistatus struct {
	XMLName   xml.Name      `xml:"d:multistatus"`
	XmlnsD    string        `xml:"xmlns:d,attr"`
	XmlnsS    string        `xml:"xmlns:s,attr"`
	XmlnsOC   string        `xml:"xmlns:oc,attr"`
	Responses []xmlResponse `xml:"d:response"`
}

type xmlResponse struct {
	Href     string      `xml:"d:href"`
	Propstat xmlPropstat `xml:"d:propstat"`
}

type xmlPropstat struct {
	Prop   xmlProp `xml:"d:prop"`
	Status string  `xml:"d:status"`
}

type xmlProp struct {
	ETag          string        `xml:"d:getetag,omitempty"`
	ContentLength string        `xml:"d:getcontentlength,omitempty"`
	LastModified  string        `xml:"d:getlastmodified,omitempty"`
	FileID        string        `xml:"oc:fileid,omitempty"`
	Checksums     *xmlChecksums `xml:"oc:checksums,omitempty"`
	Error         *xmlError     `xml:"d:error,omitempty"`
	OCPath        string        `xml:"d:oc-path"`
}

type xmlChecksums struct {
	Checksum string `xml:"oc:checksum"`
}

type xmlError struct {
	XMLName   xml.Name `xml:"d:error"`
	XmlnsD    string   `xml:"xmlns:d,attr,omitempty"`
	XmlnsS    string   `xml:"xmlns:s,attr,omitempty"`
	Exception string   `xml:"s:exception"`
	Message   string   `xml:"s:message"`
}

func statusLine(code int) string {
	return fmt.Sprintf("HTTP/1.1 %d %s", code, http.StatusText(code))
}

// WriteXML renders the 207 body.
func (m *Multistatus) WriteXML(w io.Writer) error {
	doc := xmlMultistatus{XmlnsD: nsDAV, XmlnsS: nsSabre, XmlnsOC: nsOwnCloud}
	for _, e := range m.Entries {
		prop := xmlProp{OCPath: e.OCPath}
		if e.Props != nil {
			prop.ETag = `"` + e.Props.ETag + `"`
			prop.ContentLength = strconv.FormatInt(e.Props.Size, 10)
			prop.LastModified = e.Props.MTime.UTC().Format(http.TimeFormat)
			prop.FileID = e.Props.FileID
			if e.Props.Checksum != "" {
				prop.Checksums = &xmlChecksums{Checksum: e.Props.Checksum}
			}
		} else {
			prop.Error = &xmlError{Exception: e.Exception, Message: e.Message}
		}
		doc.Responses = append(doc.Responses, xmlResponse{
			Href:     e.Href,
			Propstat: xmlPropstat{Prop: prop, Status: statusLine(e.Status)},
		})
	}
	return encode(w, doc)
}

// WriteErrorXML renders the body of a fatal error.
func WriteErrorXML(w io.Writer, e *HTTPError) error {
	return encode(w, xmlError{XmlnsD: nsDAV, XmlnsS: nsSabre, Exception: e.Exception, Message: e.Message})
}

func encode(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", " ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
