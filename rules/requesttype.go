package rules

import (
	"math/bits"
	"strings"
)

// RequestType is the type of a request.  Each type is a separate bit, so that
// sets of types can be stored as masks.
type RequestType uint32

// RequestType values.
const (
	// TypeDocument is the main frame.
	TypeDocument RequestType = 1 << iota
	// TypeSubdocument is an iframe, $subdocument.
	TypeSubdocument
	// TypeScript is a JavaScript file, $script.
	TypeScript
	// TypeStylesheet is a CSS file, $stylesheet.
	TypeStylesheet
	// TypeObject is a plugin resource, $object.
	TypeObject
	// TypeImage is an image, $image.
	TypeImage
	// TypeXmlhttprequest is an XHR or fetch request, $xmlhttprequest.
	TypeXmlhttprequest
	// TypeMedia is audio or video, $media.
	TypeMedia
	// TypeFont is a web font, $font.
	TypeFont
	// TypeWebsocket is a WebSocket connection, $websocket.
	TypeWebsocket
	// TypePing is navigator.sendBeacon() or a ping attribute, $ping.
	TypePing
	// TypeCspReport is a CSP violation report.
	TypeCspReport
	// TypeOther is any other request type, $other.
	TypeOther
)

// TypeAll is the mask of all request types.
const TypeAll = TypeDocument |
	TypeSubdocument |
	TypeScript |
	TypeStylesheet |
	TypeObject |
	TypeImage |
	TypeXmlhttprequest |
	TypeMedia |
	TypeFont |
	TypeWebsocket |
	TypePing |
	TypeCspReport |
	TypeOther

// requestTypeNames are the canonical modifier names of request types.
var requestTypeNames = map[RequestType]string{
	TypeDocument:       "document",
	TypeSubdocument:    "subdocument",
	TypeScript:         "script",
	TypeStylesheet:     "stylesheet",
	TypeObject:         "object",
	TypeImage:          "image",
	TypeXmlhttprequest: "xmlhttprequest",
	TypeMedia:          "media",
	TypeFont:           "font",
	TypeWebsocket:      "websocket",
	TypePing:           "ping",
	TypeCspReport:      "csp_report",
	TypeOther:          "other",
}

// contentTypeModifiers maps the content-type modifiers to request types.
// $document is not here since it has additional semantics.
var contentTypeModifiers = map[string]RequestType{
	"subdocument":    TypeSubdocument,
	"script":         TypeScript,
	"stylesheet":     TypeStylesheet,
	"object":         TypeObject,
	"image":          TypeImage,
	"xmlhttprequest": TypeXmlhttprequest,
	"media":          TypeMedia,
	"font":           TypeFont,
	"websocket":      TypeWebsocket,
	"ping":           TypePing,
	"other":          TypeOther,
}

// Count returns the number of request types in t.
func (t RequestType) Count() (n int) {
	return bits.OnesCount32(uint32(t))
}

// String implements the [fmt.Stringer] interface for RequestType.
func (t RequestType) String() (s string) {
	var names []string
	for i := range 32 {
		bit := RequestType(1) << i
		if t&bit == 0 {
			continue
		}

		if name, ok := requestTypeNames[bit]; ok {
			names = append(names, name)
		}
	}

	return strings.Join(names, ",")
}

// ParseRequestType returns the request type by its name.  ok is false if name
// is unknown.
func ParseRequestType(name string) (t RequestType, ok bool) {
	name = strings.ToLower(name)
	for rt, n := range requestTypeNames {
		if n == name {
			return rt, true
		}
	}

	return 0, false
}
