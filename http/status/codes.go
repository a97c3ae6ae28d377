package status

import "strconv"

type (
	Code   uint16
	Status string
)

// HTTP status codes as registered with IANA.
// See: https://www.iana.org/assignments/http-status-codes/http-status-codes.xhtml
const (
	Continue           Code = 100
	SwitchingProtocols Code = 101

	OK        Code = 200
	Created   Code = 201
	Accepted  Code = 202
	NoContent Code = 204

	MovedPermanently  Code = 301
	Found             Code = 302
	SeeOther          Code = 303
	NotModified       Code = 304
	TemporaryRedirect Code = 307
	PermanentRedirect Code = 308

	BadRequest                  Code = 400
	Unauthorized                Code = 401
	Forbidden                   Code = 403
	NotFound                    Code = 404
	MethodNotAllowed            Code = 405
	RequestTimeout              Code = 408
	Conflict                    Code = 409
	LengthRequired              Code = 411
	RequestEntityTooLarge       Code = 413
	RequestURITooLong           Code = 414
	UnsupportedMediaType        Code = 415
	Teapot                      Code = 418
	UnprocessableEntity         Code = 422
	TooManyRequests             Code = 429
	RequestHeaderFieldsTooLarge Code = 431

	InternalServerError     Code = 500
	NotImplemented          Code = 501
	BadGateway              Code = 502
	ServiceUnavailable      Code = 503
	GatewayTimeout          Code = 504
	HTTPVersionNotSupported Code = 505
)

var texts = map[Code]Status{
	Continue:           "Continue",
	SwitchingProtocols: "Switching Protocols",

	OK:        "OK",
	Created:   "Created",
	Accepted:  "Accepted",
	NoContent: "No Content",

	MovedPermanently:  "Moved Permanently",
	Found:             "Found",
	SeeOther:          "See Other",
	NotModified:       "Not Modified",
	TemporaryRedirect: "Temporary Redirect",
	PermanentRedirect: "Permanent Redirect",

	BadRequest:                  "Bad Request",
	Unauthorized:                "Unauthorized",
	Forbidden:                   "Forbidden",
	NotFound:                    "Not Found",
	MethodNotAllowed:            "Method Not Allowed",
	RequestTimeout:              "Request Timeout",
	Conflict:                    "Conflict",
	LengthRequired:              "Length Required",
	RequestEntityTooLarge:       "Request Entity Too Large",
	RequestURITooLong:           "Request URI Too Long",
	UnsupportedMediaType:        "Unsupported Media Type",
	Teapot:                      "I'm a teapot",
	UnprocessableEntity:         "Unprocessable Entity",
	TooManyRequests:             "Too Many Requests",
	RequestHeaderFieldsTooLarge: "Request Header Fields Too Large",

	InternalServerError:     "Internal Server Error",
	NotImplemented:          "Not Implemented",
	BadGateway:              "Bad Gateway",
	ServiceUnavailable:      "Service Unavailable",
	GatewayTimeout:          "Gateway Timeout",
	HTTPVersionNotSupported: "HTTP Version Not Supported",
}

// Text returns the reason phrase of the code, or an empty string if the code is unknown.
func Text(code Code) Status {
	return texts[code]
}

// Line renders the "<code> <reason>" part of a status line. The custom reason overrides
// the registered one; an unknown code without a custom reason is rendered as
// "Unknown Status Code".
func Line(code Code, custom Status) string {
	reason := custom
	if len(reason) == 0 {
		reason = Text(code)
	}

	if len(reason) == 0 {
		reason = "Unknown Status Code"
	}

	return strconv.Itoa(int(code)) + " " + string(reason)
}
