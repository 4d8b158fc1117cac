package header

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedSetCookie is wrapped by every parse error returned from
// ParseSetCookie so callers can classify failures with errors.Is.
var ErrMalformedSetCookie = errors.New("header: malformed set-cookie")

// Cookie is a single parsed Set-Cookie header value.
//
// Attribute fields keep the raw header text: Expires is not parsed into a
// time and Domain keeps its original case. MaxAge is nil when the attribute
// is absent, distinguishing "not set" from an explicit zero.
type Cookie struct {
	Name    string
	Value   string
	Path    string
	Domain  string
	Expires string
	MaxAge  *int64

	// Wrapped records whether the value was enclosed in double quotes,
	// so serialization can reproduce the original form.
	Wrapped  bool
	Secure   bool
	HTTPOnly bool
}

// parseState tracks which cookie field the scanner is currently collecting.
type parseState int

const (
	stateUnknown parseState = iota
	stateValue
	statePath
	stateDomain
	stateExpires
	stateMaxAge
)

// avFieldStates maps lowercased attribute names to the state that collects
// their value. Attribute names not listed here are scanned but discarded.
var avFieldStates = map[string]parseState{
	"path":    statePath,
	"domain":  stateDomain,
	"expires": stateExpires,
	"max-age": stateMaxAge,
}

// ParseSetCookie parses a Set-Cookie header value in a single pass.
//
// The scanner assumes the canonical "; " separator between cookie-pairs and
// attributes and skips both characters at once. A value may be wrapped in
// double quotes; the quotes are stripped and recorded in Wrapped. When
// validate is true, the cookie name is checked against the token grammar and
// value characters against the cookie-octet ranges of RFC 6265 section 4.1.1,
// with %x## sequences validated as hex-encoded octets. Characters of the
// Expires attribute are exempt, as HTTP dates contain spaces and commas.
func ParseSetCookie(s string, validate bool) (*Cookie, error) {
	var (
		name, value               string
		path, domain, expires     string
		maxAge                    *int64
		haveName, haveValue       bool
		wrapped, secure, httpOnly bool
	)

	// commit stores the segment gathered since the last delimiter into the
	// field selected by the current state.
	state := stateUnknown
	commit := func(seg string, at int) error {
		switch state {
		case stateValue:
			value = seg
			haveValue = true
		case statePath:
			path = seg
		case stateDomain:
			domain = seg
		case stateExpires:
			expires = seg
		case stateMaxAge:
			n, err := strconv.ParseInt(seg, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: invalid max-age %q", ErrMalformedSetCookie, seg)
			}
			maxAge = &n
		default:
			if !haveName {
				return fmt.Errorf("%w: cookie value not found at index %d", ErrMalformedSetCookie, at)
			}
			switch {
			case strings.EqualFold(seg, "secure"):
				secure = true
			case strings.EqualFold(seg, "httponly"):
				httpOnly = true
			}
		}
		return nil
	}

	begin := 0
	i := 0
	for i < len(s) {
		switch c := s[i]; c {
		case '=':
			if !haveName {
				if i <= begin {
					return nil, fmt.Errorf("%w: cookie name cannot be empty", ErrMalformedSetCookie)
				}
				name = s[begin:i]
				if validate {
					if err := ValidateCookieName(name); err != nil {
						return nil, err
					}
				}
				haveName = true
				state = stateValue
			} else if state == stateUnknown {
				state = avFieldStates[strings.ToLower(s[begin:i])]
			} else {
				return nil, fmt.Errorf("%w: unexpected '=' at index %d", ErrMalformedSetCookie, i)
			}
			i++
			begin = i
		case '"':
			if state == stateValue {
				if wrapped {
					state = stateUnknown
					value = s[begin:i]
					haveValue = true
					// Skip DQUOTE SEMI SP.
					i += 3
					begin = i
				} else {
					wrapped = true
					i++
					begin = i
				}
			} else if !haveValue {
				return nil, fmt.Errorf("%w: unexpected quote at index %d", ErrMalformedSetCookie, i)
			}
			i++
		case '%':
			if validate {
				if err := validateHexOctet(s, i); err != nil {
					return nil, err
				}
			}
			// Skip %x##.
			i += 4
		case ';':
			if i+1 == len(s) {
				return nil, fmt.Errorf("%w: unexpected trailing ';'", ErrMalformedSetCookie)
			}
			if err := commit(s[begin:i], i); err != nil {
				return nil, err
			}
			state = stateUnknown
			// Skip SEMI SP.
			i += 2
			begin = i
		default:
			if validate && state != stateExpires && !validCookieOctet(int(c)) {
				return nil, fmt.Errorf("%w: unexpected character %q at index %d", ErrMalformedSetCookie, c, i)
			}
			i++
		}
	}

	if begin < len(s) {
		if err := commit(s[begin:], i); err != nil {
			return nil, err
		}
	}
	if !haveName {
		return nil, fmt.Errorf("%w: cookie name not found", ErrMalformedSetCookie)
	}
	if !haveValue {
		return nil, fmt.Errorf("%w: cookie value not found", ErrMalformedSetCookie)
	}

	return &Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   domain,
		Expires:  expires,
		MaxAge:   maxAge,
		Wrapped:  wrapped,
		Secure:   secure,
		HTTPOnly: httpOnly,
	}, nil
}

// String serializes the cookie back into Set-Cookie header form.
func (c *Cookie) String() string {
	var b strings.Builder
	b.Grow(len(c.Name) + len(c.Value) + 16)
	b.WriteString(c.Name)
	b.WriteByte('=')
	if c.Wrapped {
		b.WriteByte('"')
		b.WriteString(c.Value)
		b.WriteByte('"')
	} else {
		b.WriteString(c.Value)
	}
	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	}
	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Domain)
	}
	if c.Expires != "" {
		b.WriteString("; Expires=")
		b.WriteString(c.Expires)
	}
	if c.MaxAge != nil {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.FormatInt(*c.MaxAge, 10))
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	return b.String()
}

// Equal reports whether two cookies identify the same stored cookie: name
// and domain compare case-insensitively, path compares exactly. Values and
// attributes other than these do not participate in cookie identity.
func (c *Cookie) Equal(o *Cookie) bool {
	if c == nil || o == nil {
		return c == o
	}
	return strings.EqualFold(c.Name, o.Name) &&
		strings.EqualFold(c.Domain, o.Domain) &&
		c.Path == o.Path
}

// ValidateCookieName checks a cookie name against the HTTP token grammar:
// printable ASCII excluding separators. Issuers can use it to reject names
// that would not survive a parse round trip.
func ValidateCookieName(name string) error {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= ' ' || c >= 0x7f {
			return fmt.Errorf("%w: control character in cookie name", ErrMalformedSetCookie)
		}
		switch c {
		case '(', ')', '<', '>', '@', ',', ';', ':', '\\', '"', '/', '[', ']', '?', '{', '}':
			return fmt.Errorf("%w: separator %q in cookie name", ErrMalformedSetCookie, c)
		}
	}
	return nil
}

// validateHexOctet checks the %x## sequence starting at i for a hex-encoded
// cookie-octet.
func validateHexOctet(s string, i int) error {
	if len(s)-3 <= i {
		return fmt.Errorf("%w: truncated hex encoded value at index %d", ErrMalformedSetCookie, i)
	}
	if c := s[i+1]; c != 'x' && c != 'X' {
		return fmt.Errorf("%w: unexpected hex indicator %q at index %d", ErrMalformedSetCookie, c, i+1)
	}
	v := int(s[i+2]-'0')*16 + hexToDecimal(s[i+3])
	if !validCookieOctet(v) {
		return fmt.Errorf("%w: unexpected hex value %#x at index %d", ErrMalformedSetCookie, v, i)
	}
	return nil
}

// validCookieOctet reports whether v falls in the cookie-octet ranges of
// RFC 6265 section 4.1.1:
// %x21 / %x23-2B / %x2D-3A / %x3C-5B / %x5D-7E.
func validCookieOctet(v int) bool {
	return v == 33 ||
		(v >= 35 && v <= 43) ||
		(v >= 45 && v <= 58) ||
		(v >= 60 && v <= 91) ||
		(v >= 93 && v <= 126)
}

func hexToDecimal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}
