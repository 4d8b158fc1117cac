// Package header parses and serializes Set-Cookie header values.
//
// ParseSetCookie is a single-pass scanner over the raw header text. It
// assumes the canonical "; " separator between attributes, supports
// double-quote wrapped values, and can optionally validate names and values
// against the RFC 6265 grammar. Attribute text is kept raw: Expires stays a
// string and is never parsed into a time.
//
//	cookie, err := header.ParseSetCookie(`session="abc123"; Path=/; HttpOnly`, true)
//	if err != nil {
//	    ...
//	}
//	w.Header().Add("Set-Cookie", cookie.String())
package header
