package backend

import (
	"errors"
	"net/url"
	"strings"
)

// redact strips the query string from *url.Error so the credential carried in
// the key parameter never reaches the logs.
func redact(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	u, perr := url.Parse(uerr.URL)
	if perr != nil {
		// Unparseable URLs are cut at the query separator.
		raw, _, _ := strings.Cut(uerr.URL, "?")
		return &url.Error{Op: uerr.Op, URL: raw, Err: uerr.Err}
	}
	u.RawQuery = ""
	return &url.Error{Op: uerr.Op, URL: u.String(), Err: uerr.Err}
}
