// Package fetch retrieves linked pages and classifies what kind of source
// they are from page metadata.
package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/trustlens/evidence-verifier/internal/netguard"
)

// Fetch failure reasons
const (
	ReasonTimeout   = "timeout"
	ReasonTLS       = "tls_error"
	ReasonHTTPError = "http_error"
)

// ErrTooManyRedirects is returned when a redirect chain exceeds MaxRedirects
var ErrTooManyRedirects = errors.New("too many redirects")

// Error is a fetch failure with a machine-readable reason
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options configures a Fetcher
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	MaxRedirects int

	// DialControl, when set, is installed on the dialer and may refuse a
	// connection after the address is known.
	DialControl func(network, address string, c syscall.RawConn) error
	// CheckRedirect, when set, is consulted for every redirect hop.
	CheckRedirect func(req *http.Request, via []*http.Request) error
}

// DefaultOptions returns the options used by the verifier service
func DefaultOptions() Options {
	return Options{
		Timeout:      10 * time.Second,
		UserAgent:    "TL-Verifier/1.0 (+evidence-check)",
		MaxBodyBytes: 2 * 1024 * 1024,
		MaxRedirects: 10,
	}
}

// Page is what the fetcher learned about a URL
type Page struct {
	Status      int
	FinalURL    string
	ContentType string
	HTML        string
}

// Fetcher issues HEAD then GET requests for candidate evidence links
type Fetcher struct {
	client       *resty.Client
	maxBodyBytes int64
}

type response struct {
	status      int
	finalURL    string
	contentType string
	body        string
}

// NewFetcher creates a fetcher from opts
func NewFetcher(opts Options) *Fetcher {
	defaults := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = defaults.MaxRedirects
	}

	dialer := &net.Dialer{
		Timeout:   opts.Timeout,
		KeepAlive: 30 * time.Second,
		Control:   opts.DialControl,
	}

	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   opts.Timeout,
		ExpectContinueTimeout: time.Second,
	}

	maxRedirects := opts.MaxRedirects
	policies := []interface{}{
		resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		}),
	}
	if opts.CheckRedirect != nil {
		policies = append(policies, resty.RedirectPolicyFunc(opts.CheckRedirect))
	}

	client := resty.New().
		SetTransport(transport).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetRedirectPolicy(policies...)

	return &Fetcher{
		client:       client,
		maxBodyBytes: opts.MaxBodyBytes,
	}
}

// Fetch issues a HEAD request and follows up with a GET when the page body
// is needed for classification. PDFs and other non-HTML content are never
// downloaded.
func (f *Fetcher) Fetch(ctx context.Context, target string) (*Page, error) {
	head, err := f.do(ctx, http.MethodHead, target)
	if err != nil {
		return nil, err
	}

	page := &Page{
		Status:      head.status,
		FinalURL:    head.finalURL,
		ContentType: head.contentType,
	}

	if !needsBody(head) {
		return page, nil
	}

	get, err := f.do(ctx, http.MethodGet, page.FinalURL)
	if err != nil {
		return nil, err
	}

	page.Status = get.status
	page.FinalURL = get.finalURL
	if get.contentType != "" {
		page.ContentType = get.contentType
	}
	if strings.Contains(page.ContentType, "text/html") {
		page.HTML = get.body
	}

	return page, nil
}

func needsBody(head *response) bool {
	if head.status == http.StatusMethodNotAllowed || head.status == http.StatusNotImplemented {
		return true
	}
	return head.contentType == "" || strings.Contains(head.contentType, "text/html")
}

func (f *Fetcher) do(ctx context.Context, method, target string) (*response, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Execute(method, target)
	if err != nil {
		reason := errorReason(err)
		logrus.WithFields(logrus.Fields{
			"method": method,
			"url":    target,
			"reason": reason,
		}).Debugf("Fetch failed: %v", err)
		return nil, &Error{Reason: reason, Err: err}
	}

	body := resp.RawBody()
	defer body.Close()

	out := &response{
		status:      resp.StatusCode(),
		finalURL:    target,
		contentType: mediaType(resp.Header().Get("Content-Type")),
	}
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		out.finalURL = resp.RawResponse.Request.URL.String()
	}

	if method == http.MethodGet && strings.Contains(out.contentType, "text/html") {
		data, err := io.ReadAll(io.LimitReader(body, f.maxBodyBytes))
		if err != nil {
			return nil, &Error{Reason: errorReason(err), Err: err}
		}
		out.body = string(data)
	}

	return out, nil
}

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(header); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(strings.Split(header, ";")[0]))
}

// errorReason maps a transport error to timeout, tls_error or
// http_error:<kind>.
func errorReason(err error) string {
	var (
		netErr      net.Error
		dnsErr      *net.DNSError
		opErr       *net.OpError
		certErr     *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ReasonTimeout
	case errors.As(err, &certErr), errors.As(err, &recordErr), errors.As(err, &unknownAuth),
		errors.As(err, &hostErr), errors.As(err, &invalidErr):
		return ReasonTLS
	case errors.Is(err, ErrTooManyRedirects):
		return ReasonHTTPError + ":too_many_redirects"
	case errors.Is(err, netguard.ErrNonPublicAddress):
		return ReasonHTTPError + ":blocked_destination"
	case errors.Is(err, context.Canceled):
		return ReasonHTTPError + ":canceled"
	case errors.Is(err, syscall.ECONNREFUSED):
		return ReasonHTTPError + ":connection_refused"
	case errors.Is(err, syscall.ECONNRESET):
		return ReasonHTTPError + ":connection_reset"
	case errors.As(err, &dnsErr):
		return ReasonHTTPError + ":dns"
	case errors.As(err, &opErr):
		return ReasonHTTPError + ":connection"
	default:
		return ReasonHTTPError + ":request"
	}
}
