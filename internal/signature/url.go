package signature

import (
	"net/url"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/upc-lookup/internal/domain/product"
)

const (
	// DefaultEndpoint is the digit-eyes GTIN v2 lookup endpoint.
	DefaultEndpoint = "https://www.digit-eyes.com/gtin/v2_0/"
	// DefaultLanguage is the response language requested from the API.
	DefaultLanguage = "en"
)

// Query parameter names, in the order they appear in a lookup URL.
const (
	ParamUPCCode    = "upcCode"
	ParamFieldNames = "field_names"
	ParamLanguage   = "language"
	ParamAppKey     = "app_key"
	ParamSignature  = "signature"
)

// Credentials identify the caller to the lookup API. AuthKey is the shared
// HMAC secret and never leaves the process.
type Credentials struct {
	AppKey  string
	AuthKey string
}

// Signer builds signed lookup URLs for a fixed set of credentials.
// A Signer is immutable and safe for concurrent use.
type Signer struct {
	creds    Credentials
	alg      Algorithm
	endpoint string
	language string
}

// Option configures a Signer.
type Option func(*Signer)

// WithAlgorithm overrides the HMAC algorithm. The digit-eyes API only
// verifies SHA-1 signatures.
func WithAlgorithm(alg Algorithm) Option {
	return func(s *Signer) { s.alg = alg }
}

// WithEndpoint overrides the lookup endpoint.
func WithEndpoint(endpoint string) Option {
	return func(s *Signer) { s.endpoint = endpoint }
}

// WithLanguage overrides the requested response language.
func WithLanguage(lang string) Option {
	return func(s *Signer) { s.language = lang }
}

// NewSigner returns a Signer for creds.
func NewSigner(creds Credentials, opts ...Option) (*Signer, error) {
	s := &Signer{
		creds:    creds,
		alg:      DefaultAlgorithm,
		endpoint: DefaultEndpoint,
		language: DefaultLanguage,
	}
	for _, o := range opts {
		o(s)
	}
	if s.alg.hash() == nil {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "%q", string(s.alg))
	}
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "parse endpoint")
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, errors.Errorf("endpoint %q is not an absolute URL", s.endpoint)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, errors.Errorf("endpoint %q must not carry a query or fragment", s.endpoint)
	}
	return s, nil
}

// Algorithm returns the HMAC algorithm in use.
func (s *Signer) Algorithm() Algorithm { return s.alg }

// Sign returns the signature of barcode.
func (s *Signer) Sign(barcode string) (string, error) {
	return Compute(barcode, s.creds.AuthKey, s.alg)
}

// LookupURL returns the absolute, signed lookup URL for barcode.
func (s *Signer) LookupURL(barcode string) (string, error) {
	if barcode == "" {
		return "", &product.LookupError{
			Kind: product.KindInvalidInput,
			Err:  errors.New("barcode is empty"),
		}
	}
	sig, err := s.Sign(barcode)
	if err != nil {
		return "", errors.Wrap(err, "sign")
	}

	// url.Values.Encode sorts keys; the API expects a fixed order.
	var b strings.Builder
	b.WriteString(s.endpoint)
	b.WriteByte('?')
	writeParam(&b, ParamUPCCode, barcode, true)
	writeParam(&b, ParamFieldNames, "all", false)
	writeParam(&b, ParamLanguage, s.language, false)
	writeParam(&b, ParamAppKey, s.creds.AppKey, false)
	writeParam(&b, ParamSignature, sig, false)
	return b.String(), nil
}

func writeParam(b *strings.Builder, key, value string, first bool) {
	if !first {
		b.WriteByte('&')
	}
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(value))
}

// BuildLookupURL returns the signed digit-eyes lookup URL for barcode using
// HMAC-SHA1 and the default endpoint.
func BuildLookupURL(barcode, appKey, authKey string) (string, error) {
	s, err := NewSigner(Credentials{AppKey: appKey, AuthKey: authKey})
	if err != nil {
		return "", err
	}
	return s.LookupURL(barcode)
}
