package lookup

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/upc-lookup/internal/signature"
)

const (
	testAppKey  = "/+Ab7Zy1q2w3"
	testAuthKey = "Be67Q9d5b5Bm4Cr7"
	testBarcode = "7501035911208"

	metadataPath = "/gtin/v2_0/"
	imagePrefix  = "/img/"
)

var testCreds = signature.Credentials{AppKey: testAppKey, AuthKey: testAuthKey}

// fakeUpstream stands in for the digit-eyes API and its image host.
type fakeUpstream struct {
	srv *httptest.Server

	metadata http.HandlerFunc
	image    http.HandlerFunc

	metadataHits atomic.Int32
	imageHits    atomic.Int32
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()

	f := &fakeUpstream{}
	mux := http.NewServeMux()
	mux.HandleFunc(metadataPath, func(w http.ResponseWriter, r *http.Request) {
		f.metadataHits.Add(1)
		q := r.URL.Query()
		if !signature.Verify(q.Get(signature.ParamUPCCode), testAuthKey, q.Get(signature.ParamSignature), signature.SHA1) ||
			q.Get(signature.ParamAppKey) != testAppKey {
			http.Error(w, "bad signature", http.StatusForbidden)
			return
		}
		f.metadata(w, r)
	})
	mux.HandleFunc(imagePrefix, func(w http.ResponseWriter, r *http.Request) {
		f.imageHits.Add(1)
		f.image(w, r)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	f.metadata = productMetadata("Widget")
	f.image = servePNG(pngBytes(t, 4, 3))
	return f
}

func (f *fakeUpstream) client(t *testing.T, opts ...Option) *Client {
	t.Helper()

	all := append([]Option{
		WithSignerOptions(signature.WithEndpoint(f.srv.URL + metadataPath)),
		WithHTTPClient(f.srv.Client()),
		WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	c, err := New(testCreds, all...)
	require.NoError(t, err)
	return c
}

func (f *fakeUpstream) imageURL(name string) string {
	return f.srv.URL + imagePrefix + name
}

// productMetadata answers with an absolute image URL on the same server.
func productMetadata(description string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e jx.Encoder
		e.Obj(func(e *jx.Encoder) {
			e.Field("upc_code", func(e *jx.Encoder) { e.Str(r.URL.Query().Get(signature.ParamUPCCode)) })
			e.Field("image", func(e *jx.Encoder) { e.Str("http://" + r.Host + imagePrefix + "product.png") })
			e.Field("description", func(e *jx.Encoder) { e.Str(description) })
		})
		writeJSON(w, e.Bytes())
	}
}

func rawMetadata(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []byte(body))
	}
}

func writeJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func servePNG(data []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = io.Copy(w, bytes.NewReader(data))
	}
}

func pngBytes(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
