package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAppKey  = "/+Ab7Zy1q2w3"
	testAuthKey = "Be67Q9d5b5Bm4Cr7"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSign(t *testing.T) {
	out, err := execute(t, "sign", "7501035911208", "--app-key", testAppKey, "--auth-key", testAuthKey)
	require.NoError(t, err)

	assert.Contains(t, out, "algorithm: sha1\n")
	assert.Contains(t, out, "signature: NaaeIhj5TNzRhjSWzyeNbca969g=\n")
	assert.Contains(t, out, "https://www.digit-eyes.com/gtin/v2_0/?upcCode=7501035911208&field_names=all&language=en"+
		"&app_key=%2F%2BAb7Zy1q2w3&signature=NaaeIhj5TNzRhjSWzyeNbca969g%3D")
}

func TestSign_Algorithm(t *testing.T) {
	out, err := execute(t, "sign", "7501035911208", "-a", "SHA-256", "--app-key", testAppKey, "--auth-key", testAuthKey)
	require.NoError(t, err)
	assert.Contains(t, out, "signature: WxMZLTpxIYeYgzMoVP+UqwmJmRomQxzRxzpqSN3rQDg=\n")

	_, err = execute(t, "sign", "7501035911208", "-a", "crc32", "--app-key", testAppKey, "--auth-key", testAuthKey)
	require.Error(t, err)
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv(envAppKey, testAppKey)
	t.Setenv(envAuthKey, testAuthKey)

	out, err := execute(t, "sign", "7501035911208")
	require.NoError(t, err)
	assert.Contains(t, out, "NaaeIhj5TNzRhjSWzyeNbca969g=")
}

func TestMissingCredentials(t *testing.T) {
	t.Setenv(envAppKey, "")
	t.Setenv(envAuthKey, "")

	for _, sub := range []string{"sign", "lookup"} {
		_, err := execute(t, sub, "7501035911208")
		require.Error(t, err, sub)
		assert.Contains(t, err.Error(), envAppKey)
	}

	_, err := execute(t, "sign", "7501035911208", "--app-key", testAppKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), envAuthKey)
}

func TestLookup(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	pngData := buf.Bytes()

	mux := http.NewServeMux()
	mux.HandleFunc("/gtin/v2_0/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("upcCode") != "7501035911208" {
			_, _ = w.Write([]byte(`{"return_code": "995", "return_message": "Not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"description": "Corn Flakes", "image": "/img/flakes.png"}`))
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(pngData)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	creds := []string{"--app-key", testAppKey, "--auth-key", testAuthKey, "--endpoint", srv.URL + "/gtin/v2_0/"}

	t.Run("prints and saves", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "flakes.png")
		out, err := execute(t, append([]string{"lookup", "7501035911208", "--image-out", path}, creds...)...)
		require.NoError(t, err)

		assert.Contains(t, out, "description: Corn Flakes\n")
		assert.Contains(t, out, srv.URL+"/img/flakes.png (png, ")
		saved, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, pngData, saved)
	})

	t.Run("reports kind", func(t *testing.T) {
		_, err := execute(t, append([]string{"lookup", "0000000000000"}, creds...)...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing_field")
	})

	t.Run("requires barcode", func(t *testing.T) {
		_, err := execute(t, append([]string{"lookup"}, creds...)...)
		require.Error(t, err)
	})
}
