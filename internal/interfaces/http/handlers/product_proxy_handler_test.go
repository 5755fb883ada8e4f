package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "expat-market.storefront/internal/domain/errors"
	"expat-market.storefront/internal/infrastructure/backend"
	"expat-market.storefront/internal/interfaces/http/middleware"
)

type forwardedPart struct {
	contentType string
	filename    string
	body        []byte
}

type fakeUpdater struct {
	calls         int
	id            string
	contentType   string
	authorization string
	parts         map[string][]forwardedPart
	resp          *backend.ForwardResponse
	err           error
}

func (f *fakeUpdater) UpdateProduct(_ context.Context, id string, body io.Reader, contentType, authorization string) (*backend.ForwardResponse, error) {
	f.calls++
	f.id = id
	f.contentType = contentType
	f.authorization = authorization
	f.parts = map[string][]forwardedPart{}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, err
	}
	mr := multipart.NewReader(body, params["boundary"])
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		raw, _ := io.ReadAll(p)
		f.parts[p.FormName()] = append(f.parts[p.FormName()], forwardedPart{
			contentType: p.Header.Get("Content-Type"),
			filename:    p.FileName(),
			body:        raw,
		})
	}

	if f.resp == nil && f.err == nil {
		return &backend.ForwardResponse{Status: http.StatusOK, ContentType: "application/json", Body: []byte(`{"id":42}`)}, nil
	}
	return f.resp, f.err
}

type upload struct {
	field       string
	filename    string
	contentType string
	body        []byte
}

func multipartBody(t *testing.T, product string, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	if product != "" {
		require.NoError(t, mw.WriteField("product", product))
	}
	for _, f := range files {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		hdr.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(f.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func serveProxy(h *ProductProxyHandler, body io.Reader, contentType string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.PATCH("/api/products/:id", h.UpdateProduct)
	req := httptest.NewRequest(http.MethodPatch, "/api/products/42", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer user-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestProductProxy_RejectsOversizedImage(t *testing.T) {
	f := &fakeUpdater{}
	h := NewProductProxyHandler(f, ProductProxyLimits{})

	body, ct := multipartBody(t, `{"title":"Sofa"}`, upload{
		field: "images", filename: "big.jpg", contentType: "image/jpeg",
		body: bytes.Repeat([]byte{0xff}, 15<<20),
	})
	w := serveProxy(h, body, ct)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "File too large", decodeBody(t, w)["error"])
	assert.Zero(t, f.calls)
}

func TestProductProxy_NormalizesMultipart(t *testing.T) {
	f := &fakeUpdater{}
	h := NewProductProxyHandler(f, ProductProxyLimits{})

	body, ct := multipartBody(t, "{\n  \"title\": \"Sofa\",\n  \"price\": 120000\n}",
		upload{field: "images", filename: "a.png", contentType: "image/png", body: []byte("png-bytes")},
		upload{field: "images", filename: "b.jpg", contentType: "image/jpeg", body: []byte("jpg-bytes")},
	)
	w := serveProxy(h, body, ct)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":42}`, w.Body.String())
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, "42", f.id)
	assert.Equal(t, "Bearer user-token", f.authorization)
	assert.True(t, strings.HasPrefix(f.contentType, "multipart/form-data; boundary="))

	require.Len(t, f.parts["product"], 1)
	assert.Equal(t, "application/json", f.parts["product"][0].contentType)
	assert.Equal(t, `{"title":"Sofa","price":120000}`, string(f.parts["product"][0].body))

	require.Len(t, f.parts["images"], 2)
	assert.Equal(t, "a.png", f.parts["images"][0].filename)
	assert.Equal(t, "image/png", f.parts["images"][0].contentType)
	assert.Equal(t, "jpg-bytes", string(f.parts["images"][1].body))
}

func TestProductProxy_ProductAsJSONBlob(t *testing.T) {
	f := &fakeUpdater{}
	h := NewProductProxyHandler(f, ProductProxyLimits{})

	body, ct := multipartBody(t, "", upload{field: "product", filename: "blob", contentType: "application/json", body: []byte(`{"title":"Lamp"}`)})
	w := serveProxy(h, body, ct)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"title":"Lamp"}`, string(f.parts["product"][0].body))
	assert.Empty(t, f.parts["images"])
}

func TestProductProxy_ImageRules(t *testing.T) {
	tests := []struct {
		name   string
		file   upload
		errMsg string
	}{
		{name: "empty image", file: upload{field: "images", filename: "e.png", contentType: "image/png"}, errMsg: "Empty file"},
		{name: "not an image", file: upload{field: "images", filename: "doc.pdf", contentType: "application/pdf", body: []byte("%PDF")}, errMsg: "Invalid file type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeUpdater{}
			body, ct := multipartBody(t, `{"title":"x"}`, tt.file)
			w := serveProxy(NewProductProxyHandler(f, ProductProxyLimits{}), body, ct)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.errMsg, decodeBody(t, w)["error"])
			assert.Zero(t, f.calls)
		})
	}
}

func TestProductProxy_AggregateLimit(t *testing.T) {
	f := &fakeUpdater{}
	h := NewProductProxyHandler(f, ProductProxyLimits{MaxImageBytes: 10, MaxTotalBytes: 15})

	body, ct := multipartBody(t, `{"title":"x"}`,
		upload{field: "images", filename: "1.png", contentType: "image/png", body: []byte("12345678")},
		upload{field: "images", filename: "2.png", contentType: "image/png", body: []byte("12345678")},
	)
	w := serveProxy(h, body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Zero(t, f.calls)
}

func TestProductProxy_MissingOrInvalidProduct(t *testing.T) {
	f := &fakeUpdater{}
	h := NewProductProxyHandler(f, ProductProxyLimits{})

	body, ct := multipartBody(t, "")
	w := serveProxy(h, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Product data is required", decodeBody(t, w)["error"])

	body, ct = multipartBody(t, "not json")
	w = serveProxy(h, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid product data", decodeBody(t, w)["error"])
	assert.Zero(t, f.calls)
}

func TestProductProxy_JSONBody(t *testing.T) {
	f := &fakeUpdater{}
	h := NewProductProxyHandler(f, ProductProxyLimits{})

	w := serveProxy(h, strings.NewReader(`{"product":{"title":"Desk"}}`), "application/json; charset=utf-8")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"title":"Desk"}`, string(f.parts["product"][0].body))

	w = serveProxy(h, strings.NewReader(`{"title":"Chair","price":5}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"title":"Chair","price":5}`, string(f.parts["product"][0].body))

	w = serveProxy(h, strings.NewReader(`[1,2]`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProductProxy_UnsupportedContentType(t *testing.T) {
	f := &fakeUpdater{}
	w := serveProxy(NewProductProxyHandler(f, ProductProxyLimits{}), strings.NewReader("title=x"), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Zero(t, f.calls)
}

func TestProductProxy_BackendOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		resp   *backend.ForwardResponse
		err    error
		status int
		errMsg string
	}{
		{
			name:   "timeout",
			err:    domainerrors.Normalize(fmt.Errorf("request: %w", context.DeadlineExceeded)),
			status: http.StatusGatewayTimeout,
			errMsg: "Request timeout",
		},
		{
			name:   "transport failure",
			err:    domainerrors.Network(fmt.Errorf("connection refused")),
			status: http.StatusInternalServerError,
			errMsg: "Failed to update product",
		},
		{
			name: "backend cannot parse multipart",
			resp: &backend.ForwardResponse{
				Status:      http.StatusBadRequest,
				ContentType: "application/json",
				Body:        []byte(`{"message":"Required request part 'product' is not present"}`),
			},
			status: http.StatusBadGateway,
			errMsg: "Backend could not parse the upload",
		},
		{
			name: "backend validation error passes through",
			resp: &backend.ForwardResponse{
				Status:      http.StatusUnprocessableEntity,
				ContentType: "application/json",
				Body:        []byte(`{"error":"price must be positive"}`),
			},
			status: http.StatusUnprocessableEntity,
			errMsg: "price must be positive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeUpdater{resp: tt.resp, err: tt.err}
			h := NewProductProxyHandler(f, ProductProxyLimits{Timeout: time.Minute})
			body, ct := multipartBody(t, `{"title":"x"}`)
			w := serveProxy(h, body, ct)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.errMsg, decodeBody(t, w)["error"])
		})
	}
}

func TestProductProxy_MultipartDiagnostics(t *testing.T) {
	f := &fakeUpdater{resp: &backend.ForwardResponse{
		Status:      http.StatusInternalServerError,
		ContentType: "text/plain",
		Body:        []byte("MultipartException: Failed to parse multipart servlet request"),
	}}
	body, ct := multipartBody(t, `{"title":"x"}`, upload{field: "images", filename: "a.png", contentType: "image/png", body: []byte("px")})
	w := serveProxy(NewProductProxyHandler(f, ProductProxyLimits{}), body, ct)

	require.Equal(t, http.StatusBadGateway, w.Code)
	out := decodeBody(t, w)
	assert.Contains(t, out["message"], "MultipartException")
	details := out["details"].(map[string]interface{})
	assert.Equal(t, float64(http.StatusInternalServerError), details["backendStatus"])
	assert.Equal(t, float64(2), details["fileBytes"])
	assert.ElementsMatch(t, []interface{}{"product", "images:a.png"}, details["parts"])
}

func TestProductProxy_RejectsNonNumericID(t *testing.T) {
	for _, path := range []string{"/api/products/42%3Fadmin=1", "/api/products/abc", "/api/products/-3"} {
		updater := &fakeUpdater{}
		h := NewProductProxyHandler(updater, ProductProxyLimits{})
		body, ct := multipartBody(t, `{"title":"Sofa"}`)

		gin.SetMode(gin.TestMode)
		r := gin.New()
		r.PATCH("/api/products/:id", h.UpdateProduct)
		req := httptest.NewRequest(http.MethodPatch, path, body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, "Invalid product id", decodeBody(t, w)["error"], path)
		assert.Zero(t, updater.calls, path)
	}
}

func TestProductProxy_ForwardsTokenAcceptedByMiddleware(t *testing.T) {
	updater := &fakeUpdater{}
	h := NewProductProxyHandler(updater, ProductProxyLimits{})
	body, ct := multipartBody(t, `{"title":"Sofa"}`)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.PATCH("/api/products/:id", func(c *gin.Context) {
		c.Set(middleware.BearerTokenKey, "checked-token")
		c.Next()
	}, h.UpdateProduct)
	req := httptest.NewRequest(http.MethodPatch, "/api/products/42", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", updater.id)
	assert.Equal(t, "Bearer checked-token", updater.authorization)
}
