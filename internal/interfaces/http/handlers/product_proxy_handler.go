package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainerrors "expat-market.storefront/internal/domain/errors"
	"expat-market.storefront/internal/infrastructure/backend"
	"expat-market.storefront/internal/interfaces/http/middleware"
	"expat-market.storefront/pkg/logger"
)

const (
	productField = "product"

	// multipart framing allowed on top of the aggregate file limit
	multipartOverhead = 1 << 20
	// parts above this spill to temp files while parsing
	multipartMemory = 32 << 20
)

type productUpdater interface {
	UpdateProduct(ctx context.Context, id string, body io.Reader, contentType, authorization string) (*backend.ForwardResponse, error)
}

// ProductProxyLimits bounds what an update may carry.
type ProductProxyLimits struct {
	Timeout       time.Duration
	MaxImageBytes int64
	MaxTotalBytes int64
}

// ProductProxyHandler normalizes product updates into a clean multipart body
// and forwards them to the backend.
type ProductProxyHandler struct {
	backend productUpdater
	limits  ProductProxyLimits
}

func NewProductProxyHandler(b productUpdater, limits ProductProxyLimits) *ProductProxyHandler {
	if limits.Timeout <= 0 {
		limits.Timeout = 5 * time.Minute
	}
	if limits.MaxImageBytes <= 0 {
		limits.MaxImageBytes = 10 << 20
	}
	if limits.MaxTotalBytes <= 0 {
		limits.MaxTotalBytes = 100 << 20
	}
	return &ProductProxyHandler{backend: b, limits: limits}
}

// proxyError is a rejection answered without reaching the backend.
type proxyError struct {
	status  int
	message string
	details gin.H
}

func (e *proxyError) Error() string { return e.message }

func reject(status int, message string, details gin.H) *proxyError {
	return &proxyError{status: status, message: message, details: details}
}

// outgoing is the normalized body plus what went into it.
type outgoing struct {
	body        *bytes.Buffer
	mw          *multipart.Writer
	contentType string
	parts       []string
	fileBytes   int64
}

// UpdateProduct forwards a product update.
// PATCH /api/products/:id
func (h *ProductProxyHandler) UpdateProduct(c *gin.Context) {
	ctx := c.Request.Context()
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Product id is required"})
		return
	}
	if n, err := strconv.ParseInt(id, 10, 64); err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product id"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.limits.MaxTotalBytes+multipartOverhead)

	var (
		out *outgoing
		err error
	)
	switch c.ContentType() {
	case "multipart/form-data":
		out, err = h.fromMultipart(c.Request)
	case "application/json":
		out, err = h.fromJSON(c.Request)
	default:
		c.JSON(http.StatusUnsupportedMediaType, gin.H{
			"error":   "Unsupported content type",
			"message": "Send multipart/form-data or application/json",
		})
		return
	}
	if err != nil {
		var pe *proxyError
		if errors.As(err, &pe) {
			body := gin.H{"error": pe.message}
			for k, v := range pe.details {
				body[k] = v
			}
			c.JSON(pe.status, body)
			return
		}
		logger.Error(ctx, "Failed to normalize product update", zap.String("productId", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process request", "message": err.Error()})
		return
	}

	fwdCtx, cancel := context.WithTimeout(ctx, h.limits.Timeout)
	defer cancel()

	logger.Info(ctx, "Forwarding product update",
		zap.String("productId", id),
		zap.Strings("parts", out.parts),
		zap.Int64("fileBytes", out.fileBytes),
	)

	resp, err := h.backend.UpdateProduct(fwdCtx, id, out.body, out.contentType, forwardedAuthorization(c))
	if err != nil {
		if isTimeout(err) || errors.Is(fwdCtx.Err(), context.DeadlineExceeded) {
			logger.Warn(ctx, "Product update timed out", zap.String("productId", id), zap.Duration("timeout", h.limits.Timeout))
			c.JSON(http.StatusGatewayTimeout, gin.H{
				"error":   "Request timeout",
				"message": fmt.Sprintf("The backend did not answer within %s", h.limits.Timeout),
			})
			return
		}
		appErr := domainerrors.Normalize(err)
		logger.Error(ctx, "Product update failed", zap.String("productId", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to update product",
			"message": appErr.Message,
			"kind":    appErr.Kind,
		})
		return
	}

	if resp.Status >= http.StatusBadRequest && isMultipartFailure(resp.Body) {
		logger.Error(ctx, "Backend rejected multipart body",
			zap.String("productId", id),
			zap.Int("backendStatus", resp.Status),
			zap.ByteString("backendBody", truncate(resp.Body, 512)),
		)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Backend could not parse the upload",
			"message": backendMessage(resp),
			"details": gin.H{
				"backendStatus": resp.Status,
				"contentType":   out.contentType,
				"parts":         out.parts,
				"fileBytes":     out.fileBytes,
				"bodyBytes":     out.body.Len(),
			},
		})
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.Status, contentType, resp.Body)
}

func (h *ProductProxyHandler) fromMultipart(r *http.Request) (*outgoing, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			return nil, h.tooLarge()
		}
		return nil, reject(http.StatusBadRequest, "Invalid multipart body", gin.H{"message": err.Error()})
	}
	form := r.MultipartForm
	defer form.RemoveAll()

	product, err := productFromForm(form)
	if err != nil {
		return nil, err
	}

	var total int64
	fields := sortedKeys(form.File)
	for _, field := range fields {
		if field == productField {
			continue
		}
		for _, fh := range form.File[field] {
			if err := h.checkImage(fh); err != nil {
				return nil, err
			}
			total += fh.Size
		}
	}
	if total > h.limits.MaxTotalBytes {
		return nil, h.tooLarge()
	}

	out := newOutgoing()
	if err := out.writeProduct(product); err != nil {
		return nil, err
	}
	for _, field := range sortedKeys(form.Value) {
		if field == productField {
			continue
		}
		for _, v := range form.Value[field] {
			if err := out.mw.WriteField(field, v); err != nil {
				return nil, err
			}
		}
		out.parts = append(out.parts, field)
	}
	for _, field := range fields {
		if field == productField {
			continue
		}
		for _, fh := range form.File[field] {
			if err := out.writeFile(field, fh); err != nil {
				return nil, err
			}
		}
	}
	out.fileBytes = total
	return out, out.close()
}

func (h *ProductProxyHandler) fromJSON(r *http.Request) (*outgoing, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		if isTooLarge(err) {
			return nil, h.tooLarge()
		}
		return nil, err
	}

	// {"product": {...}} or the bare product object
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, reject(http.StatusBadRequest, "Invalid product data", gin.H{"message": "body is not a JSON object"})
	}
	product := raw
	if inner, ok := wrapped[productField]; ok && len(wrapped) == 1 {
		product = inner
	}

	out := newOutgoing()
	if err := out.writeProduct(product); err != nil {
		return nil, err
	}
	return out, out.close()
}

func (h *ProductProxyHandler) checkImage(fh *multipart.FileHeader) error {
	switch {
	case fh.Size == 0:
		return reject(http.StatusBadRequest, "Empty file", gin.H{"file": fh.Filename})
	case fh.Size > h.limits.MaxImageBytes:
		return reject(http.StatusBadRequest, "File too large", gin.H{
			"file":    fh.Filename,
			"size":    fh.Size,
			"maxSize": h.limits.MaxImageBytes,
			"message": fmt.Sprintf("%s exceeds the %dMB limit", fh.Filename, h.limits.MaxImageBytes>>20),
		})
	case !strings.HasPrefix(strings.ToLower(fh.Header.Get("Content-Type")), "image/"):
		return reject(http.StatusBadRequest, "Invalid file type", gin.H{
			"file":        fh.Filename,
			"contentType": fh.Header.Get("Content-Type"),
			"message":     "Only image uploads are accepted",
		})
	}
	return nil
}

func (h *ProductProxyHandler) tooLarge() *proxyError {
	return reject(http.StatusRequestEntityTooLarge, "Payload too large", gin.H{
		"maxSize": h.limits.MaxTotalBytes,
		"message": fmt.Sprintf("Uploads may total at most %dMB", h.limits.MaxTotalBytes>>20),
	})
}

// productFromForm accepts the product as a text field or as a JSON blob part.
func productFromForm(form *multipart.Form) (json.RawMessage, error) {
	if vs := form.Value[productField]; len(vs) > 0 {
		return json.RawMessage(vs[0]), nil
	}
	if fhs := form.File[productField]; len(fhs) > 0 {
		f, err := fhs[0].Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		raw, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(raw), nil
	}
	return nil, reject(http.StatusBadRequest, "Product data is required", gin.H{"message": "missing product field"})
}

func newOutgoing() *outgoing {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	return &outgoing{body: buf, mw: mw, contentType: mw.FormDataContentType()}
}

// writeProduct validates the product JSON and writes it back compacted as
// an application/json part.
func (o *outgoing) writeProduct(raw json.RawMessage) error {
	var compact bytes.Buffer
	if err := json.Compact(&compact, bytes.TrimSpace(raw)); err != nil || compact.Len() == 0 || compact.Bytes()[0] != '{' {
		return reject(http.StatusBadRequest, "Invalid product data", gin.H{"message": "product must be a JSON object"})
	}

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="product"; filename="product.json"`)
	hdr.Set("Content-Type", "application/json")
	part, err := o.mw.CreatePart(hdr)
	if err != nil {
		return err
	}
	if _, err := part.Write(compact.Bytes()); err != nil {
		return err
	}
	o.parts = append(o.parts, productField)
	return nil
}

func (o *outgoing) writeFile(field string, fh *multipart.FileHeader) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fh.Filename))
	hdr.Set("Content-Type", fh.Header.Get("Content-Type"))
	part, err := o.mw.CreatePart(hdr)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	o.parts = append(o.parts, field+":"+fh.Filename)
	return nil
}

func (o *outgoing) close() error {
	return o.mw.Close()
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

var multipartFailureMarkers = []string{
	"multipart",
	"required request part",
	"boundary",
	"content type 'application/octet-stream' not supported",
}

// isMultipartFailure reports whether the backend choked on the body framing
// rather than on the product itself.
func isMultipartFailure(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, m := range multipartFailureMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func backendMessage(resp *backend.ForwardResponse) string {
	if resp.IsJSON() {
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err == nil {
			if payload.Message != "" {
				return payload.Message
			}
			if payload.Error != "" {
				return payload.Error
			}
		}
	}
	return string(truncate(resp.Body, 512))
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// forwardedAuthorization prefers the token accepted by BearerMiddleware and
// falls back to the raw header on unguarded routes.
func forwardedAuthorization(c *gin.Context) string {
	if token, ok := middleware.GetBearerToken(c); ok {
		return middleware.BearerPrefix + token
	}
	return c.GetHeader(middleware.AuthorizationHeader)
}
