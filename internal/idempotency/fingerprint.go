package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
)

const maxFingerprintBody = 10 << 20 // 10 MiB of body read for hashing

// Fingerprint computes a stable hash over (method, path, normalized body).
// Multipart uploads are reduced to per-part {name, size, mime} metadata so a
// retry of the same upload matches without re-hashing file bytes. The request
// body is restored for downstream handlers.
func Fingerprint(r *http.Request) (string, error) {
	h := sha256.New()
	io.WriteString(h, r.Method)
	io.WriteString(h, "|")
	io.WriteString(h, r.URL.Path)
	io.WriteString(h, "|")

	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		digest, err := multipartDigest(r, params["boundary"])
		if err != nil {
			return "", err
		}
		io.WriteString(h, digest)
	} else if r.Body != nil {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxFingerprintBody))
		if err != nil {
			return "", err
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		h.Write(normalizeBody(body))
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// normalizeBody compacts JSON so formatting differences do not break replay
// matching. Non-JSON bodies hash as-is.
func normalizeBody(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.Bytes()
		}
	}
	return trimmed
}

func multipartDigest(r *http.Request, boundary string) (string, error) {
	if boundary == "" {
		return "", fmt.Errorf("multipart request without boundary")
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxFingerprintBody))
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	var parts []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		if part.FileName() != "" {
			// file parts reduce to metadata, not raw bytes
			size, _ := io.Copy(io.Discard, part)
			parts = append(parts, fmt.Sprintf("file:%s:%s:%d:%s",
				part.FormName(), part.FileName(), size, part.Header.Get("Content-Type")))
		} else {
			value, _ := io.ReadAll(io.LimitReader(part, 1<<20))
			parts = append(parts, fmt.Sprintf("field:%s:%s", part.FormName(), string(value)))
		}
		part.Close()
	}

	// part order is client-controlled; sort for stability
	sort.Strings(parts)
	return strings.Join(parts, "\n"), nil
}
