package deliver

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"
	"net/http"
	"time"
)

// Responder defines the terminal stage of the pipeline: it selects the
// status, writes the synthesized headers and the encoded body,
// then logs the transaction.
type Responder struct {
	Validator *Validator
	Output    Output
	Logger    Logger
	// Dev enables the x-sourcemap header.
	Dev bool
}

// Respond method writes the response of res.
//
// Status: 200 if err is nil and res.StatusCode is unset, 404 if err is not
// nil and res.StatusCode is unset, else res.StatusCode.
// An empty body finalizes the response without body.
func (resp *Responder) Respond(w http.ResponseWriter, tx *Transaction, res *Resource, err error, body []byte) {
	if res == nil {
		res = newResourceNotFound()
	}
	res.Env.finish()

	code := StatusOK
	switch {
	case err == nil && res.StatusCode == 0:
	case res.StatusCode == 0:
		code = StatusNotFound
	default:
		code = res.StatusCode
	}

	var tag CacheTag
	if res.Static {
		tag = resp.Validator.Tag(res)
	}
	h := w.Header()
	for key, vals := range BuildHeaders(res, tag, resp.Dev) {
		h[key] = vals
	}
	if res.Encoding != "" {
		h.Add(HeaderVary, HeaderAcceptEncoding)
	}

	size := resp.writeBody(w, tx, res, code, body)
	if tx != nil {
		tx.Status = code
		tx.Size = size
		tx.Duration = time.Since(tx.Time)
		tx.Location = h.Get(HeaderLocation)
		tx.Error = err
		if resp.Output != nil {
			resp.Output.Log(tx, res)
		}
	}
}

func (resp *Responder) writeBody(w http.ResponseWriter, tx *Transaction, res *Resource, code int, body []byte) int64 {
	if len(body) == 0 || code == StatusNotModified || (tx != nil && tx.Method == http.MethodHead) {
		w.Header().Del(HeaderContentEncoding)
		w.WriteHeader(code)
		return 0
	}

	w.Header().Del(HeaderContentLength)
	w.WriteHeader(code)
	cw := &writerCounter{Writer: w}
	var err error
	switch res.Encoding {
	case EncodingGzip:
		zw := gzip.NewWriter(cw)
		_, err = io.Copy(zw, bytes.NewReader(body))
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
	case EncodingDeflate:
		zw, _ := zlib.NewWriterLevel(cw, zlib.DefaultCompression)
		_, err = io.Copy(zw, bytes.NewReader(body))
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
	default:
		_, err = io.Copy(cw, bytes.NewReader(body))
	}
	if err != nil && resp.Logger != nil {
		log := resp.Logger
		if tx != nil {
			log = log.WithField("x-request-id", tx.RequestID)
		}
		log.Errorf("Responder: write %s body error: %v", res.Filename, err)
	}
	return cw.Size
}

type writerCounter struct {
	io.Writer
	Size int64
}

func (w *writerCounter) Write(p []byte) (int, error) {
	n, err := w.Writer.Write(p)
	w.Size += int64(n)
	return n, err
}
