package deliver_test

import (
	"compress/gzip"
	"compress/zlib"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eudore/deliver"
)

type outputRecord struct {
	txs []*deliver.Transaction
}

func (out *outputRecord) Print(...any) {}
func (out *outputRecord) Log(tx *deliver.Transaction, _ *deliver.Resource) {
	out.txs = append(out.txs, tx)
}

func newResponder(out deliver.Output) *deliver.Responder {
	return &deliver.Responder{
		Validator: deliver.NewValidator(),
		Output:    out,
		Logger:    deliver.NewLoggerNull(),
	}
}

func TestResponderStatus(t *testing.T) {
	errPage := errors.New("page error")
	tests := []struct {
		err    error
		code   int
		status int
	}{
		{nil, 0, http.StatusOK},
		{errPage, 0, http.StatusNotFound},
		{nil, http.StatusCreated, http.StatusCreated},
		{errPage, http.StatusInternalServerError, http.StatusInternalServerError},
		{nil, http.StatusFound, http.StatusFound},
	}
	for _, tt := range tests {
		out := &outputRecord{}
		r := httptest.NewRequest(http.MethodGet, "/page.html", nil)
		w := httptest.NewRecorder()
		res := &deliver.Resource{Type: "text/html", StatusCode: tt.code}
		newResponder(out).Respond(w, deliver.NewTransaction(r), res, tt.err, []byte("page"))
		if w.Code != tt.status {
			t.Errorf("err %v code %d: status %d, want %d", tt.err, tt.code, w.Code, tt.status)
		}
		if len(out.txs) != 1 || out.txs[0].Status != tt.status {
			t.Errorf("err %v code %d: logged %v", tt.err, tt.code, out.txs)
		}
		if !errors.Is(out.txs[0].Error, tt.err) {
			t.Errorf("logged error %v", out.txs[0].Error)
		}
	}
}

func TestResponderEncoding(t *testing.T) {
	body := []byte("compressible compressible compressible")
	readers := map[string]func(io.Reader) (io.Reader, error){
		deliver.EncodingGzip: func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		},
		deliver.EncodingDeflate: func(r io.Reader) (io.Reader, error) {
			return zlib.NewReader(r)
		},
		"": func(r io.Reader) (io.Reader, error) {
			return r, nil
		},
	}
	for encoding, newReader := range readers {
		out := &outputRecord{}
		r := httptest.NewRequest(http.MethodGet, "/data.txt", nil)
		w := httptest.NewRecorder()
		res := &deliver.Resource{Type: "text/plain", Encoding: encoding}
		newResponder(out).Respond(w, deliver.NewTransaction(r), res, nil, body)

		if ce := w.Header().Get(deliver.HeaderContentEncoding); ce != encoding {
			t.Errorf("%q: content-encoding %q", encoding, ce)
		}
		size := int64(w.Body.Len())
		reader, err := newReader(w.Body)
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(reader)
		if err != nil || string(data) != string(body) {
			t.Errorf("%q: body %q error %v", encoding, data, err)
		}
		if out.txs[0].Size != size {
			t.Errorf("%q: logged size %d, written %d", encoding, out.txs[0].Size, size)
		}
	}
}

func TestResponderEmptyBody(t *testing.T) {
	tests := []struct {
		method string
		code   int
		body   []byte
	}{
		{http.MethodGet, 0, nil},
		{http.MethodGet, http.StatusNotModified, []byte("cached")},
		{http.MethodHead, 0, []byte("head")},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, "/data.txt", nil)
		w := httptest.NewRecorder()
		res := &deliver.Resource{Type: "text/plain", Encoding: deliver.EncodingGzip, StatusCode: tt.code}
		newResponder(nil).Respond(w, deliver.NewTransaction(r), res, nil, tt.body)
		if w.Body.Len() != 0 {
			t.Errorf("%s %d: body %q", tt.method, tt.code, w.Body.String())
		}
		if ce := w.Header().Get(deliver.HeaderContentEncoding); ce != "" {
			t.Errorf("%s %d: content-encoding %q", tt.method, tt.code, ce)
		}
	}
}

func TestResponderNilResource(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	newResponder(nil).Respond(w, deliver.NewTransaction(r), nil, deliver.ErrResourceNotFound, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status %d", w.Code)
	}
	if ct := w.Header().Get(deliver.HeaderContentType); ct != "text/plain; charset=utf-8" {
		t.Errorf("content-type %q", ct)
	}
}
