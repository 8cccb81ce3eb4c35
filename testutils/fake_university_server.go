package testutils

import (
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
)

const (
	EthDescription     = "ETH Zurich is a public research university in Zurich, Switzerland."
	OgDescription      = "Open graph description of the university."
	TwitterDescription = "Twitter card description of the university."
)

var universityPages = map[string]string{
	"/eth": `<!DOCTYPE html><html><head>
<title>ETH Zurich</title>
<meta charset="utf-8">
<meta name="description" content="` + EthDescription + `">
<meta property="og:title" content="Homepage">
</head><body><p>Welcome</p></body></html>`,

	"/og": `<html><head>
<meta name="description" content="">
<meta property="og:description" content="` + OgDescription + `"/>
</head></html>`,

	"/twitter": `<html><head>
<meta name="twitter:description" content="` + TwitterDescription + `">
</head></html>`,

	"/none": `<html><head><title>Nothing here</title></head><body></body></html>`,
}

// FakeUniversityServer serves university home pages over TLS with a self signed certificate.
type FakeUniversityServer struct {
	s *httptest.Server
}

func NewFakeUniversityServer() *FakeUniversityServer {
	r := chi.NewRouter()
	for path, page := range universityPages {
		r.Get(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(page))
		})
	}
	r.Get("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	return &FakeUniversityServer{
		s: httptest.NewTLSServer(r),
	}
}

func (f *FakeUniversityServer) Close() {
	f.s.Close()
}

func (f *FakeUniversityServer) URL() string {
	return f.s.URL
}
