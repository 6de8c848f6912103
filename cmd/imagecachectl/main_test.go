// Shared main test code
package main

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	transport "github.com/imagecached/imagecached/pkg/http"
	"github.com/imagecached/imagecached/pkg/http/client"
)

func mockRootOpts(trip *genericMockRoundTripper) *rootOpts {
	c := http.Client{
		Transport: trip,
	}
	mockAPI := client.New(&c, transport.NewAPIRouter(), "http://localhost")
	return &rootOpts{
		API: mockAPI,
	}
}

type genericMockRoundTripper struct {
	mockResponses  map[*mux.Route]interface{}
	requestHistory []mux.RouteMatch
}

func (t *genericMockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var matched mux.RouteMatch
	var b []byte
	status := 404
	for k, v := range t.mockResponses {
		if k.Match(req, &matched) {
			if matched.Vars == nil {
				matched.Vars = map[string]string{}
			}
			for x, y := range req.URL.Query() {
				matched.Vars[x] = strings.Join(y, ",")
			}
			t.requestHistory = append(t.requestHistory, matched)
			b, _ = json.Marshal(v)
			status = 200
			break
		}
	}
	return &http.Response{
		StatusCode: status,
		Body:       ioutil.NopCloser(bytes.NewReader(b)),
	}, nil
}

func calledRequest(method string, calls []mux.RouteMatch) (matched mux.RouteMatch) {
	for _, r := range calls {
		if method == r.Route.GetName() {
			matched = r
			break
		}
	}
	return
}

func calledURL(method string, calls []mux.RouteMatch) (u *url.URL) {
	r := calledRequest(method, calls)
	var vars []string
	for ik, iv := range r.Vars {
		vars = append(vars, ik)
		vars = append(vars, iv)
	}
	if r.Route != nil {
		u, _ = r.Route.URL(vars...)
	}
	return u
}
