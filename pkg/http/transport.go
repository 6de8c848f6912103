package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	apierrors "github.com/imagecached/imagecached/pkg/errors"
)

// SourceHeader says where GetImage served the payload from: "cache"
// or "store".
const SourceHeader = "X-Image-Source"

func NewAPIRouter() *mux.Router {
	r := mux.NewRouter()

	r.NewRoute().Name(Ping).Methods("GET").Path("/v1/ping")
	r.NewRoute().Name(Version).Methods("GET").Path("/v1/version")

	r.NewRoute().Name(GetImage).Methods("GET").Path("/v1/images/{id}")

	r.NewRoute().Name(ListCachedImages).Methods("GET").Path("/v1/cache/images")
	r.NewRoute().Name(DeleteAllCachedImages).Methods("DELETE").Path("/v1/cache/images")
	r.NewRoute().Name(ImageStatus).Methods("GET").Path("/v1/cache/images/{id}")
	r.NewRoute().Name(DeleteCachedImage).Methods("DELETE").Path("/v1/cache/images/{id}")

	r.NewRoute().Name(ListQueuedImages).Methods("GET").Path("/v1/cache/queue")
	r.NewRoute().Name(DeleteAllQueuedImages).Methods("DELETE").Path("/v1/cache/queue")
	r.NewRoute().Name(QueueImage).Methods("PUT").Path("/v1/cache/queue/{id}")
	r.NewRoute().Name(DeleteQueuedImage).Methods("DELETE").Path("/v1/cache/queue/{id}")

	return r
}

var pathVarPattern = regexp.MustCompile(`\{([^}:]+)[^}]*\}`)

// MakeURL constructs a URL for a named route against the given
// endpoint. Params matching the route's path variables (e.g. "id")
// fill those; the rest become query parameters.
func MakeURL(endpoint string, router *mux.Router, routeName string, urlParams ...string) (*url.URL, error) {
	if len(urlParams)%2 != 0 {
		panic("urlParams must be even!")
	}

	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing endpoint %s", endpoint)
	}
	route := router.Get(routeName)
	if route == nil {
		return nil, errors.New("no route with name " + routeName)
	}
	template, err := route.GetPathTemplate()
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving route template %s", routeName)
	}
	pathVars := map[string]bool{}
	for _, m := range pathVarPattern.FindAllStringSubmatch(template, -1) {
		pathVars[m[1]] = true
	}

	var pathParams []string
	v := url.Values{}
	for i := 0; i < len(urlParams); i += 2 {
		if pathVars[urlParams[i]] {
			pathParams = append(pathParams, urlParams[i], urlParams[i+1])
		} else {
			v.Add(urlParams[i], urlParams[i+1])
		}
	}

	routeURL, err := route.URLPath(pathParams...)
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving route path %s", routeName)
	}

	endpointURL.Path = path.Join(endpointURL.Path, routeURL.Path)
	endpointURL.RawQuery = v.Encode()
	return endpointURL, nil
}

func WriteError(w http.ResponseWriter, r *http.Request, code int, err error) {
	// An Accept header with "application/json" is sent by clients
	// understanding how to decode JSON errors. Older clients don't
	// send an Accept header, so we just give them the error text.
	if len(r.Header.Get("Accept")) > 0 {
		switch negotiateContentType(r, []string{"application/json", "text/plain"}) {
		case "application/json":
			body, encodeErr := json.Marshal(err)
			if encodeErr != nil {
				w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w, "Error encoding error response: %s\n\nOriginal error: %s", encodeErr.Error(), err.Error())
				return
			}
			w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "application/json; charset=utf-8")
			w.WriteHeader(code)
			w.Write(body)
			return
		case "text/plain":
			w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
			w.WriteHeader(code)
			switch err := err.(type) {
			case *apierrors.Error:
				fmt.Fprint(w, err.Help)
			default:
				fmt.Fprint(w, err.Error())
			}
			return
		}
	}
	w.Header().Set(http.CanonicalHeaderKey("Content-Type"), "text/plain; charset=utf-8")
	w.WriteHeader(code)
	fmt.Fprint(w, err.Error())
}

func JSONResponse(w http.ResponseWriter, r *http.Request, result interface{}) {
	body, err := json.Marshal(result)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func ErrorResponse(w http.ResponseWriter, r *http.Request, apiError error) {
	var outErr *apierrors.Error
	var code int
	var ok bool

	err := errors.Cause(apiError)
	if outErr, ok = err.(*apierrors.Error); !ok {
		outErr = apierrors.CoverAllError(apiError)
	}
	switch outErr.Type {
	case apierrors.Missing:
		code = http.StatusNotFound
	case apierrors.User:
		code = http.StatusUnprocessableEntity
	case apierrors.Conflict:
		code = http.StatusConflict
	case apierrors.Server:
		code = http.StatusInternalServerError
	default:
		code = http.StatusInternalServerError
	}
	WriteError(w, r, code, outErr)
}
