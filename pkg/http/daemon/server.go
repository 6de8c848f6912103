package daemon

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/weaveworks/common/middleware"

	"github.com/imagecached/imagecached/pkg/api"
	transport "github.com/imagecached/imagecached/pkg/http"
	icmetrics "github.com/imagecached/imagecached/pkg/metrics"
)

var (
	requestDuration = stdprometheus.NewHistogramVec(stdprometheus.HistogramOpts{
		Namespace: "imagecache",
		Name:      "request_duration_seconds",
		Help:      "Time (in seconds) spent serving HTTP requests.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{icmetrics.LabelMethod, icmetrics.LabelRoute, "status_code", "ws"})
)

func init() {
	stdprometheus.MustRegister(requestDuration)
}

// An API server for the image cache daemon.
func NewRouter() *mux.Router {
	r := transport.NewAPIRouter()

	// Every request that doesn't match a route is a client calling an
	// old or hitherto unsupported API.
	r.NewRoute().Name("NotFound").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteError(w, r, http.StatusNotFound, transport.MakeAPINotFound(r.URL.Path))
	})

	return r
}

func NewHandler(s api.Server, r *mux.Router) http.Handler {
	handle := HTTPServer{s}

	r.Get(transport.Ping).HandlerFunc(handle.Ping)
	r.Get(transport.Version).HandlerFunc(handle.Version)

	r.Get(transport.GetImage).HandlerFunc(handle.GetImage)

	r.Get(transport.ImageStatus).HandlerFunc(handle.ImageStatus)
	r.Get(transport.ListCachedImages).HandlerFunc(handle.ListCachedImages)
	r.Get(transport.DeleteCachedImage).HandlerFunc(handle.DeleteCachedImage)
	r.Get(transport.DeleteAllCachedImages).HandlerFunc(handle.DeleteAllCachedImages)

	r.Get(transport.QueueImage).HandlerFunc(handle.QueueImage)
	r.Get(transport.ListQueuedImages).HandlerFunc(handle.ListQueuedImages)
	r.Get(transport.DeleteQueuedImage).HandlerFunc(handle.DeleteQueuedImage)
	r.Get(transport.DeleteAllQueuedImages).HandlerFunc(handle.DeleteAllQueuedImages)

	return middleware.Instrument{
		RouteMatcher: r,
		Duration:     requestDuration,
	}.Wrap(r)
}

type HTTPServer struct {
	server api.Server
}

func (s HTTPServer) Ping(w http.ResponseWriter, r *http.Request) {
	if err := s.server.Ping(r.Context()); err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s HTTPServer) Version(w http.ResponseWriter, r *http.Request) {
	version, err := s.server.Version(r.Context())
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, version)
}

func (s HTTPServer) GetImage(w http.ResponseWriter, r *http.Request) {
	imageID := mux.Vars(r)["id"]
	download, err := s.server.GetImage(r.Context(), imageID)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	defer download.Body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if download.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(download.Size, 10))
	}
	w.Header().Set(transport.SourceHeader, download.Source)
	// Once the copy starts there is no way to signal an error; a
	// failed copy shows up as a short body, and closing the download
	// tells the cache side to abort its copy.
	io.Copy(w, download.Body)
}

func (s HTTPServer) ImageStatus(w http.ResponseWriter, r *http.Request) {
	imageID := mux.Vars(r)["id"]
	status, err := s.server.ImageStatus(r.Context(), imageID)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, status)
}

func (s HTTPServer) ListCachedImages(w http.ResponseWriter, r *http.Request) {
	match := r.URL.Query().Get("match")
	images, err := s.server.ListCachedImages(r.Context(), match)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, images)
}

func (s HTTPServer) DeleteCachedImage(w http.ResponseWriter, r *http.Request) {
	imageID := mux.Vars(r)["id"]
	if err := s.server.DeleteCachedImage(r.Context(), imageID); err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s HTTPServer) DeleteAllCachedImages(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.server.DeleteAllCachedImages(r.Context())
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, api.DeletedCount{Deleted: deleted})
}

func (s HTTPServer) QueueImage(w http.ResponseWriter, r *http.Request) {
	imageID := mux.Vars(r)["id"]
	queued, err := s.server.QueueImage(r.Context(), imageID)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, api.QueueResult{ImageID: imageID, Queued: queued})
}

func (s HTTPServer) ListQueuedImages(w http.ResponseWriter, r *http.Request) {
	match := r.URL.Query().Get("match")
	queued, err := s.server.ListQueuedImages(r.Context(), match)
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, queued)
}

func (s HTTPServer) DeleteQueuedImage(w http.ResponseWriter, r *http.Request) {
	imageID := mux.Vars(r)["id"]
	if err := s.server.DeleteQueuedImage(r.Context(), imageID); err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s HTTPServer) DeleteAllQueuedImages(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.server.DeleteAllQueuedImages(r.Context())
	if err != nil {
		transport.ErrorResponse(w, r, err)
		return
	}
	transport.JSONResponse(w, r, api.DeletedCount{Deleted: deleted})
}
