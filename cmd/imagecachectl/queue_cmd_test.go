package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/imagecached/imagecached/pkg/api"
	transport "github.com/imagecached/imagecached/pkg/http"
)

func TestQueueCommand_Queued(t *testing.T) {
	const imageID = "661aa2f5-e6e4-4e41-93a2-2d4a4a2d42d3"

	router := transport.NewAPIRouter()
	trip := &genericMockRoundTripper{
		mockResponses: map[*mux.Route]interface{}{
			router.Get(transport.QueueImage): api.QueueResult{ImageID: imageID, Queued: true},
		},
	}

	buf := new(bytes.Buffer)
	cmd := newQueue(mockRootOpts(trip)).Command()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{imageID})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(buf.String(), "Queued "+imageID) {
		t.Errorf("expected confirmation, got %q", buf.String())
	}
	u := calledURL(transport.QueueImage, trip.requestHistory)
	if u == nil {
		t.Fatal("queue route was not called")
	}
	if want := "/v1/cache/queue/" + imageID; u.Path != want {
		t.Errorf("expected %s, got %s", want, u.Path)
	}
}

func TestQueueCommand_AlreadyQueued(t *testing.T) {
	const imageID = "661aa2f5-e6e4-4e41-93a2-2d4a4a2d42d3"

	router := transport.NewAPIRouter()
	trip := &genericMockRoundTripper{
		mockResponses: map[*mux.Route]interface{}{
			router.Get(transport.QueueImage): api.QueueResult{ImageID: imageID, Queued: false},
		},
	}

	buf := new(bytes.Buffer)
	cmd := newQueue(mockRootOpts(trip)).Command()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{imageID})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(buf.String(), "nothing to do") {
		t.Errorf("expected idempotent message, got %q", buf.String())
	}
}

func TestQueueCommand_NoArgs(t *testing.T) {
	cmd := newQueue(mockRootOpts(&genericMockRoundTripper{})).Command()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected usage error for missing image ID")
	}
}
