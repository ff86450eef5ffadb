package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/go-playground/assert/v2"

	"collabdeck/internal/models"
)

func doJSON(t *testing.T, method, url, username string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if username != "" {
		req.Header.Set("Authorization", username)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCreatePresentationValidation(t *testing.T) {
	ts := newTestServer(t)

	// Missing title
	resp := doJSON(t, http.MethodPost, ts.srv.URL+"/presentations", "alice", CreatePresentationRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Missing username
	resp = doJSON(t, http.MethodPost, ts.srv.URL+"/presentations", "", CreatePresentationRequest{Title: "Demo"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Valid request
	resp = doJSON(t, http.MethodPost, ts.srv.URL+"/presentations", "alice", CreatePresentationRequest{Title: "Demo"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var created CreatePresentationResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	assert.NotEqual(t, 0, created.ID)
}

func TestListPresentationsCarriesOwnership(t *testing.T) {
	ts := newTestServer(t)

	createPresentation(t, ts, "Alice's deck", "alice")
	createPresentation(t, ts, "Bob's deck", "bob")

	resp := doJSON(t, http.MethodGet, ts.srv.URL+"/presentations?username=alice", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var summaries []models.PresentationSummary
	if err := json.NewDecoder(resp.Body).Decode(&summaries); err != nil {
		t.Fatalf("decode summaries: %v", err)
	}
	assert.Equal(t, 2, len(summaries))
	assert.Equal(t, "Alice's deck", summaries[0].Title)
	assert.Equal(t, "alice", summaries[0].Author)
	assert.Equal(t, true, summaries[0].Grant)
	assert.Equal(t, "bob", summaries[1].Author)
	assert.Equal(t, false, summaries[1].Grant)
}

func TestListPresentationsEmptyIsArray(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.srv.URL+"/presentations", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var summaries []models.PresentationSummary
	if err := json.NewDecoder(resp.Body).Decode(&summaries); err != nil {
		t.Fatalf("decode summaries: %v", err)
	}
	assert.Equal(t, 0, len(summaries))
}

func TestGetSlidesReturnsContents(t *testing.T) {
	ts := newTestServer(t)
	presID := createPresentation(t, ts, "Demo", "alice")

	if _, err := ts.slides.UpdateSlide(presID, 0, "[shape]", 0, "alice"); err != nil {
		t.Fatalf("UpdateSlide: %v", err)
	}
	if _, err := ts.slides.AddSlide(presID); err != nil {
		t.Fatalf("AddSlide: %v", err)
	}

	resp := doJSON(t, http.MethodGet, ts.srv.URL+"/presentations/"+strconv.Itoa(presID)+"/slides", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var contents []string
	if err := json.NewDecoder(resp.Body).Decode(&contents); err != nil {
		t.Fatalf("decode contents: %v", err)
	}
	assert.Equal(t, []string{"[shape]", "[]"}, contents)
}

func TestGetSlidesUnknownPresentation(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.srv.URL+"/presentations/42/slides", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.srv.URL+"/presentations/abc/slides", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChangeModeStatusOwnership(t *testing.T) {
	ts := newTestServer(t)
	presID := createPresentation(t, ts, "Demo", "alice")

	// Non-owner is forbidden
	resp := doJSON(t, http.MethodPost, ts.srv.URL+"/presentation/modeStatus", "bob",
		ChangeModeStatusRequest{PresentationID: presID, IsEnable: true})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Owner toggles the flag
	resp = doJSON(t, http.MethodPost, ts.srv.URL+"/presentation/modeStatus", "alice",
		ChangeModeStatusRequest{PresentationID: presID, IsEnable: true})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Unknown presentation
	resp = doJSON(t, http.MethodPost, ts.srv.URL+"/presentation/modeStatus", "alice",
		ChangeModeStatusRequest{PresentationID: 9999, IsEnable: true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckStatusMode(t *testing.T) {
	ts := newTestServer(t)
	presID := createPresentation(t, ts, "Demo", "alice")

	// Mode off: check fails even for the owner
	resp := doJSON(t, http.MethodPost, ts.srv.URL+"/presentation/modeStatus/check", "",
		CheckStatusModeRequest{PresentationID: presID, Username: "alice"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.srv.URL+"/presentation/modeStatus", "alice",
		ChangeModeStatusRequest{PresentationID: presID, IsEnable: true})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.srv.URL+"/presentation/modeStatus/check", "",
		CheckStatusModeRequest{PresentationID: presID, Username: "alice"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.srv.URL+"/presentation/modeStatus/check", "",
		CheckStatusModeRequest{PresentationID: presID, Username: "bob"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
