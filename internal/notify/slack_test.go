package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSlackNotifierEmptyUrl(t *testing.T) {
	assert.Nil(t, NewSlackNotifier(""))
}

func TestSlackNotifierSend(t *testing.T) {
	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received = payload["text"]
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	err := notifier.Send("Job recommendations updated:\ncluster-a/app-1 v1")
	assert.NoError(t, err)
	assert.Equal(t, "Job recommendations updated:\ncluster-a/app-1 v1", received)
}

func TestSlackNotifierSendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	assert.Error(t, notifier.Send("text"))
}
