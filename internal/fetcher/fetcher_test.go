package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testRetry = RetryConfig{
	Timeout:    2 * time.Second,
	MaxElapsed: 5 * time.Second,
}

func TestYarnClientListApplications(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/v1/cluster/apps", r.URL.Path)
		assert.Equal(t, "RUNNING,FINISHED", r.URL.Query().Get("states"))
		assert.Equal(t, "SPARK", r.URL.Query().Get("applicationTypes"))

		_, _ = w.Write([]byte(`{
			"apps": {
				"app": [
					{
						"id": "application_1_0001",
						"user": "hadoop",
						"name": "etl",
						"queue": "default",
						"state": "FINISHED",
						"finalStatus": "SUCCEEDED",
						"startedTime": 1600000000000,
						"finishedTime": 1600000600000,
						"elapsedTime": 600000,
						"memorySeconds": 614400,
						"vcoreSeconds": 1200
					},
					{
						"id": "application_1_0002",
						"name": "no-metrics"
					}
				]
			}
		}`))
	}))
	defer server.Close()

	client := NewYarnClient(server.URL, testRetry)
	apps, err := client.ListApplications(context.Background(), []string{"RUNNING", "FINISHED"}, []string{"SPARK"})
	assert.NoError(t, err)
	assert.Equal(t, 2, len(apps))

	first := apps[0]
	assert.Equal(t, "application_1_0001", first.Id)
	assert.Equal(t, int64(600000), *first.ElapsedTime)
	assert.Equal(t, int64(614400), *first.MemorySeconds)
	assert.Equal(t, int64(1200), *first.VcoreSeconds)

	/*
		缺失的字段保持为nil，由采集阶段判断
	*/
	second := apps[1]
	assert.Nil(t, second.ElapsedTime)
	assert.Nil(t, second.MemorySeconds)
	assert.Nil(t, second.StartedTime)
}

func TestSparkClientListExecutors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/applications/application_1_0001/executors", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"id": "driver", "hostPort": "10.0.0.1:4040", "totalCores": 0, "maxMemory": 1048576, "memoryUsed": 524288, "totalDuration": 0},
			{"id": "1", "hostPort": "10.0.0.2:4040", "totalCores": 4, "maxMemory": 2097152, "memoryUsed": 1048576, "totalTasks": 10, "completedTasks": 9, "totalDuration": 600000, "totalGCTime": 1000}
		]`))
	}))
	defer server.Close()

	client := NewSparkClient(server.URL, testRetry)
	executors, err := client.ListExecutors(context.Background(), "application_1_0001")
	assert.NoError(t, err)
	assert.Equal(t, 2, len(executors))
	assert.Equal(t, "driver", executors[0].Id)
	assert.Equal(t, 4, executors[1].TotalCores)
	assert.Equal(t, int64(600000), executors[1].TotalDuration)
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"apps": {"app": []}}`))
	}))
	defer server.Close()

	client := NewYarnClient(server.URL, testRetry)
	apps, err := client.ListApplications(context.Background(), nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(apps))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewSparkClient(server.URL, testRetry)
	_, err := client.ListExecutors(context.Background(), "application_1_0001")
	assert.Error(t, err)
	/*
		4xx是永久错误，不应重试
	*/
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNoRetryOnMalformedResponse(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	client := NewYarnClient(server.URL, testRetry)
	_, err := client.ListApplications(context.Background(), nil, nil)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	client := NewYarnClient(server.URL, RetryConfig{Timeout: time.Second, MaxElapsed: time.Minute})
	_, err := client.ListApplications(ctx, nil, nil)
	assert.Error(t, err)
}
