package bluesky

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadHandler(t *testing.T, uploadResp *Response, statusResp *Response) func(req *Request) (*Response, error) {
	return func(req *Request) (*Response, error) {
		switch {
		case strings.Contains(req.URL, "plc.directory"):
			return plcDocument(t, "pds01.example.com"), nil
		case strings.Contains(req.URL, "getServiceAuth"):
			return jsonResponse(t, 200, map[string]string{"token": signedToken(t, time.Now().Add(30*time.Minute))}), nil
		case strings.Contains(req.URL, "uploadVideo"):
			return uploadResp, nil
		case strings.Contains(req.URL, "getJobStatus"):
			require.NotNil(t, statusResp, "unexpected getJobStatus call")
			return statusResp, nil
		default:
			t.Fatalf("unexpected request: %s", req.URL)
			return nil, nil
		}
	}
}

func TestUploadVideo_ShouldRejectOversizedVideoWithoutNetworkCalls(t *testing.T) {
	// given a 1 KiB ceiling
	client, transport := newTestClient(t, ClientConfig{MaxVideoBytes: 1024}, func(req *Request) (*Response, error) {
		t.Fatal("no network call expected")
		return nil, nil
	})
	session := &Session{AccessJWT: "access", DID: "did:plc:abc123"}

	// when
	job, err := client.UploadVideo(context.Background(), session, bytes.Repeat([]byte{0xAB}, 2048), "video.mp4")

	// then
	assert.Nil(t, job)
	var sizeErr *SizeExceededError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, int64(2048), sizeErr.Size)
	assert.Equal(t, int64(1024), sizeErr.Limit)
	assert.Empty(t, transport.calls)
}

func TestUploadVideo_ShouldReturnFreshJobOnAccepted(t *testing.T) {
	// given
	client, transport := newTestClient(t, ClientConfig{},
		uploadHandler(t, jsonResponse(t, 200, map[string]string{"jobId": "job-1"}), nil))
	session := &Session{AccessJWT: "access", DID: "did:plc:abc123"}

	// when
	job, err := client.UploadVideo(context.Background(), session, []byte("mp4-bytes"), "video.mp4")

	// then
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.JobID)
	assert.Equal(t, JobStateCreated, job.State)
	assert.Nil(t, job.Blob)
	assert.False(t, job.Done())

	// the upload itself carries the scoped token and the declared identity
	var uploadReq *Request
	for _, req := range transport.calls {
		if strings.Contains(req.URL, "uploadVideo") {
			uploadReq = req
		}
	}
	require.NotNil(t, uploadReq)
	assert.Contains(t, uploadReq.URL, "name=video.mp4")
	assert.Contains(t, uploadReq.URL, "did=did%3Aplc%3Aabc123")
	assert.Equal(t, "video/mp4", uploadReq.Header["Content-Type"])
	assert.True(t, strings.HasPrefix(uploadReq.Header["Authorization"], "Bearer "))
}

func TestUploadVideo_ShouldTreatConflictWithRunningJobAsSuccess(t *testing.T) {
	// given a 409 for a job still mid-flight
	client, transport := newTestClient(t, ClientConfig{},
		uploadHandler(t, jsonResponse(t, 409, map[string]string{"jobId": "job-1", "state": JobStateRunning}), nil))
	session := &Session{AccessJWT: "access", DID: "did:plc:abc123"}

	// when
	job, err := client.UploadVideo(context.Background(), session, []byte("mp4-bytes"), "video.mp4")

	// then: success, the poller continues from wherever the job is
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.JobID)
	assert.Equal(t, JobStateRunning, job.State)
	assert.False(t, job.Done())
	assert.Zero(t, transport.callsTo("getJobStatus"))
}

func TestUploadVideo_ShouldFetchBlobDirectlyOnConflictWithCompletedJob(t *testing.T) {
	// given a 409 for bytes that were already fully processed
	statusResp := jsonResponse(t, 200, map[string]any{
		"jobStatus": map[string]any{
			"jobId": "job-1",
			"state": JobStateCompleted,
			"blob": map[string]any{
				"$type":    "blob",
				"ref":      map[string]string{"$link": "bafy123"},
				"mimeType": "video/mp4",
				"size":     20971520,
			},
		},
	})
	client, transport := newTestClient(t, ClientConfig{},
		uploadHandler(t, jsonResponse(t, 409, map[string]string{"jobId": "job-1", "state": JobStateCompleted}), statusResp))
	session := &Session{AccessJWT: "access", DID: "did:plc:abc123"}

	// when
	job, err := client.UploadVideo(context.Background(), session, []byte("mp4-bytes"), "video.mp4")

	// then
	require.NoError(t, err)
	assert.True(t, job.Done())
	require.NotNil(t, job.Blob)
	assert.Equal(t, "bafy123", job.Blob.Ref.Link)
	assert.Equal(t, "video/mp4", job.Blob.MimeType)
	assert.Equal(t, 1, transport.callsTo("getJobStatus"))
}

func TestUploadVideo_ShouldFailWithUploadErrorOnOtherStatuses(t *testing.T) {
	// given
	client, _ := newTestClient(t, ClientConfig{},
		uploadHandler(t, &Response{Status: 500, Body: []byte("boom")}, nil))
	session := &Session{AccessJWT: "access", DID: "did:plc:abc123"}

	// when
	job, err := client.UploadVideo(context.Background(), session, []byte("mp4-bytes"), "video.mp4")

	// then
	assert.Nil(t, job)
	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, 500, upErr.Status)
	assert.Equal(t, "boom", upErr.Body)
}
