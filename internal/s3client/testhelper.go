package s3client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

// Fake is an in-memory S3 server on a loopback port. The server runs with
// --no-s3 so exports work without cloud credentials.
type Fake struct {
	Client *Client
	URL    string
	srv    *http.Server
}

// StartFake serves gofakes3 on addr ("127.0.0.1:0" for any free port) and
// creates bucket.
func StartFake(ctx context.Context, addr, bucket string) (*Fake, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for fake s3: %w", err)
	}
	faker := gofakes3.New(s3mem.New())
	srv := &http.Server{Handler: faker.Server(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("fake_s3_serve_failed", "error", err)
		}
	}()
	endpoint := "http://" + ln.Addr().String()

	client, err := New(ctx, Config{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		AccessKeyID:     "fake-key",
		SecretAccessKey: "fake-secret",
		BucketName:      bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		_ = srv.Close()
		return nil, err
	}
	if _, err := client.s3Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		_ = srv.Close()
		return nil, fmt.Errorf("create fake bucket: %w", err)
	}
	logger.Info("fake_s3_started", "endpoint", endpoint, "bucket", bucket)
	return &Fake{Client: client, URL: endpoint, srv: srv}, nil
}

// Close stops the fake server.
func (f *Fake) Close() error {
	return f.srv.Close()
}

// TestClient starts a fake store for the test and stops it on cleanup.
func TestClient(t testing.TB, bucketName string) *Client {
	t.Helper()
	fake, err := StartFake(context.Background(), "127.0.0.1:0", bucketName)
	if err != nil {
		t.Fatalf("start fake s3: %v", err)
	}
	t.Cleanup(func() { _ = fake.Close() })
	return fake.Client
}
