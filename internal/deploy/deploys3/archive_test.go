package deploys3

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/k11v/sitegen/internal/run/runs3"
	"github.com/k11v/sitegen/internal/site"
)

func TestArchive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	t.Run("stores files under the task and round", func(t *testing.T) {
		ctx := context.Background()
		archive, client := NewTestArchive(t, ctx)

		files := site.FileSet{
			"index.html": "<h1>Counter</h1>",
			"style.css":  "h1 { color: teal; }",
			"script.js":  "let count = 0;",
		}
		if err := archive.Store(ctx, "counter-app", 2, files); err != nil {
			t.Fatalf("didn't want %q", err)
		}

		for name, want := range files {
			out, err := client.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(archive.bucket),
				Key:    aws.String("counter-app/round-2/" + name),
			})
			if err != nil {
				t.Fatalf("didn't want %q", err)
			}
			got, err := io.ReadAll(out.Body)
			_ = out.Body.Close()
			if err != nil {
				t.Fatalf("didn't want %q", err)
			}
			if string(got) != want {
				t.Errorf("got %q for %s, want %q", got, name, want)
			}
			if name == "index.html" && aws.ToString(out.ContentType) != "text/html; charset=utf-8" {
				t.Errorf("got %q, want an html content type", aws.ToString(out.ContentType))
			}
		}
	})
}

func TestPrefix(t *testing.T) {
	if got, want := Prefix("counter-app", 1), "counter-app/round-1"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func NewTestArchive(tb testing.TB, ctx context.Context) (*Archive, *s3.Client) {
	tb.Helper()

	username := "minioadmin"
	password := "minioadmin"

	req := testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "quay.io/minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			WaitingFor:   wait.ForHTTP("/minio/health/live").WithPort("9000"),
			Env: map[string]string{
				"MINIO_ROOT_USER":     username,
				"MINIO_ROOT_PASSWORD": password,
			},
			Cmd: []string{"server", "/data"},
		},
		Started: true,
	}

	c, err := testcontainers.GenericContainer(ctx, req)
	testcontainers.CleanupContainer(tb, c)
	if err != nil {
		tb.Fatalf("didn't want %q", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		tb.Fatalf("didn't want %q", err)
	}
	port, err := c.MappedPort(ctx, "9000/tcp")
	if err != nil {
		tb.Fatalf("didn't want %q", err)
	}
	connectionString := fmt.Sprintf("http://%s:%s@%s:%s", username, password, host, port.Port())

	client, err := runs3.NewClient(connectionString)
	if err != nil {
		tb.Fatalf("didn't want %q", err)
	}
	config := &Config{}
	if err = runs3.Setup(ctx, client, config.BucketName()); err != nil {
		tb.Fatalf("didn't want %q", err)
	}

	return NewArchive(client, config.BucketName(), slog.New(slog.NewTextHandler(io.Discard, nil))), client
}
