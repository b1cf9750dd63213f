// Package runs3 connects to S3-compatible object storage.
package runs3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	transport "github.com/aws/smithy-go/endpoints"
)

// NewClient creates a new Client using the provided connection string.
// The connection string must be a valid URL in the format: http://key:secret@s3:9000.
// For MinIO, the key and secret are the username and password respectively.
// It returns an error if the connection string is not a valid URL.
func NewClient(connectionString string) (*s3.Client, error) {
	u, err := url.Parse(connectionString)
	if err != nil {
		return nil, fmt.Errorf("runs3.NewClient: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("runs3.NewClient: connection string without scheme or host")
	}

	username := u.User.Username()
	password, _ := u.User.Password()
	u.User = nil

	client := s3.New(
		s3.Options{
			Region:             "us-east-1",
			Credentials:        credentials.NewStaticCredentialsProvider(username, password, ""),
			EndpointResolverV2: &endpointResolver{BaseURL: u},
		},
	)
	return client, nil
}

// endpointResolver implements s3.EndpointResolverV2.
// It resolves path-style endpoints for S3-compatible object storage like MinIO.
type endpointResolver struct {
	BaseURL *url.URL // required
}

func (r *endpointResolver) ResolveEndpoint(_ context.Context, params s3.EndpointParameters) (transport.Endpoint, error) {
	u := *r.BaseURL
	u.Path += "/" + aws.ToString(params.Bucket)
	return transport.Endpoint{URI: u}, nil
}

// Setup creates bucket unless it is already owned by the caller and waits for it to exist.
// It shouldn't be used with AWS as is because it doesn't specify the bucket location.
func Setup(ctx context.Context, client *s3.Client, bucket string) error {
	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	if ownedErr := (*types.BucketAlreadyOwnedByYou)(nil); errors.As(err, &ownedErr) {
		// continue
	} else if err != nil {
		return fmt.Errorf("runs3.Setup: %w", err)
	}

	err = s3.NewBucketExistsWaiter(client).Wait(
		ctx,
		&s3.HeadBucketInput{Bucket: aws.String(bucket)},
		time.Minute,
	)
	if err != nil {
		return fmt.Errorf("runs3.Setup: %w", err)
	}

	return nil
}
