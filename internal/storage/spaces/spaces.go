package spaces

import (
	"context"
	"fmt"
	"io"

	"github.com/DMarby/picsum-editor/internal/storage"
	"github.com/DMarby/picsum-editor/internal/tracing"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"go.opentelemetry.io/otel/attribute"
)

// Provider loads source images from an s3 compatible storage, such as digitalocean spaces
type Provider struct {
	tracer *tracing.Tracer
	spaces *s3.S3
	space  string
}

// New returns a new Provider instance, after checking that the space is reachable
func New(ctx context.Context, tracer *tracing.Tracer, space, endpoint, accessKey, secretKey string, forcePathStyle bool) (*Provider, error) {
	spacesSession, err := session.NewSession(&aws.Config{
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String("us-east-1"), // Needs to be us-east-1 for Spaces, or it'll fail
		S3ForcePathStyle: aws.Bool(forcePathStyle),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating spaces session: %w", err)
	}

	spaces := s3.New(spacesSession)

	if _, err := spaces.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(space)}); err != nil {
		return nil, fmt.Errorf("error accessing space %s: %w", space, err)
	}

	return &Provider{
		tracer: tracer,
		spaces: spaces,
		space:  space,
	}, nil
}

// Get returns the image data for an image id
func (p *Provider) Get(ctx context.Context, id string) ([]byte, error) {
	ctx, span := p.tracer.Start(ctx, "spaces.Get")
	defer span.End()

	name := storage.ObjectName(id)
	if name == "" {
		return nil, storage.ErrNotFound
	}

	span.SetAttributes(attribute.String("spaces.key", name))

	output, err := p.spaces.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.space),
		Key:    aws.String(name),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, storage.ErrNotFound
		}

		return nil, tracing.Fail(span, err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}

	return data, nil
}
