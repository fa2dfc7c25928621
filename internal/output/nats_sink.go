package output

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NatsSink stores artifacts in a NATS JetStream object store bucket.
type NatsSink struct {
	bucket string
	store  nats.ObjectStore
}

// NewNatsSink binds to bucketName, creating the bucket when it does not exist.
func NewNatsSink(js nats.JetStreamContext, bucketName string) (*NatsSink, error) {
	store, err := js.ObjectStore(bucketName)
	if errors.Is(err, nats.ErrBucketNotFound) || errors.Is(err, nats.ErrStreamNotFound) {
		store, err = js.CreateObjectStore(&nats.ObjectStoreConfig{
			Bucket:      bucketName,
			Description: fmt.Sprintf("Published artifacts for the %s bucket.", bucketName),
			Storage:     nats.FileStorage,
			Replicas:    1,
		})
		if err != nil {
			return nil, fmt.Errorf("create object store bucket '%s': %w", bucketName, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("bind object store bucket '%s': %w", bucketName, err)
	}
	return &NatsSink{bucket: bucketName, store: store}, nil
}

// Put uploads data under key and returns a nats://bucket/key location.
func (n *NatsSink) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	if _, err := n.store.PutBytes(key, data, nats.Context(ctx)); err != nil {
		return "", fmt.Errorf("put object '%s' in bucket '%s': %w", key, n.bucket, err)
	}
	return "nats://" + n.bucket + "/" + key, nil
}

// Get downloads the object stored under key.
func (n *NatsSink) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := n.store.GetBytes(key, nats.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}
	return data, nil
}
