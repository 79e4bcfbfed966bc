package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/rpdg/vercel_blob"
)

const blobTokenEnv = "BLOB_READ_WRITE_TOKEN"

// BlobAPI is the subset of the blob store used by the cache.
type BlobAPI interface {
	// Find returns the public URL of the blob stored at key.
	Find(ctx context.Context, key string) (url string, found bool, err error)
	Put(ctx context.Context, key string, data []byte) (url string, err error)
}

type vercelBlobAPI struct {
	client *vercel_blob.VercelBlobClient
}

// NewVercelBlobAPI builds a Vercel Blob client authenticated through
// BLOB_READ_WRITE_TOKEN.
func NewVercelBlobAPI() (BlobAPI, error) {
	tokenProvider, err := vercel_blob.NewEnvTokenProvider(blobTokenEnv)
	if err != nil {
		return nil, fmt.Errorf("creating token provider: %w", err)
	}
	return &vercelBlobAPI{client: vercel_blob.NewVercelBlobClientExternal(tokenProvider)}, nil
}

func (v *vercelBlobAPI) Find(ctx context.Context, key string) (string, bool, error) {
	res, err := v.client.List(vercel_blob.ListCommandOptions{Prefix: key, Limit: 1})
	if err != nil {
		return "", false, fmt.Errorf("listing blobs: %w", err)
	}
	for _, b := range res.Blobs {
		if b.Pathname == key {
			return b.URL, true, nil
		}
	}
	return "", false, nil
}

func (v *vercelBlobAPI) Put(ctx context.Context, key string, data []byte) (string, error) {
	res, err := v.client.Put(key, bytes.NewReader(data), vercel_blob.PutCommandOptions{
		ContentType:     "application/json",
		AddRandomSuffix: false,
	})
	if err != nil {
		return "", fmt.Errorf("uploading blob: %w", err)
	}
	return res.URL, nil
}

type blobPersister struct {
	api    BlobAPI
	key    string
	client *http.Client

	mu  sync.Mutex
	url string
}

// NewBlobBackend stores the cache as one JSON object in a blob store.
func NewBlobBackend(api BlobAPI, key string, client *http.Client) Backend {
	if client == nil {
		client = http.DefaultClient
	}
	return newSnapshotBackend(&blobPersister{api: api, key: key, client: client}, false)
}

func (b *blobPersister) name() string { return "blob" }

func (b *blobPersister) load(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	url := b.url
	b.mu.Unlock()

	if url == "" {
		found, ok, err := b.api.Find(ctx, b.key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		url = found
		b.mu.Lock()
		b.url = url
		b.mu.Unlock()
	}

	data, err := b.download(ctx, url)
	if err != nil {
		// Forget the URL so the next load rediscovers it.
		b.mu.Lock()
		b.url = ""
		b.mu.Unlock()
		return nil, err
	}
	return data, nil
}

func (b *blobPersister) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-store")
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("blob download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (b *blobPersister) save(ctx context.Context, data []byte) error {
	url, err := b.api.Put(ctx, b.key, data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.url = url
	b.mu.Unlock()
	return nil
}
