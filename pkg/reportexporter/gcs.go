package reportexporter

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/storage"
	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
)

// GCS stores archives as objects of a Google Cloud Storage bucket.
const GCS Provider = "gcs"

const archiveContentType = "application/gzip"

type GcsExporter struct {
	client *storage.Client
}

// NewGcsExporter uses application default credentials.
func NewGcsExporter(ctx context.Context) (*GcsExporter, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to create storage client")
	}
	return &GcsExporter{client: client}, nil
}

func (gcs *GcsExporter) Provider() Provider {
	return GCS
}

// Upload streams the archive of dir straight into the object name.tar.gz.
// The object only becomes visible once the whole archive was written.
func (gcs *GcsExporter) Upload(ctx context.Context, dir, bucket, name string, opts ...UploadOption) error {
	options := defaultUploadOptions()
	for _, opt := range opts {
		opt(options)
	}

	totalSize, err := checkSource(dir, options)
	if err != nil {
		return err
	}

	object := gcs.client.Bucket(bucket).Object(name + ArchiveExtension)
	logger := log.WithFields(map[string]interface{}{
		"size":   totalSize.HR(),
		"source": dir,
		"target": fmt.Sprintf("gs://%s/%s", bucket, object.ObjectName()),
	})
	logger.Info("uploading archive")

	// a writer closed after its context is cancelled discards the object
	uploadCtx, abort := context.WithCancel(ctx)
	defer abort()

	w := object.NewWriter(uploadCtx)
	w.ChunkSize = int(options.ChunkSize.Bytes())
	w.ContentType = archiveContentType

	if _, err := writeArchive(uploadCtx, dir, w, totalSize, options); err != nil {
		abort()
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return errors.WrapIfWithDetails(err, "failed to finalize upload", "object", object.ObjectName())
	}

	logger.Info("upload finished")
	return nil
}

// Delete removes every object of bucket whose name starts with name.
func (gcs *GcsExporter) Delete(ctx context.Context, bucket, name string, opts ...DeleteOption) error {
	options := defaultDeleteOptions()
	for _, opt := range opts {
		opt(options)
	}

	handle := gcs.client.Bucket(bucket)
	names, err := listObjects(ctx, handle, name)
	if err != nil {
		return err
	}
	return deleteAll(bucket, name, names, options, func(obj string) error {
		return handle.Object(obj).Delete(ctx)
	})
}

func listObjects(ctx context.Context, bucket *storage.BucketHandle, prefix string) ([]string, error) {
	var names []string
	it := bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		}
		if err != nil {
			return nil, errors.WrapIf(err, "failed to list objects")
		}
		names = append(names, attrs.Name)
	}
}

// deleteAll logs and removes names of bucket matched by prefix.
func deleteAll(bucket, prefix string, names []string, options *DeleteOptions, del func(string) error) error {
	if len(names) == 0 {
		log.Warnf("no objects found with prefix: %s", prefix)
		return nil
	}

	log.WithFields(map[string]interface{}{
		"bucket":  bucket,
		"prefix":  prefix,
		"objects": len(names),
	}).Info("deleting objects")
	return batchDelete(names, options.ConcurrentJobs, func(obj string) error {
		log.WithField("object", obj).Debug("deleting object")
		return del(obj)
	})
}

// batchDelete runs del for every name on at most workers goroutines.
func batchDelete(names []string, workers int, del func(name string) error) error {
	jobs := make(chan string)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for i := 0; i < min(max(workers, 1), len(names)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for obj := range jobs {
				if err := del(obj); err != nil {
					mu.Lock()
					errs = append(errs, errors.WrapIf(err, "failed to delete "+obj))
					mu.Unlock()
				}
			}
		}()
	}

	for _, name := range names {
		jobs <- name
	}
	close(jobs)
	wg.Wait()

	return errors.Combine(errs...)
}
