package filestore

import (
	"context"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/koustreak/relschema/internal/errs"
	"github.com/koustreak/relschema/internal/schema"
)

// Scheme is the URL scheme of schema sources held in object storage.
const Scheme = "minio"

// MaxDocumentSize bounds a single schema document read from a store.
const MaxDocumentSize = 4 << 20

// Location addresses one document, or every document under a prefix when
// Key is empty or ends in "/".
type Location struct {
	Bucket string
	Key    string
}

// IsPrefix reports whether l names a set of documents rather than one.
func (l Location) IsPrefix() bool {
	return l.Key == "" || strings.HasSuffix(l.Key, "/")
}

func (l Location) String() string {
	return Scheme + "://" + l.Bucket + "/" + l.Key
}

// IsURL reports whether source refers to object storage rather than a local path.
func IsURL(source string) bool {
	return strings.HasPrefix(source, Scheme+"://")
}

// ParseURL parses "minio://bucket/key" or "minio://bucket/prefix/".
func ParseURL(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, errs.Wrap(errs.ErrKindInvalidInput, "invalid schema URL "+raw, err)
	}
	if u.Scheme != Scheme {
		return Location{}, errs.Errorf(errs.ErrKindInvalidInput, "schema URL %q: scheme must be %s", raw, Scheme)
	}
	if u.Host == "" {
		return Location{}, errs.Errorf(errs.ErrKindInvalidInput, "schema URL %q has no bucket", raw)
	}
	return Location{Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}, nil
}

// isDocument reports whether key looks like a schema document.
func isDocument(key string) bool {
	switch strings.ToLower(path.Ext(key)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// ReadDocument downloads the object at loc, refusing objects larger than
// MaxDocumentSize.
func ReadDocument(ctx context.Context, s Store, loc Location) ([]byte, error) {
	info, err := s.StatObject(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return nil, err
	}
	if info.Size > MaxDocumentSize {
		return nil, errs.Errorf(errs.ErrKindInvalidInput, "%s is %d bytes, limit is %d", loc, info.Size, MaxDocumentSize)
	}

	obj, err := s.GetObject(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, MaxDocumentSize+1))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "read "+loc.String(), err)
	}
	if len(data) > MaxDocumentSize {
		return nil, errs.Errorf(errs.ErrKindInvalidInput, "%s exceeds %d bytes", loc, MaxDocumentSize)
	}
	return data, nil
}

// documentKeys lists the document keys under a prefix location in key order.
func documentKeys(ctx context.Context, s Store, loc Location) ([]string, error) {
	objs, err := s.ListObjects(ctx, loc.Bucket, ListOptions{Prefix: loc.Key, Recursive: true})
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, o := range objs {
		if !o.IsDir && isDocument(o.Key) {
			keys = append(keys, o.Key)
		}
	}
	if len(keys) == 0 {
		return nil, errs.Errorf(errs.ErrKindNotFound, "no schema documents under %s", loc)
	}
	sort.Strings(keys)
	return keys, nil
}

// LoadRegistry reads the document at loc, or every document under it when
// loc is a prefix, and compiles them into one finalized Registry. Entities
// may reference entities declared in sibling documents.
func LoadRegistry(ctx context.Context, s Store, loc Location) (*schema.Registry, error) {
	keys := []string{loc.Key}
	if loc.IsPrefix() {
		var err error
		if keys, err = documentKeys(ctx, s, loc); err != nil {
			return nil, err
		}
	}

	b := schema.NewBuilder()
	var acc error
	for _, key := range keys {
		at := Location{Bucket: loc.Bucket, Key: key}
		data, err := ReadDocument(ctx, s, at)
		if err != nil {
			return nil, err
		}
		doc, err := schema.ParseDocument(data)
		if err != nil {
			return nil, errs.Wrap(errs.KindOf(err), at.String(), err)
		}
		acc = errs.Append(acc, doc.Register(b))
	}
	if acc != nil {
		return nil, acc
	}
	return b.Finalize()
}
