package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/davbundle/internal/common"
	"github.com/dmitrijs2005/davbundle/internal/filex"
)

const mtimeMetaKey = "mtime"

// s3API is the part of *s3.Client the backend uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds connection settings for an S3-compatible store.
type S3Config struct {
	User         string
	Password     string
	Bucket       string
	Region       string
	BaseEndpoint string
	SpoolDir     string // staging files; "" means os.TempDir()
	ReadOnly     bool
}

// S3Backend keeps files as objects named {user}/files/{path}. Parts are
// spooled to a local temp file first because PutObject needs the final
// length up front.
type S3Backend struct {
	client   s3API
	bucket   string
	spoolDir string
	readOnly bool
}

func NewS3Backend(ctx context.Context, c S3Config) (*S3Backend, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.User, c.Password, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	spool := c.SpoolDir
	if spool == "" {
		spool = os.TempDir()
	} else if spool, err = filex.EnsureDir(spool); err != nil {
		return nil, err
	}

	return &S3Backend{client: client, bucket: c.Bucket, spoolDir: spool, readOnly: c.ReadOnly}, nil
}

func (b *S3Backend) View(owner string) (View, error) {
	return &s3View{b: b, owner: owner}, nil
}

type s3View struct {
	b     *S3Backend
	owner string
}

func (v *s3View) Owner() string { return v.owner }

func (v *s3View) AbsolutePath(rel string) string { return absolutePath(v.owner, rel) }

func (v *s3View) key(rel string) string {
	return strings.TrimPrefix(absolutePath(v.owner, rel), "/")
}

// NodeExists treats a folder as existing when any object lives below it.
// The files home itself always exists.
func (v *s3View) NodeExists(ctx context.Context, rel string) (bool, error) {
	clean, err := filex.CleanRelative(rel)
	if err != nil {
		return false, err
	}
	if clean == "" {
		return true, nil
	}

	out, err := v.b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(v.b.bucket),
		Prefix:  aws.String(v.key(clean) + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("list %s: %w", clean, err)
	}
	return aws.ToInt32(out.KeyCount) > 0 || len(out.Contents) > 0, nil
}

func (v *s3View) IsCreatable(ctx context.Context, rel string) (bool, error) {
	if v.b.readOnly {
		return false, nil
	}
	return v.NodeExists(ctx, rel)
}

func (v *s3View) CreateStaging(ctx context.Context, rel string) (Staging, error) {
	if v.b.readOnly {
		return nil, common.ErrReadOnly
	}
	f, err := os.CreateTemp(v.b.spoolDir, "davbundle-*.part")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	return &spoolStaging{file: f}, nil
}

func (v *s3View) Commit(ctx context.Context, st Staging, rel string, opts CommitOptions) (FileInfo, error) {
	ss, ok := st.(*spoolStaging)
	if !ok {
		return FileInfo{}, fmt.Errorf("commit: foreign staging target %T", st)
	}
	defer ss.Discard()

	clean, err := filex.CleanRelative(rel)
	if err != nil {
		return FileInfo{}, err
	}
	if clean == "" {
		return FileInfo{}, errors.New("commit: empty object name")
	}

	if _, err := ss.file.Seek(0, io.SeekStart); err != nil {
		return FileInfo{}, err
	}

	mtime := opts.MTime
	if mtime.IsZero() {
		mtime = time.Now()
	}
	mtime = mtime.Truncate(time.Second)

	out, err := v.b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(v.b.bucket),
		Key:           aws.String(v.key(clean)),
		Body:          ss.file,
		ContentLength: aws.Int64(ss.size),
		Metadata:      map[string]string{mtimeMetaKey: strconv.FormatInt(mtime.Unix(), 10)},
	})
	if err != nil {
		return FileInfo{}, fmt.Errorf("put %s: %w", clean, err)
	}

	etag := strings.Trim(aws.ToString(out.ETag), `"`)
	if etag == "" {
		etag = newETag()
	}
	return FileInfo{
		Path:   clean,
		Size:   ss.size,
		ETag:   etag,
		MTime:  mtime,
		FileID: fileID(v.owner, clean),
	}, nil
}

type spoolStaging struct {
	file      *os.File
	size      int64
	discarded bool
}

func (s *spoolStaging) Write(b []byte) (int, error) {
	n, err := s.file.Write(b)
	s.size += int64(n)
	return n, err
}

// Close keeps the spool file open; it is read back during Commit.
func (s *spoolStaging) Close() error { return nil }

func (s *spoolStaging) Discard() error {
	if s.discarded {
		return nil
	}
	s.discarded = true
	_ = s.file.Close()
	if err := os.Remove(s.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
