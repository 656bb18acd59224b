// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	awsx "github.com/staranto/tennisbet/internal/aws"
	"github.com/staranto/tennisbet/internal/store"
)

const (
	// metaCreatedAt and metaRows are S3 user metadata keys. The SDK hands
	// them back lowercased.
	metaCreatedAt = "created-at"
	metaRows      = "rows"

	objectExt = ".json"
)

func init() {
	store.Register("s3", open)
}

func open(ctx context.Context, dsn string) (store.TableStore, error) {
	loc, err := parseLocation(dsn)
	if err != nil {
		return nil, err
	}

	cfg, err := awsx.LoadAWSConfig(ctx, loc.awsOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return New(awsx.NewS3(cfg), loc.bucket, loc.prefix), nil
}

// location is the part of an s3 DSN after the scheme:
// bucket[/prefix][?profile=name&region=name].
type location struct {
	bucket  string
	prefix  string
	profile string
	region  string
}

func parseLocation(raw string) (location, error) {
	where, rawQuery, _ := strings.Cut(raw, "?")

	var loc location
	loc.bucket, loc.prefix, _ = strings.Cut(where, "/")
	if loc.bucket == "" {
		return location{}, fmt.Errorf("s3 dsn requires a bucket: %q", raw)
	}

	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return location{}, fmt.Errorf("s3 dsn %q: %w", raw, err)
	}
	for k := range q {
		if k != "profile" && k != "region" {
			return location{}, fmt.Errorf("s3 dsn %q: unknown parameter %q", raw, k)
		}
	}
	loc.profile = q.Get("profile")
	loc.region = q.Get("region")
	return loc, nil
}

func (l location) awsOptions() []awsx.Option {
	var opts []awsx.Option
	if l.profile != "" {
		opts = append(opts, awsx.WithProfile(l.profile))
	}
	if l.region != "" {
		opts = append(opts, awsx.WithRegion(l.region))
	}
	return opts
}

// API is the subset of the S3 client used by Store.
type API interface {
	HeadObject(context.Context, *s3v2.HeadObjectInput, ...func(*s3v2.Options)) (*s3v2.HeadObjectOutput, error)
	GetObject(context.Context, *s3v2.GetObjectInput, ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error)
	PutObject(context.Context, *s3v2.PutObjectInput, ...func(*s3v2.Options)) (*s3v2.PutObjectOutput, error)
	ListObjectsV2(context.Context, *s3v2.ListObjectsV2Input, ...func(*s3v2.Options)) (*s3v2.ListObjectsV2Output, error)
}

// Store keeps each table as one JSON object under bucket/prefix. The
// created_at stamp is duplicated into object metadata so freshness checks are
// a HEAD request.
type Store struct {
	client API
	bucket string
	prefix string
}

// payload is the object body. Kinds lets ReadAll restore ints and times that
// JSON alone would flatten.
type payload struct {
	Name      string                `json:"name"`
	CreatedAt string                `json:"created_at"`
	Kinds     map[string]store.Kind `json:"kinds"`
	Rows      store.Rows            `json:"rows"`
}

// New returns a Store over an existing client.
func New(client API, bucket, prefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name+objectExt)
}

func (s *Store) head(ctx context.Context, name string) (*s3v2.HeadObjectOutput, error) {
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}
	out, err := s.client.HeadObject(ctx, &s3v2.HeadObjectInput{
		Bucket: awsv2.String(s.bucket),
		Key:    awsv2.String(s.key(name)),
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("%s: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("head s3://%s/%s: %w", s.bucket, s.key(name), err)
	}
	return out, nil
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.head(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) MaxCreatedAt(ctx context.Context, name string) (string, error) {
	out, err := s.head(ctx, name)
	if err != nil {
		return "", err
	}
	createdAt := out.Metadata[metaCreatedAt]
	if createdAt == "" {
		return "", fmt.Errorf("%s has no rows: %w", name, store.ErrNotFound)
	}
	return createdAt, nil
}

func (s *Store) ReadAll(ctx context.Context, name string) (store.Rows, error) {
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3v2.GetObjectInput{
		Bucket: awsv2.String(s.bucket),
		Key:    awsv2.String(s.key(name)),
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("%s: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, s.key(name), err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, s.key(name), err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var p payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	rows := make(store.Rows, 0, len(p.Rows))
	for _, raw := range p.Rows {
		row := make(store.Row, len(raw))
		for col, v := range raw {
			dv, err := decode(p.Kinds[col], v)
			if err != nil {
				return nil, fmt.Errorf("decode %s.%s: %w", name, col, err)
			}
			row[col] = dv
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Replace serializes the whole table before the single PutObject, so a
// marshal failure never reaches S3 and a PUT is all-or-nothing.
func (s *Store) Replace(ctx context.Context, name string, rows store.Rows) error {
	if err := store.ValidateName(name); err != nil {
		return err
	}

	p := payload{Name: name, Kinds: map[string]store.Kind{}, Rows: make(store.Rows, 0, len(rows))}
	for _, row := range rows {
		enc := make(store.Row, len(row))
		for col, v := range row {
			kind, err := store.KindOf(v)
			if err != nil {
				return fmt.Errorf("replace %s column %s: %w", name, col, err)
			}
			if kind != store.KindNull {
				prev, seen := p.Kinds[col]
				switch {
				case !seen || prev == kind:
					p.Kinds[col] = kind
				case (prev == store.KindInt && kind == store.KindReal) || (prev == store.KindReal && kind == store.KindInt):
					p.Kinds[col] = store.KindReal
				default:
					return fmt.Errorf("replace %s column %s mixes %s and %s: %w", name, col, prev, kind, store.ErrUnsupportedValue)
				}
			}
			if t, ok := v.(time.Time); ok {
				v = t.Format(time.RFC3339Nano)
			}
			enc[col] = v
		}
		if c, ok := row[store.CreatedAtColumn].(string); ok && c > p.CreatedAt {
			p.CreatedAt = c
		}
		p.Rows = append(p.Rows, enc)
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}

	_, err = s.client.PutObject(ctx, &s3v2.PutObjectInput{
		Bucket:      awsv2.String(s.bucket),
		Key:         awsv2.String(s.key(name)),
		Body:        bytes.NewReader(body),
		ContentType: awsv2.String("application/json"),
		Metadata: map[string]string{
			metaCreatedAt: p.CreatedAt,
			metaRows:      strconv.Itoa(len(p.Rows)),
		},
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, s.key(name), err)
	}

	log.Debugf("replaced s3://%s/%s with %d rows", s.bucket, s.key(name), len(rows))
	return nil
}

func (s *Store) Tables(ctx context.Context) ([]store.TableInfo, error) {
	prefix := s.prefix
	if prefix != "" {
		prefix += "/"
	}

	var infos []store.TableInfo
	paginator := s3v2.NewListObjectsV2Paginator(s.client, &s3v2.ListObjectsV2Input{
		Bucket: awsv2.String(s.bucket),
		Prefix: awsv2.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(awsv2.ToString(obj.Key), prefix)
			if strings.Contains(rel, "/") || !strings.HasSuffix(rel, objectExt) {
				continue
			}
			name := strings.TrimSuffix(rel, objectExt)
			if store.ValidateName(name) != nil {
				continue
			}
			out, err := s.head(ctx, name)
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(out.Metadata[metaRows])
			if err != nil {
				log.WithError(err).Debugf("unreadable row count on s3://%s/%s", s.bucket, s.key(name))
			}
			infos = append(infos, store.TableInfo{
				Name:      name,
				Rows:      n,
				CreatedAt: out.Metadata[metaCreatedAt],
			})
		}
	}
	return infos, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func decode(kind store.Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case store.KindInt:
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", v)
		}
		return n.Int64()
	case store.KindReal:
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", v)
		}
		return n.Float64()
	case store.KindTime:
		t, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected time string, got %T", v)
		}
		return time.Parse(time.RFC3339Nano, t)
	default:
		return v, nil
	}
}

var _ store.TableStore = (*Store)(nil)
