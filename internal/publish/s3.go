// Package publish uploads a built output tree to S3-compatible object storage.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/fsutil"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// StateDir is the output subdirectory that holds build bookkeeping. It is
// never uploaded.
const StateDir = ".sitebuilder"

const stateFile = "published.json"

// PutObjectAPI is the subset of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Target describes where and how to upload.
type Target struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	SessionToken string
}

// Result summarizes one publish run.
type Result struct {
	Uploaded  int   `json:"uploaded"`
	Unchanged int   `json:"unchanged"`
	Bytes     int64 `json:"bytes"`
}

// Publisher mirrors an output directory into a bucket. Files whose content
// hash matches the previous upload are skipped.
type Publisher struct {
	client PutObjectAPI
	target Target
	logger *slog.Logger
}

// New builds an S3 client from the default AWS configuration chain,
// overridden by the target's region, endpoint and static credentials.
func New(ctx context.Context, t Target, logger *slog.Logger) (*Publisher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if t.Region != "" {
		opts = append(opts, awsconfig.WithRegion(t.Region))
	}
	if t.AccessKey != "" && t.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(t.AccessKey, t.SecretKey, t.SessionToken)))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.PublishError("load AWS configuration").WithCause(err).Build()
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if t.Endpoint != "" {
			o.BaseEndpoint = aws.String(t.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, t, logger), nil
}

// NewWithClient uses an existing client.
func NewWithClient(client PutObjectAPI, t Target, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, target: t, logger: logger}
}

// Publish uploads every changed file below outputDir.
func (p *Publisher) Publish(ctx context.Context, outputDir string) (*Result, error) {
	statePath := filepath.Join(outputDir, StateDir, stateFile)
	published, err := loadState(statePath)
	if err != nil {
		p.logger.Warn("Ignoring unreadable publish state", logfields.Path(statePath), logfields.Error(err))
		published = map[string]string{}
	}

	res := &Result{}
	current := make(map[string]string, len(published))
	walkErr := fsutil.WalkFiles(outputDir, func(rel, abs string, info os.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rel == StateDir || strings.HasPrefix(rel, StateDir+"/") {
			return nil
		}
		sum, err := fsutil.HashFile(abs)
		if err != nil {
			return err
		}
		hash := fsutil.FormatHash(sum)
		key := p.key(rel)
		if published[key] == hash {
			current[key] = hash
			res.Unchanged++
			return nil
		}
		if err := p.upload(ctx, key, abs); err != nil {
			return err
		}
		current[key] = hash
		res.Uploaded++
		res.Bytes += info.Size()
		return nil
	})

	// A partial run keeps earlier entries so a retry skips what already went up.
	if walkErr != nil {
		for key, hash := range published {
			if _, ok := current[key]; !ok {
				current[key] = hash
			}
		}
	}
	if err := saveState(statePath, current); err != nil {
		p.logger.Warn("Failed to save publish state", logfields.Path(statePath), logfields.Error(err))
	}

	if walkErr != nil {
		return res, errors.PublishError("publish output").
			WithContext("bucket", p.target.Bucket).
			WithCause(walkErr).Build()
	}
	p.logger.Info("Published output",
		slog.String("bucket", p.target.Bucket),
		logfields.Count(res.Uploaded),
		slog.Int("unchanged", res.Unchanged))
	return res, nil
}

func (p *Publisher) key(rel string) string {
	if p.target.Prefix == "" {
		return rel
	}
	return path.Join(strings.Trim(p.target.Prefix, "/"), rel)
}

func (p *Publisher) upload(ctx context.Context, key, abs string) error {
	f, err := os.Open(abs)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	in := &s3.PutObjectInput{
		Bucket: aws.String(p.target.Bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(filepath.Ext(abs)); ct != "" {
		in.ContentType = aws.String(ct)
	}
	if _, err := p.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	p.logger.Debug("Uploaded object", logfields.Path(key))
	return nil
}

func loadState(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	state := map[string]string{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return state, nil
}

func saveState(path string, state map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
