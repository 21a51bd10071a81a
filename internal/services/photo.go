package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"match-chat-backend/internal/apperr"
	"match-chat-backend/internal/models"
	"match-chat-backend/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	uploadTimeout      = 30 * time.Second
	inlineThreshold    = 150 * 1024
	inlineMaxDimension = 1024
	inlineJPEGQuality  = 70
)

// ObjectUploader is the part of the S3 client the photo service needs
type ObjectUploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds what is needed to reach an S3 compatible bucket
type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

// NewS3Client builds an S3 client. Static keys and a custom endpoint are
// used when set; otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// PhotoService stores profile photos either in blob storage or inline in
// the profile record
type PhotoService struct {
	userRepo *repository.UserRepository
	uploader ObjectUploader
	cfg      S3Config
}

// NewPhotoService creates a new photo service. uploader may be nil, which
// leaves only the inline path available.
func NewPhotoService(userRepo *repository.UserRepository, uploader ObjectUploader, cfg S3Config) *PhotoService {
	return &PhotoService{
		userRepo: userRepo,
		uploader: uploader,
		cfg:      cfg,
	}
}

// ProfilePhotoKey is the object key of a user's profile photo
func ProfilePhotoKey(userID string) string {
	return fmt.Sprintf("users/%s/profile.jpg", userID)
}

func (s *PhotoService) objectURL(key string) string {
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.cfg.Endpoint, "/"), s.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

func detectImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperr.Invalid("photo", "is empty")
	}
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return "", apperr.Invalid("photo", "must be an image, got "+mime.String())
	}
	return mime.String(), nil
}

// UploadProfilePhoto uploads data to blob storage and stores its URL on the
// profile
func (s *PhotoService) UploadProfilePhoto(ctx context.Context, userID string, data []byte) (*models.User, error) {
	contentType, err := detectImage(data)
	if err != nil {
		return nil, err
	}
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: blob storage is not configured", apperr.ErrUnsupported)
	}

	key := ProfilePhotoKey(userID)
	uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	if _, err := s.uploader.PutObject(uploadCtx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	}); err != nil {
		return nil, fmt.Errorf("failed to upload photo: %w", err)
	}

	url := s.objectURL(key)
	if err := s.userRepo.Update(ctx, userID, map[string]any{"photo_url": url}); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", userID).Str("key", key).Int("bytes", len(data)).Msg("Profile photo uploaded")
	return s.profile(ctx, userID)
}

// SetInlinePhoto stores the photo as a data URL in the profile record,
// compressing it first when it is large
func (s *PhotoService) SetInlinePhoto(ctx context.Context, userID string, data []byte) (*models.User, error) {
	contentType, err := detectImage(data)
	if err != nil {
		return nil, err
	}

	if len(data) > inlineThreshold {
		compressed, err := CompressImage(data, inlineMaxDimension, inlineJPEGQuality)
		if err != nil {
			return nil, apperr.Invalid("photo", "could not be decoded")
		}
		log.Debug().Str("user_id", userID).Int("from", len(data)).Int("to", len(compressed)).Msg("Photo compressed")
		data, contentType = compressed, "image/jpeg"
	}

	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	if err := s.userRepo.Update(ctx, userID, map[string]any{"photo_inline": dataURL}); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", userID).Int("bytes", len(data)).Msg("Inline profile photo stored")
	return s.profile(ctx, userID)
}

func (s *PhotoService) profile(ctx context.Context, userID string) (*models.User, error) {
	user, found, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID)
	}
	return user, nil
}

// CompressImage scales the image down so neither side exceeds maxDimension
// and re-encodes it as JPEG
func CompressImage(data []byte, maxDimension, quality int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxDimension || h > maxDimension {
		if w >= h {
			h = max(1, h*maxDimension/w)
			w = maxDimension
		} else {
			w = max(1, w*maxDimension/h)
			h = maxDimension
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
