package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/product-catalog/internal/domain/blob"
)

// ServiceConfig holds non-dependency configuration for the Service.
type ServiceConfig struct {
	// MaxImageBytes limits the size of uploaded images. Zero means no limit.
	MaxImageBytes  int64
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Service implements the catalog operations on top of a product Repository
// and a blob Store.
//
// Image replacement and deletion are ordered sequences of independent store
// calls with no rollback: a blob write failure aborts before the record is
// touched, a failure deleting an old blob is logged and ignored, and a record
// write failure after a successful blob write leaves that blob orphaned.
type Service struct {
	products Repository
	blobs    blob.Store
	maxImage int64

	tracer             trace.Tracer
	uploads            metric.Int64Counter
	blobDeleteFailures metric.Int64Counter
}

// NewService creates a product Service with the required dependencies.
func NewService(products Repository, blobs blob.Store, cfg ServiceConfig) (*Service, error) {
	meter := cfg.MeterProvider.Meter("catalog/product")

	uploads, err := meter.Int64Counter("catalog.product.image.uploads",
		metric.WithDescription("Product images stored"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create uploads counter")
	}
	deleteFailures, err := meter.Int64Counter("catalog.blob.delete.failures",
		metric.WithDescription("Best-effort blob deletions that failed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create blob delete failures counter")
	}

	return &Service{
		products:           products,
		blobs:              blobs,
		maxImage:           cfg.MaxImageBytes,
		tracer:             cfg.TracerProvider.Tracer("catalog/product"),
		uploads:            uploads,
		blobDeleteFailures: deleteFailures,
	}, nil
}

// List returns every product in the catalog.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.List")
	defer span.End()

	products, err := s.products.List(ctx)
	if err != nil {
		return nil, s.fail(span, errors.Wrap(err, "list products"))
	}
	return products, nil
}

// Create validates in and persists a new product without an image.
func (s *Service) Create(ctx context.Context, in Input) (*Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.Create")
	defer span.End()

	f, err := in.Validate()
	if err != nil {
		return nil, err
	}

	p, err := s.products.Create(ctx, f)
	if err != nil {
		return nil, s.fail(span, errors.Wrap(err, "create product"))
	}
	span.SetAttributes(attribute.Int64("product.id", p.ID))
	return p, nil
}

// Get returns a single product, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.Get", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	return s.resolve(ctx, span, id)
}

// Update overwrites name, description and price of an existing product.
// The image is left untouched.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.Update", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	if _, err := s.resolve(ctx, span, id); err != nil {
		return nil, err
	}

	f, err := in.Validate()
	if err != nil {
		return nil, err
	}

	p, err := s.products.Update(ctx, id, f)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, s.fail(span, errors.Wrapf(err, "update product %d", id))
	}
	return p, nil
}

// Delete removes the product's image blob, then the product record. A failed
// blob deletion does not prevent the record deletion.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "product.Delete", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	p, err := s.resolve(ctx, span, id)
	if err != nil {
		return err
	}

	if p.Image != nil {
		s.deleteBlob(ctx, *p.Image)
	}

	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return s.fail(span, errors.Wrapf(err, "delete product %d", id))
	}
	return nil
}

// UploadImage stores the uploaded image and points the product at it.
//
// The sequence is: read the current image path, store the new blob, delete
// the old blob (best-effort), save the new path. Concurrent uploads to the
// same product are not serialized: the last record write wins and the blob
// written by the other call is never deleted.
func (s *Service) UploadImage(ctx context.Context, id int64, u Upload) (*Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.UploadImage", trace.WithAttributes(
		attribute.Int64("product.id", id),
		attribute.String("upload.filename", u.Filename),
	))
	defer span.End()

	p, err := s.resolve(ctx, span, id)
	if err != nil {
		return nil, err
	}

	img, err := u.Validate(s.maxImage)
	if err != nil {
		return nil, err
	}

	newPath, err := s.blobs.Put(ctx, ImageDir, blob.Object{
		Data:        img.Data,
		ContentType: img.ContentType,
		Extension:   img.Extension,
	})
	if err != nil {
		return nil, s.fail(span, errors.Wrap(err, "store image"))
	}
	s.uploads.Add(ctx, 1)
	span.SetAttributes(attribute.String("blob.path", newPath))

	if p.Image != nil {
		s.deleteBlob(ctx, *p.Image)
	}

	updated, err := s.products.SetImage(ctx, id, newPath)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, s.fail(span, errors.Wrapf(err, "save image path for product %d", id))
	}
	return updated, nil
}

// AttachToUser records that userID owns the product.
func (s *Service) AttachToUser(ctx context.Context, userID, id int64) error {
	ctx, span := s.tracer.Start(ctx, "product.AttachToUser", trace.WithAttributes(
		attribute.Int64("product.id", id),
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	if _, err := s.resolve(ctx, span, id); err != nil {
		return err
	}
	if err := s.products.Attach(ctx, userID, id); err != nil {
		return s.fail(span, errors.Wrapf(err, "attach product %d to user %d", id, userID))
	}
	return nil
}

// DetachFromUser removes the ownership edge, if any.
func (s *Service) DetachFromUser(ctx context.Context, userID, id int64) error {
	ctx, span := s.tracer.Start(ctx, "product.DetachFromUser", trace.WithAttributes(
		attribute.Int64("product.id", id),
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	if _, err := s.resolve(ctx, span, id); err != nil {
		return err
	}
	if err := s.products.Detach(ctx, userID, id); err != nil {
		return s.fail(span, errors.Wrapf(err, "detach product %d from user %d", id, userID))
	}
	return nil
}

// ListOwnedByUser returns the products attached to userID.
func (s *Service) ListOwnedByUser(ctx context.Context, userID int64) ([]Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.ListOwnedByUser", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	products, err := s.products.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.fail(span, errors.Wrapf(err, "list products of user %d", userID))
	}
	return products, nil
}

func (s *Service) resolve(ctx context.Context, span trace.Span, id int64) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, s.fail(span, errors.Wrapf(err, "get product %d", id))
	}
	return p, nil
}

func (s *Service) deleteBlob(ctx context.Context, path string) {
	if err := s.blobs.Delete(ctx, path); err != nil {
		s.blobDeleteFailures.Add(ctx, 1)
		zctx.From(ctx).Warn("Delete blob failed",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
