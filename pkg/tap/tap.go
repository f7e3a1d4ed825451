package tap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/saturnines/tap-govdata/pkg/auth"
	"github.com/saturnines/tap-govdata/pkg/config"
	"github.com/saturnines/tap-govdata/pkg/core"
	"github.com/saturnines/tap-govdata/pkg/errors"
	"github.com/saturnines/tap-govdata/pkg/govdata"
	"github.com/saturnines/tap-govdata/pkg/singer"
)

// Tap drives the Singer discovery and sync lifecycle for the catalog.
type Tap struct {
	cfg    *config.Settings
	client *govdata.Client
	log    zerolog.Logger
}

// Option configures the Tap.
type Option func(*Tap)

// WithLogger sets the tap logger. Logs go to stderr; stdout is
// reserved for Singer messages.
func WithLogger(log zerolog.Logger) Option {
	return func(t *Tap) {
		t.log = log
	}
}

// New builds a Tap from validated settings.
func New(cfg *config.Settings, opts ...Option) (*Tap, error) {
	t := &Tap{
		cfg: cfg,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	authHandler, err := auth.CreateHandler(cfg.Auth)
	if err != nil {
		return nil, err
	}

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.Retry != nil {
		transport = core.NewRetryTransport(nil, cfg.Retry)
	}
	httpClient := &http.Client{
		Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		Transport: transport,
	}

	headers := make(map[string]string, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.UserAgent != "" {
		headers["User-Agent"] = cfg.UserAgent
	}

	t.client = govdata.NewClient(
		cfg.Endpoint,
		govdata.WithHTTPDoer(httpClient),
		govdata.WithHeaders(headers),
		govdata.WithAuthHandler(authHandler),
		govdata.WithLogger(t.log),
	)

	return t, nil
}

// Discover builds the catalog document: the metadata stream plus one
// document stream per configured IRI. IRIs that cannot be resolved are
// skipped and reported in the aggregated error.
func (t *Tap) Discover(ctx context.Context) (*singer.Catalog, error) {
	catalog := &singer.Catalog{
		Streams: []singer.CatalogEntry{
			{
				TapStreamID:   MetadataStreamID,
				Stream:        MetadataStreamID,
				Schema:        MetadataSchema(),
				KeyProperties: []string{"iri"},
				Metadata:      singer.NewStreamMetadata(true),
			},
		},
	}

	if !t.cfg.IncludesDocuments() {
		return catalog, nil
	}

	var errs *multierror.Error
	for _, iri := range t.cfg.IRIs {
		entry, err := t.discoverDocumentStream(ctx, iri)
		if err != nil {
			if !recoverable(err) {
				return nil, err
			}
			t.log.Error().Err(err).Str("iri", iri).Msg("discovery failed for IRI")
			errs = multierror.Append(errs, fmt.Errorf("discover %s: %w", iri, err))
			continue
		}
		catalog.Streams = append(catalog.Streams, *entry)
	}

	return catalog, errs.ErrorOrNil()
}

func (t *Tap) discoverDocumentStream(ctx context.Context, iri string) (*singer.CatalogEntry, error) {
	ds, err := t.client.DatasetByIRI(ctx, iri)
	if err != nil {
		return nil, err
	}
	schema, err := t.client.DocumentSchema(ctx, ds)
	if err != nil {
		return nil, err
	}

	streamID := ds.TitleSlug()
	metadata := singer.NewStreamMetadata(true)
	metadata[0].Metadata[datasetIRIMetadataKey] = iri

	return &singer.CatalogEntry{
		TapStreamID:   streamID,
		Stream:        streamID,
		Schema:        schema.ObjectSchema(),
		KeyProperties: documentKeyProperties(schema),
		Metadata:      metadata,
	}, nil
}

// Sync emits SCHEMA, RECORD and a final STATE message for every
// selected stream. Failures scoped to a single IRI are logged, skipped
// and aggregated; the remaining IRIs still sync. catalog and state may
// be nil, meaning all streams and a fresh state.
func (t *Tap) Sync(ctx context.Context, w *singer.Writer, catalog *singer.Catalog, state map[string]interface{}) error {
	var errs *multierror.Error

	if state == nil {
		state = map[string]interface{}{}
	}
	bookmarks, ok := state["bookmarks"].(map[string]interface{})
	if !ok {
		bookmarks = map[string]interface{}{}
	}

	datasets := make(map[string]*govdata.Dataset, len(t.cfg.IRIs))

	if isSelected(catalog, MetadataStreamID) {
		if err := t.syncMetadata(ctx, w, datasets, bookmarks, &errs); err != nil {
			return err
		}
	} else {
		t.log.Debug().Str("stream", MetadataStreamID).Msg("stream deselected, skipping")
	}

	if t.cfg.IncludesDocuments() {
		for _, iri := range t.cfg.IRIs {
			if err := t.syncDocuments(ctx, w, catalog, datasets, bookmarks, iri); err != nil {
				if !recoverable(err) {
					return err
				}
				t.log.Error().Err(err).Str("iri", iri).Msg("document sync failed for IRI")
				errs = multierror.Append(errs, fmt.Errorf("sync %s: %w", iri, err))
			}
		}
	}

	state["bookmarks"] = bookmarks
	if err := w.WriteState(state); err != nil {
		return err
	}

	return errs.ErrorOrNil()
}

// syncMetadata emits the dataset metadata stream: one record per
// configured IRI, in config order.
func (t *Tap) syncMetadata(ctx context.Context, w *singer.Writer, datasets map[string]*govdata.Dataset, bookmarks map[string]interface{}, errs **multierror.Error) error {
	if err := w.WriteSchema(MetadataStreamID, MetadataSchema(), []string{"iri"}); err != nil {
		return err
	}

	emitted := 0
	for _, iri := range t.cfg.IRIs {
		ds, err := t.dataset(ctx, datasets, iri)
		if err != nil {
			if !recoverable(err) {
				return err
			}
			t.log.Error().Err(err).Str("iri", iri).Msg("metadata sync failed for IRI")
			*errs = multierror.Append(*errs, fmt.Errorf("metadata %s: %w", iri, err))
			continue
		}

		now := time.Now()
		if err := w.WriteRecord(MetadataStreamID, metadataRecord(ds, now), now); err != nil {
			return err
		}
		emitted++
	}

	t.log.Info().Int("records", emitted).Str("stream", MetadataStreamID).Msg("stream synced")
	bookmarks[MetadataStreamID] = map[string]interface{}{
		"completed_at": time.Now().UTC().Format(time.RFC3339),
	}
	return nil
}

// syncDocuments emits one document stream for the given IRI.
func (t *Tap) syncDocuments(ctx context.Context, w *singer.Writer, catalog *singer.Catalog, datasets map[string]*govdata.Dataset, bookmarks map[string]interface{}, iri string) error {
	ds, err := t.dataset(ctx, datasets, iri)
	if err != nil {
		return err
	}
	schema, err := t.client.DocumentSchema(ctx, ds)
	if err != nil {
		return err
	}

	streamID := ds.TitleSlug()
	if !isSelected(catalog, streamID) {
		t.log.Debug().Str("stream", streamID).Msg("stream deselected, skipping")
		return nil
	}

	if err := w.WriteSchema(streamID, schema.ObjectSchema(), documentKeyProperties(schema)); err != nil {
		return err
	}

	records := 0
	err = t.client.Rows(ctx, ds, schema, func(row map[string]interface{}) error {
		records++
		return w.WriteRecord(streamID, row, time.Now())
	})
	if err != nil {
		return err
	}

	t.log.Info().Int("records", records).Str("stream", streamID).Msg("stream synced")
	bookmarks[streamID] = map[string]interface{}{
		"completed_at": time.Now().UTC().Format(time.RFC3339),
	}
	return nil
}

// dataset fetches a dataset's metadata once per sync run.
func (t *Tap) dataset(ctx context.Context, cache map[string]*govdata.Dataset, iri string) (*govdata.Dataset, error) {
	if ds, ok := cache[iri]; ok {
		return ds, nil
	}
	ds, err := t.client.DatasetByIRI(ctx, iri)
	if err != nil {
		return nil, err
	}
	cache[iri] = ds
	return ds, nil
}

// isSelected checks stream selection against the catalog. A nil
// catalog or an unlisted stream counts as selected.
func isSelected(catalog *singer.Catalog, streamID string) bool {
	if catalog == nil {
		return true
	}
	entry, ok := catalog.Get(streamID)
	if !ok {
		return true
	}
	return entry.IsSelected()
}

// recoverable reports whether an error is scoped to a single IRI and
// should not abort the whole run. Context cancellation and message
// writer failures are not recoverable.
func recoverable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	for _, target := range []error{
		errors.ErrDatasetNotFound,
		errors.ErrGraphQL,
		errors.ErrExtraction,
		errors.ErrUnsupported,
		errors.ErrHTTPRequest,
		errors.ErrHTTPResponse,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	var httpErr *core.HTTPError
	return errors.As(err, &httpErr)
}
