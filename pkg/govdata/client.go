package govdata

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/saturnines/tap-govdata/pkg/auth"
	"github.com/saturnines/tap-govdata/pkg/config"
	"github.com/saturnines/tap-govdata/pkg/core"
	"github.com/saturnines/tap-govdata/pkg/errors"
	"github.com/saturnines/tap-govdata/pkg/transform"
	"github.com/saturnines/tap-govdata/pkg/transport/graphql"
	"github.com/saturnines/tap-govdata/pkg/transport/rest"
)

// sniffSampleSize bounds how much of a CSV body is inspected to guess
// the delimiter.
const sniffSampleSize = 8192

// datasetQuery is the fixed per-IRI metadata query. The catalog
// localizes title and description; only the Czech variant is published.
const datasetQuery = `query {
    dataset(iri: %q) {
        iri
        accrualPeriodicity
        documentation
        isPartOf
        distribution {
            accessURL
            conformsTo
        }
        description {
            cs
        }
        title {
            cs
        }
    }
}`

// Client talks to the open data catalog: dataset metadata over GraphQL,
// table schemas and distribution data over plain HTTP.
type Client struct {
	endpoint    string
	headers     map[string]string
	authHandler auth.Handler
	doer        rest.HTTPDoer
	gql         *graphql.Client
	casts       *transform.Registry
	log         zerolog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPDoer swaps the underlying HTTPDoer (e.g. a retry transport).
func WithHTTPDoer(doer rest.HTTPDoer) Option {
	return func(c *Client) {
		c.doer = doer
	}
}

// WithHeaders adds headers to every catalog request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithAuthHandler sets an auth handler applied to catalog requests.
func WithAuthHandler(h auth.Handler) Option {
	return func(c *Client) {
		c.authHandler = h
	}
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a catalog client. An empty endpoint selects the
// production catalog.
func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = config.DefaultEndpoint
	}
	c := &Client{
		endpoint: endpoint,
		doer:     &http.Client{Timeout: 30 * time.Second},
		casts:    transform.NewRegistry(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.gql = graphql.NewClient(c.doer)
	return c
}

// DatasetByIRI retrieves a dataset's metadata by its IRI.
func (c *Client) DatasetByIRI(ctx context.Context, iri string) (*Dataset, error) {
	c.log.Info().Str("iri", iri).Msg("retrieving dataset metadata")

	builder := graphql.NewBuilder(
		c.endpoint,
		fmt.Sprintf(datasetQuery, iri),
		graphql.WithHeaders(c.headers),
		graphql.WithAuthHandler(c.authHandler),
	)

	data, err := c.gql.Query(ctx, builder)
	if err != nil {
		return nil, err
	}

	node, ok := data["dataset"]
	if !ok || node == nil {
		return nil, errors.WrapError(
			fmt.Errorf("catalog has no dataset for IRI %q", iri),
			errors.ErrDatasetNotFound,
			"dataset lookup",
		)
	}

	title, ok := core.ExtractString(node, "title.cs")
	if !ok {
		return nil, errors.WrapError(
			fmt.Errorf("missing title for IRI %q", iri),
			errors.ErrExtraction,
			"dataset metadata",
		)
	}
	description, ok := core.ExtractString(node, "description.cs")
	if !ok {
		return nil, errors.WrapError(
			fmt.Errorf("missing description for IRI %q", iri),
			errors.ErrExtraction,
			"dataset metadata",
		)
	}

	ds := &Dataset{
		IRI:         iri,
		Title:       title,
		Description: description,
	}
	if v, ok := core.ExtractString(node, "iri"); ok && v != "" {
		ds.IRI = v
	}
	ds.AccrualPeriodicity, _ = core.ExtractString(node, "accrualPeriodicity")
	ds.Documentation, _ = core.ExtractString(node, "documentation")
	ds.IsPartOf, _ = core.ExtractString(node, "isPartOf")

	if raw, ok := core.ExtractField(node, "distribution"); ok {
		if items, ok := raw.([]interface{}); ok {
			for _, item := range items {
				var dist Distribution
				dist.AccessURL, _ = core.ExtractString(item, "accessURL")
				dist.ConformsTo, _ = core.ExtractString(item, "conformsTo")
				ds.Distribution = append(ds.Distribution, dist)
			}
		}
	}

	if len(ds.Distribution) == 0 {
		return nil, errors.WrapError(
			fmt.Errorf("no distribution found for IRI %q", iri),
			errors.ErrExtraction,
			"dataset metadata",
		)
	}
	if len(ds.Distribution) > 1 {
		return nil, errors.WrapError(
			fmt.Errorf("dataset for IRI %q has %d distributions", iri, len(ds.Distribution)),
			errors.ErrUnsupported,
			"multiple distributions",
		)
	}

	return ds, nil
}

// DocumentSchema fetches the CSVW table schema referenced by the
// dataset's distribution.
func (c *Client) DocumentSchema(ctx context.Context, ds *Dataset) (*DocumentSchema, error) {
	schemaURL := ds.Distribution[0].ConformsTo
	if schemaURL == "" {
		return nil, errors.WrapError(
			fmt.Errorf("distribution of IRI %q has no schema URL", ds.IRI),
			errors.ErrExtraction,
			"document schema",
		)
	}

	c.log.Info().Str("iri", ds.IRI).Str("url", schemaURL).Msg("retrieving document schema")

	resp, err := rest.RequestHelper(ctx, c.doer, http.MethodGet, schemaURL, c.headers, nil)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrHTTPRequest, "fetch document schema")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.WrapError(
			fmt.Errorf("schema endpoint returned status %d", resp.StatusCode),
			errors.ErrHTTPResponse,
			"fetch document schema",
		)
	}

	var payload struct {
		TableSchema DocumentSchema `json:"tableSchema"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.WrapError(err, errors.ErrHTTPResponse, "decode document schema")
	}

	if len(payload.TableSchema.Columns) == 0 {
		return nil, errors.WrapError(
			fmt.Errorf("table schema for IRI %q declares no columns", ds.IRI),
			errors.ErrExtraction,
			"document schema",
		)
	}

	return &payload.TableSchema, nil
}

// Rows downloads the distribution CSV and invokes fn for every row,
// with cells cast per the column datatypes of schema.
func (c *Client) Rows(ctx context.Context, ds *Dataset, schema *DocumentSchema, fn func(row map[string]interface{}) error) error {
	dataURL := ds.Distribution[0].AccessURL
	if dataURL == "" {
		return errors.WrapError(
			fmt.Errorf("distribution of IRI %q has no access URL", ds.IRI),
			errors.ErrExtraction,
			"document rows",
		)
	}

	c.log.Info().Str("iri", ds.IRI).Str("url", dataURL).Msg("retrieving document rows")

	resp, err := rest.RequestHelper(ctx, c.doer, http.MethodGet, dataURL, c.headers, nil)
	if err != nil {
		return errors.WrapError(err, errors.ErrHTTPRequest, "fetch document rows")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.WrapError(
			fmt.Errorf("data endpoint returned status %d", resp.StatusCode),
			errors.ErrHTTPResponse,
			"fetch document rows",
		)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "text/csv" {
		return errors.WrapError(
			fmt.Errorf("unsupported content type %q", resp.Header.Get("Content-Type")),
			errors.ErrUnsupported,
			"document rows",
		)
	}

	columnCasts := make(map[string]transform.CastFunc)
	for _, column := range schema.Columns {
		if cast, ok := c.casts.Lookup(column.Datatype); ok {
			columnCasts[column.Name] = cast
		}
	}

	br := bufio.NewReaderSize(resp.Body, sniffSampleSize)
	sample, err := br.Peek(sniffSampleSize)
	if err != nil && err != io.EOF {
		return errors.WrapError(err, errors.ErrHTTPResponse, "read document rows")
	}

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(sample)
	// Published CSVs are occasionally ragged; short rows keep their
	// leading cells, trailing columns are simply absent.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return errors.WrapError(err, errors.ErrExtraction, "read CSV header")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cells, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.WrapError(err, errors.ErrExtraction, "read CSV row")
		}

		row := make(map[string]interface{}, len(header))
		for i, name := range header {
			if i >= len(cells) {
				break
			}
			value := cells[i]
			if cast, ok := columnCasts[name]; ok {
				typed, err := cast(value)
				if err != nil {
					return errors.WrapError(err, errors.ErrExtraction, fmt.Sprintf("cast column %q", name))
				}
				row[name] = typed
			} else {
				row[name] = value
			}
		}

		if err := fn(row); err != nil {
			return err
		}
	}
}

// sniffDelimiter guesses the CSV delimiter from the first line of a
// sample, defaulting to a comma.
func sniffDelimiter(sample []byte) rune {
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i]
	}

	best := ','
	bestCount := bytes.Count(sample, []byte{','})
	for _, candidate := range []byte{';', '\t', '|'} {
		if n := bytes.Count(sample, []byte{candidate}); n > bestCount {
			best = rune(candidate)
			bestCount = n
		}
	}
	return best
}
