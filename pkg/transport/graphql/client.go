package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/saturnines/tap-govdata/pkg/errors"
)

// HTTPDoer is the same minimal interface used by rest.RequestHelper.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client executes GraphQL operations.
type Client struct {
	doer HTTPDoer
}

// NewClient wraps an HTTPDoer (e.g. *http.Client or a retry transport).
func NewClient(doer HTTPDoer) *Client {
	return &Client{doer: doer}
}

// Execute sends a built request.
func (c *Client) Execute(req *http.Request) (*http.Response, error) {
	return c.doer.Do(req)
}

// Query builds the request, executes it and decodes the envelope,
// returning the contents of the "data" field.
func (c *Client) Query(ctx context.Context, builder *Builder) (map[string]interface{}, error) {
	req, err := builder.Build(ctx)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrHTTPRequest, "build GraphQL request")
	}

	resp, err := c.Execute(req)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrHTTPRequest, "execute GraphQL request")
	}

	return DecodeResponse(resp)
}

// DecodeResponse reads a GraphQL HTTP response, surfaces transport and
// GraphQL-level errors, and returns the "data" object.
func DecodeResponse(resp *http.Response) (map[string]interface{}, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrHTTPResponse, "read GraphQL response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.WrapError(
			fmt.Errorf("endpoint returned status %d", resp.StatusCode),
			errors.ErrHTTPResponse,
			"unexpected status code",
		)
	}

	var envelope struct {
		Data   map[string]interface{} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.WrapError(err, errors.ErrHTTPResponse, "decode GraphQL response")
	}

	// GraphQL reports query errors with a 200 status
	if len(envelope.Errors) > 0 {
		return nil, errors.WrapError(
			fmt.Errorf("%s (%d error(s) total)", envelope.Errors[0].Message, len(envelope.Errors)),
			errors.ErrGraphQL,
			"query failed",
		)
	}

	return envelope.Data, nil
}
