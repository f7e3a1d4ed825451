package auth

import (
	"fmt"

	"github.com/saturnines/tap-govdata/pkg/config"
	"github.com/saturnines/tap-govdata/pkg/errors"
)

// CreateHandler builds an auth Handler from config. A nil auth config
// yields a nil Handler, meaning no authentication.
func CreateHandler(authConfig *config.Auth) (Handler, error) {
	if authConfig == nil {
		return nil, nil
	}

	switch authConfig.Type {
	case config.AuthTypeBasic:
		if authConfig.Basic == nil {
			return nil, errors.WrapError(
				fmt.Errorf("basic auth configuration is required"),
				errors.ErrConfiguration,
				"create basic auth",
			)
		}
		return NewBasicAuth(authConfig.Basic.Username, authConfig.Basic.Password), nil

	case config.AuthTypeBearer:
		if authConfig.Bearer == nil {
			return nil, errors.WrapError(
				fmt.Errorf("bearer token configuration is required"),
				errors.ErrConfiguration,
				"create bearer auth",
			)
		}
		return NewBearerAuth(authConfig.Bearer.Token), nil

	case config.AuthTypeAPIKey:
		if authConfig.APIKey == nil {
			return nil, errors.WrapError(
				fmt.Errorf("api key configuration is required"),
				errors.ErrConfiguration,
				"create API key auth",
			)
		}
		return NewAPIKeyAuth(
			authConfig.APIKey.Header,
			authConfig.APIKey.QueryParam,
			authConfig.APIKey.Value,
		), nil

	default:
		return nil, errors.WrapError(
			fmt.Errorf("unknown auth type: %s", authConfig.Type),
			errors.ErrConfiguration,
			"create auth handler",
		)
	}
}
