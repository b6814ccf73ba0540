package session

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/dmesquita/openpull/pkg/api"
)

// buildItemPayload assembles the item create/update body: the connector
// id, the optional item parameters, and one entry per credential field the
// connector declares. Fields are validated in the connector's declared
// order and the first failure aborts; no partial payload escapes.
func buildItemPayload(connector api.Connector, credentials api.Credentials, opts ItemOptions) (map[string]any, error) {
	parameters := make(map[string]string, len(connector.Credentials))

	for _, field := range connector.Credentials {
		slog.Debug("processing credential field", "field", field.Name)

		value, supplied := credentials[field.Name]
		if !supplied {
			if field.Optional {
				continue
			}
			return nil, &MissingCredentialError{Field: field.Name}
		}

		if field.Validation != "" {
			matched, err := matchesValidation(field.Validation, value)
			if err != nil {
				return nil, fmt.Errorf("compiling validation for %s: %w", field.Name, err)
			}
			if !matched {
				return nil, &InvalidCredentialError{Field: field.Name}
			}
		}

		parameters[field.Name] = value
	}

	payload := map[string]any{
		"connectorId": connector.ID,
		"parameters":  parameters,
	}
	if opts.WebhookURL != "" {
		payload["webhookUrl"] = opts.WebhookURL
	}
	if len(opts.Products) > 0 {
		payload["products"] = opts.Products
	}
	if opts.ClientUserID != "" {
		payload["clientUserId"] = opts.ClientUserID
	}

	return payload, nil
}

// matchesValidation checks value against the connector's pattern. Patterns
// are anchored at the start only, matching the provider's documented
// semantics.
func matchesValidation(pattern, value string) (bool, error) {
	re, err := regexp.Compile(`\A(?:` + pattern + `)`)
	if err != nil {
		return false, err
	}
	return re.MatchString(value), nil
}
