package actions

import (
	"fmt"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// updateNodeStateParams patches a node's live override.
type updateNodeStateParams struct {
	TargetNodeID string         `mapstructure:"targetNodeId"`
	Patch        map[string]any `mapstructure:"patch"`
}

// updateStateParams merges into a node's internal state.
type updateStateParams struct {
	TargetNodeID string         `mapstructure:"targetNodeId"`
	State        map[string]any `mapstructure:"state"`
}

type modalParams struct {
	ModalID string `mapstructure:"modalId"`
}

type resetFormParams struct {
	FormID string `mapstructure:"formId"`
}

type cartParams struct {
	Item     map[string]any `mapstructure:"item"`
	Quantity float64        `mapstructure:"quantity"`
}

type navigateParams struct {
	URL    string `mapstructure:"url"`
	NewTab bool   `mapstructure:"newTab"`
}

type rqlParams struct {
	Queries  map[string]domain.QueryDescription `mapstructure:"queries"`
	Contract string                             `mapstructure:"contract"`
	Params   map[string]any                     `mapstructure:"params"`
}

// decode fills out from resolved params. Strings are coerced into the
// declared field types so expressions may yield either form.
func decode(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}
