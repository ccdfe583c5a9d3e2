package actions

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
)

// handler performs the side effect of one built-in action type.
type handler func(ctx context.Context, e *Engine, c call) (any, error)

func builtins() map[domain.ActionType]handler {
	return map[domain.ActionType]handler{
		domain.ActionUpdateNodeState: updateNodeState,
		domain.ActionUpdateState:     updateState,
		domain.ActionOpenModal:       toggleModal(false),
		domain.ActionCloseModal:      toggleModal(true),
		domain.ActionResetForm:       resetForm,
		domain.ActionAddItemToCart:   addItemToCart,
		domain.ActionNavigate:        navigate,
		domain.ActionExecuteRQL:      executeRQL,
		domain.ActionSubmitData:      submitData,
		domain.ActionRefetchPageData: refetchPageData,
	}
}

var errQueryFailed = errors.New("query returned errors")

func target(id, trigger string) string {
	if id != "" {
		return id
	}
	return trigger
}

func updateNodeState(ctx context.Context, e *Engine, c call) (any, error) {
	var p updateNodeStateParams
	if err := decode(c.params, &p); err != nil {
		return nil, err
	}
	if c.env.Overrides == nil {
		return nil, fmt.Errorf("%w: override store", domain.ErrCollaboratorMissing)
	}
	c.env.Overrides.Merge(target(p.TargetNodeID, c.trigger), p.Patch)
	return nil, nil
}

func updateState(ctx context.Context, e *Engine, c call) (any, error) {
	var p updateStateParams
	if err := decode(c.params, &p); err != nil {
		return nil, err
	}
	if c.env.States == nil {
		return nil, fmt.Errorf("%w: state store", domain.ErrCollaboratorMissing)
	}
	c.env.States.Merge(target(p.TargetNodeID, c.trigger), p.State)
	return nil, nil
}

func toggleModal(hidden bool) handler {
	return func(ctx context.Context, e *Engine, c call) (any, error) {
		var p modalParams
		if err := decode(c.params, &p); err != nil {
			return nil, err
		}
		if p.ModalID == "" {
			return nil, errors.New("modalId is required")
		}
		if c.env.Overrides == nil {
			return nil, fmt.Errorf("%w: override store", domain.ErrCollaboratorMissing)
		}
		c.env.Overrides.Merge(p.ModalID, map[string]any{
			"visibility": map[string]any{"hidden": hidden},
		})
		return nil, nil
	}
}

func resetForm(ctx context.Context, e *Engine, c call) (any, error) {
	var p resetFormParams
	if err := decode(c.params, &p); err != nil {
		return nil, err
	}
	if c.env.Forms == nil {
		return nil, fmt.Errorf("%w: form scope", domain.ErrCollaboratorMissing)
	}
	c.env.Forms.Reset(target(p.FormID, c.trigger))
	return nil, nil
}

func addItemToCart(ctx context.Context, e *Engine, c call) (any, error) {
	var p cartParams
	if err := decode(c.params, &p); err != nil {
		return nil, err
	}
	if e.cart == nil {
		return nil, fmt.Errorf("%w: cart", domain.ErrCollaboratorMissing)
	}
	item := domain.CloneMap(p.Item)
	if item == nil {
		item = domain.CloneMap(c.params)
		delete(item, "resultKey")
	}
	if p.Quantity > 0 {
		item["quantity"] = p.Quantity
	}
	return nil, e.cart.AddToCart(ctx, item)
}

func navigate(ctx context.Context, e *Engine, c call) (any, error) {
	var p navigateParams
	if err := decode(c.params, &p); err != nil {
		return nil, err
	}
	if p.URL == "" {
		return nil, errors.New("url is required")
	}
	if e.navigator == nil {
		return nil, fmt.Errorf("%w: navigator", domain.ErrCollaboratorMissing)
	}
	req := domain.NavigateRequest{
		URL:     p.URL,
		NewTab:  p.NewTab || crossOrigin(p.URL, c.env.Origin),
		Preview: c.env.Preview,
	}
	return nil, e.navigator.Navigate(ctx, req)
}

// crossOrigin reports whether target leaves origin. Relative URLs never do.
func crossOrigin(target, origin string) bool {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return false
	}
	o, err := url.Parse(origin)
	if err != nil || o.Host == "" {
		return true
	}
	return !strings.EqualFold(u.Host, o.Host) || (u.Scheme != "" && u.Scheme != o.Scheme)
}

func executeRQL(ctx context.Context, e *Engine, c call) (any, error) {
	var p rqlParams
	if err := decode(c.params, &p); err != nil {
		return nil, err
	}
	if e.transport == nil {
		return nil, fmt.Errorf("%w: query transport", domain.ErrCollaboratorMissing)
	}
	queries := p.Queries
	single := len(queries) == 0
	if single {
		if p.Contract == "" {
			return nil, errors.New("queries or contract is required")
		}
		queries = map[string]domain.QueryDescription{"query": {Contract: p.Contract, Params: p.Params}}
	}

	resp, err := e.transport.Execute(ctx, queries)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("query transport returned no response")
	}
	var result any = resp.Data
	if single {
		result = resp.Data["query"]
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, len(resp.Errors))
		for i, qe := range resp.Errors {
			msgs[i] = qe.Message
		}
		return result, &actionFailure{
			err:     fmt.Errorf("%w: %s", errQueryFailed, strings.Join(msgs, "; ")),
			payload: map[string]any{"data": resp.Data, "errors": queryErrors(resp.Errors)},
		}
	}
	return result, nil
}

func queryErrors(errs []domain.QueryError) []any {
	out := make([]any, len(errs))
	for i, qe := range errs {
		out[i] = map[string]any{"queryKey": qe.QueryKey, "message": qe.Message, "code": qe.Code}
	}
	return out
}

func submitData(ctx context.Context, e *Engine, c call) (any, error) {
	var req domain.SubmitRequest
	if err := decode(c.params, &req); err != nil {
		return nil, err
	}
	if req.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if req.Method == "" {
		req.Method = "POST"
	}
	if e.submitter == nil {
		return nil, fmt.Errorf("%w: submitter", domain.ErrCollaboratorMissing)
	}

	resp, err := e.submitter.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("submitter returned no response")
	}
	if !resp.OK() {
		return resp.Data, &actionFailure{
			err:     fmt.Errorf("submit to %s failed with status %d", req.Endpoint, resp.StatusCode),
			payload: map[string]any{"status": float64(resp.StatusCode), "data": resp.Data, "errors": queryErrors(resp.Errors)},
		}
	}
	return resp.Data, nil
}

func refetchPageData(ctx context.Context, e *Engine, c call) (any, error) {
	if c.env.Refetch == nil {
		e.logger.Debug("no page data loader, refetch ignored")
		return nil, nil
	}
	return nil, c.env.Refetch(ctx)
}
