package runtime_test

import (
	"testing"

	"github.com/aretw0/canopy/internal/runtime"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOverrides_Precedence(t *testing.T) {
	base := func() *domain.Node {
		return &domain.Node{
			ID:     "hero",
			Type:   domain.NodeTypeAtom,
			Params: map[string]any{"title": "base", "size": "lg"},
			ResponsiveOverrides: map[string]map[string]any{
				"mobile": {"params": map[string]any{"title": "responsive"}},
			},
			LocaleOverrides: map[string]map[string]any{
				"fr": {"params": map[string]any{"title": "locale"}},
			},
		}
	}
	live := map[string]any{"params": map[string]any{"title": "live"}}

	tests := []struct {
		name       string
		breakpoint string
		locale     string
		live       map[string]any
		want       string
	}{
		{"all layers", "mobile", "fr", live, "locale"},
		{"without locale", "mobile", "", live, "responsive"},
		{"without responsive", "", "", live, "live"},
		{"base only", "", "", nil, "base"},
		{"unknown keys ignored", "desktop", "de", nil, "base"},
		{"locale beats live", "", "fr", live, "locale"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eff, err := runtime.ApplyOverrides(base(), tt.breakpoint, tt.locale, tt.live)
			require.NoError(t, err)
			assert.Equal(t, tt.want, eff.Params["title"])
			assert.Equal(t, "lg", eff.Params["size"], "untouched keys survive the merge")
		})
	}
}

func TestApplyOverrides_DoesNotMutateBase(t *testing.T) {
	base := &domain.Node{
		ID:     "list",
		Type:   domain.NodeTypeAtom,
		Params: map[string]any{"tags": []any{"a", "b"}, "style": map[string]any{"color": "red"}},
	}
	live := map[string]any{
		"id":     "renamed",
		"params": map[string]any{"tags": []any{"c"}, "style": map[string]any{"weight": "bold"}},
	}

	eff, err := runtime.ApplyOverrides(base, "", "", live)
	require.NoError(t, err)

	assert.Equal(t, "list", eff.ID)
	assert.Equal(t, []any{"c"}, eff.Params["tags"], "arrays are replaced wholesale")
	assert.Equal(t, map[string]any{"color": "red", "weight": "bold"}, eff.Params["style"])

	assert.Equal(t, []any{"a", "b"}, base.Params["tags"])
	assert.Equal(t, map[string]any{"color": "red"}, base.Params["style"])
}

func TestApplyOverrides_VisibilityPatch(t *testing.T) {
	base := &domain.Node{ID: "modal", Type: domain.NodeTypeComponent, Visibility: &domain.Visibility{Hidden: true}}

	eff, err := runtime.ApplyOverrides(base, "", "", map[string]any{"visibility": map[string]any{"hidden": false}})
	require.NoError(t, err)
	require.NotNil(t, eff.Visibility)
	assert.False(t, eff.Visibility.Hidden)
}
