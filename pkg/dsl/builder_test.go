package dsl_test

import (
	"context"
	"testing"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storefront() *dsl.PageBuilder {
	return dsl.NewPage("shop").
		Title("Shop").
		Breakpoint("mobile", 0).
		Breakpoint("desktop", 1024).
		Data("products", []any{
			map[string]any{"name": "Tea", "price": 4.5},
			map[string]any{"name": "Coffee", "price": 3.0},
			map[string]any{"name": "Cake", "price": 9.0},
		}).
		Add(
			dsl.Section("list").
				Repeat("{{ data.products }}", dsl.Atom("card", "text").Param("text", "{{ item.name }}")).
				Filter("price", domain.OpLessThan, 5).
				SortBy("price", "asc").
				Limit(5),
			dsl.Section("modal", dsl.Atom("close", "button").On("click", dsl.CloseModal("hide", "modal"))).Hidden(),
			dsl.Atom("open", "button").
				Responsive("mobile", map[string]any{"params": map[string]any{"size": "sm"}}).
				On("click",
					dsl.OpenModal("show", "modal").Then(
						dsl.UpdateState("mark", "open", map[string]any{"opened": true}),
					),
				),
		)
}

func TestBuilder_Structure(t *testing.T) {
	page := storefront().Build()

	assert.Equal(t, "shop", page.ID)
	require.Len(t, page.Nodes, 3)
	list := page.Nodes[0]
	require.NotNil(t, list.Repeater)
	require.NotNil(t, list.Repeater.Template)
	assert.Equal(t, "card", list.Repeater.Template.ID)
	assert.Equal(t, float64(5), list.Repeater.Limit)

	modal := page.Nodes[1]
	assert.True(t, modal.Visibility.Hidden)
	require.Len(t, modal.Children, 1)

	chain := page.Nodes[2].EventHandlers["click"]
	require.Len(t, chain, 1)
	assert.Equal(t, domain.ActionOpenModal, chain[0].Type)
	require.Len(t, chain[0].OnSuccess, 1)
	assert.Equal(t, "open", chain[0].OnSuccess[0].Params["targetNodeId"])
	assert.Nil(t, chain[0].OnError)
}

func TestBuilder_BuildIsRepeatable(t *testing.T) {
	b := storefront()
	first := b.Build()
	first.Nodes[0].Repeater.Source = "changed"
	assert.Equal(t, "{{ data.products }}", b.Build().Nodes[0].Repeater.Source)
}

func TestBuilder_Mounts(t *testing.T) {
	loader, err := storefront().Loader()
	require.NoError(t, err)

	ctx := context.Background()
	s, err := canopy.New(canopy.WithLoader(loader)).MountPage(ctx, "shop", canopy.WithViewport(400, 800))
	require.NoError(t, err)
	defer s.Close()

	tree, err := s.Render(ctx)
	require.NoError(t, err)
	list := tree.Find("list")
	require.Len(t, list.Children, 2)
	assert.Equal(t, "Coffee", list.Children[0].Params["text"])
	assert.Equal(t, "sm", tree.Find("open").Params["size"])
	assert.False(t, tree.Find("modal").Visible)

	rep, err := s.Trigger(ctx, "open", "click", domain.AuxContext{})
	require.NoError(t, err)
	assert.Equal(t, []string{"show", "mark"}, rep.Executed())

	tree, err = s.Render(ctx)
	require.NoError(t, err)
	assert.True(t, tree.Find("modal").Visible)
	state, ok := s.State("open")
	require.True(t, ok)
	assert.Equal(t, true, state["opened"])
}

func TestActions(t *testing.T) {
	a := dsl.Submit("send", "/api/contact", "{{ formData }}").
		When(domain.Condition{Path: "formData.email", Operator: domain.OpExists}).
		Any().
		Delay(10).
		Catch(dsl.Navigate("oops", "/error")).
		Build()

	assert.Equal(t, domain.ActionSubmitData, a.Type)
	assert.Equal(t, "/api/contact", a.Params["endpoint"])
	assert.Equal(t, domain.LogicOr, a.ConditionLogic)
	assert.Equal(t, 10, a.DelayMs)
	require.Len(t, a.OnError, 1)
	assert.Equal(t, "/error", a.OnError[0].Params["url"])

	n := dsl.CodeBlock("snippet", "go", "package main").Order(2).Build()
	assert.Equal(t, domain.NodeTypeCodeBlock, n.Type)
	assert.Equal(t, "go", n.Language)
	assert.Equal(t, 2, n.Order)
}
